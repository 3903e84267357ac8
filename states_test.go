package qflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseState_Valid(t *testing.T) {
	for _, s := range AllStates {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestParseState_Invalid(t *testing.T) {
	_, err := ParseState("pending")
	require.ErrorIs(t, err, ErrUnknownState)
	_, err = ParseState("")
	require.ErrorIs(t, err, ErrUnknownState)
}
