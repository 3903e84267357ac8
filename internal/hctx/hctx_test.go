package hctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithState_From(t *testing.T) {
	st := New()
	ctx := WithState(context.Background(), st)

	got, ok := From(ctx)
	require.True(t, ok)
	require.Same(t, st, got)
}

func TestFrom_Absent(t *testing.T) {
	_, ok := From(context.Background())
	require.False(t, ok)
}
