package qflow

import (
	"context"
	"testing"

	"github.com/QFlow/qflow-go/internal/hctx"
	"github.com/stretchr/testify/require"
)

func TestHandlerCtx_NoEngineContextIsNoop(t *testing.T) {
	ctx := context.Background()
	SetProgress(ctx, 50)
	require.NoError(t, SetResult(ctx, map[string]int{"x": 1}))
	SetResultBytes(ctx, []byte("raw"))
}

func TestHandlerCtx_ProgressClampAndResult(t *testing.T) {
	st := hctx.New()
	ctx := hctx.WithState(context.Background(), st)

	SetProgress(ctx, 150)
	require.Equal(t, 100, st.Progress)
	SetProgress(ctx, -5)
	require.Equal(t, 0, st.Progress)

	require.NoError(t, SetResult(ctx, map[string]int{"x": 1}))
	require.JSONEq(t, `{"x":1}`, string(st.Result))

	SetResultBytes(ctx, []byte("raw"))
	require.Equal(t, []byte("raw"), st.Result)
}
