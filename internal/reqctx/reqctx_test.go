package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %s from context, got %s ok=%v", id, got, ok)
	}
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestWithID(t *testing.T) {
	ctx, id := WithID(context.Background(), "upstream-1")
	require.Equal(t, "upstream-1", id)
	got, _ := FromContext(ctx)
	require.Equal(t, "upstream-1", got)

	_, id = WithID(context.Background(), "")
	require.NotEmpty(t, id)
}

func TestAttributes(t *testing.T) {
	ctx := WithAttributes(context.Background(), map[string]string{"a": "1", "b": "2"})
	child := WithAttributes(ctx, map[string]string{"b": "3"})

	require.Equal(t, map[string]string{"a": "1", "b": "2"}, Attributes(ctx))
	require.Equal(t, map[string]string{"a": "1", "b": "3"}, Attributes(child))
	require.Nil(t, Attributes(context.Background()))
}
