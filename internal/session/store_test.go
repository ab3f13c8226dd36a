package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := s.Get(ctx, "tok", "field")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "tok", "field", []byte("value")))

		got, err := s.Get(ctx, "tok", "field")
		require.NoError(t, err)
		require.Equal(t, []byte("value"), got)
	})

	t.Run("fields are scoped per token", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "other", "field", []byte("x")))

		got, err := s.Get(ctx, "tok", "field")
		require.NoError(t, err)
		require.Equal(t, []byte("value"), got)
	})

	t.Run("delete removes the field only", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "tok", "second", []byte("y")))
		require.NoError(t, s.Delete(ctx, "tok", "field"))

		_, err := s.Get(ctx, "tok", "field")
		require.ErrorIs(t, err, ErrNotFound)

		got, err := s.Get(ctx, "tok", "second")
		require.NoError(t, err)
		require.Equal(t, []byte("y"), got)
	})

	t.Run("stored values are copies", func(t *testing.T) {
		raw := []byte("mutable")
		require.NoError(t, s.Set(ctx, "tok", "copy", raw))
		raw[0] = 'X'

		got, err := s.Get(ctx, "tok", "copy")
		require.NoError(t, err)
		require.Equal(t, []byte("mutable"), got)
	})
}

func TestPendingOrders(t *testing.T) {
	ctx := context.Background()
	p := NewPendingOrders(NewMemoryStore())

	_, err := p.PendingOrder(ctx, "tok")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.SetPendingOrder(ctx, "tok", "ord-1"))

	got, err := p.PendingOrder(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "ord-1", got)

	// A later checkout in the same session replaces the pending order.
	require.NoError(t, p.SetPendingOrder(ctx, "tok", "ord-2"))
	got, err = p.PendingOrder(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "ord-2", got)
}
