package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()
	pending := NewMemoryPendingOrders()

	_, err := ResolveOrder(ctx, "u1", "", pending)
	assert.ErrorIs(t, err, ErrMissingOrderContext)

	_, err = ResolveOrder(ctx, "u1", "", nil)
	assert.ErrorIs(t, err, ErrMissingOrderContext)

	require.NoError(t, pending.Save(ctx, "u1", "stored"))

	id, err := ResolveOrder(ctx, "u1", "", pending)
	require.NoError(t, err)
	assert.Equal(t, "stored", id)

	id, err = ResolveOrder(ctx, "u1", "from-query", pending)
	require.NoError(t, err)
	assert.Equal(t, "from-query", id)

	require.NoError(t, pending.Clear(ctx, "u1"))
	_, err = ResolveOrder(ctx, "u1", "", pending)
	assert.ErrorIs(t, err, ErrMissingOrderContext)
}
