package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	cashier := &model.Cashier{ID: 3, Username: "kassir", FilialID: 4}
	require.NoError(t, store.Save(ctx, &Credentials{Access: "a", Refresh: "r", Cashier: cashier}))

	cashier.FilialID = 99

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Access)
	assert.Equal(t, "r", got.Refresh)
	assert.Equal(t, int64(4), got.Cashier.FilialID)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTokenStore_SaveNil(t *testing.T) {
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), nil))

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
