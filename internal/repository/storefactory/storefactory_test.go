package storefactory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
)

func TestNew_Memory(t *testing.T) {
	stores, err := New(&config.Config{Store: config.StoreConfig{Driver: "memory"}})
	require.NoError(t, err)
	assert.Equal(t, "memory", stores.Driver)

	ctx := context.Background()
	require.NoError(t, stores.Ping(ctx))

	err = stores.Tx.WithTx(ctx, func(ctx context.Context) error {
		return stores.Users.Create(ctx, &account.User{ID: "u1", Username: "alice000"})
	})
	require.NoError(t, err)

	exists, err := stores.Users.UsernameExists(ctx, "alice000")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, stores.Close(ctx))
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(&config.Config{Store: config.StoreConfig{Driver: "sqlite"}})
	assert.Error(t, err)
}
