package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMongo starts a MongoDB container and connects a cache backend to it.
func setupMongo(t *testing.T) (*Mongo, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	backend, err := ConnectMongo(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "cache_test")
	require.NoError(t, err)

	cleanup := func() {
		_ = backend.Close(ctx)
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return backend, cleanup
}

func TestMongo_StoreRoundTrip(t *testing.T) {
	backend, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(backend, time.Minute)

	key := NewKey(KindStockQuote, "symbol", "AAPL").String()
	store.Set(ctx, key, map[string]string{"price": "189.41"})

	var got map[string]string
	require.True(t, store.Get(ctx, key, &got))
	assert.Equal(t, "189.41", got["price"])

	store.Delete(ctx, key)
	assert.False(t, store.Get(ctx, key, &got))
}

func TestMongo_ExpiredEntryIsMissBeforeReaperRuns(t *testing.T) {
	backend, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "k", []byte(`1`), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMongo_PrefixScanAndInvalidate(t *testing.T) {
	backend, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(backend, time.Minute)

	store.Set(ctx, NewKey(KindRSI, "symbol", "AAPL", "interval", "daily").String(), 1)
	store.Set(ctx, NewKey(KindRSI, "symbol", "MSFT", "interval", "daily").String(), 2)
	store.Set(ctx, NewKey(KindMACD, "symbol", "AAPL", "interval", "daily").String(), 3)

	removed := store.DeleteWhere(ctx, []Kind{KindRSI, KindMACD}, func(k Key) bool {
		return k.Params["symbol"] == "AAPL"
	})
	assert.Equal(t, 2, removed)

	keys, err := backend.Keys(ctx, KindRSI.Prefix())
	require.NoError(t, err)
	assert.Equal(t, []string{"rsi:interval:daily:symbol:MSFT"}, keys)
}
