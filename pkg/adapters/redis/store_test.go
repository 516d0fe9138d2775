package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/glacier/pkg/adapters/redis"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// seeder writes a fixture the way an operator would populate the stores.
func seeder(mr *miniredis.Miniredis, store *redis.Store) func(context.Context, ports.KVFixture) error {
	return func(_ context.Context, f ports.KVFixture) error {
		if _, err := mr.SAdd(store.RegistryKey(), f.Store); err != nil {
			return err
		}
		prefix := store.KeyPrefix(f.Store)
		for k, v := range f.Values {
			if err := mr.Set(prefix+k, v); err != nil {
				return err
			}
		}
		for k, members := range f.Sorted {
			for _, m := range members {
				if _, err := mr.ZAdd(prefix+k, m.Score, m.Member); err != nil {
					return err
				}
			}
		}
		for k, values := range f.Bloom {
			if _, err := mr.SAdd(prefix+k, values...); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestRedisStore_Contract(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client)
	ports.RunKVStoreContract(t, store, seeder(mr, store))
}

func TestRedisStore_Contract_AllowList(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithPrefix("edge:"), redis.WithStores("contract"))
	ports.RunKVStoreContract(t, store, seeder(mr, store))

	assert.True(t, mr.Exists("edge:contract:user:1"))
}

func TestRedisStore_ScanEscapesPrefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithStores("a*"))

	require.NoError(t, mr.Set(store.KeyPrefix("a*")+"k1", "v"))
	require.NoError(t, mr.Set(store.KeyPrefix("ab")+"k2", "v"))

	kv, err := store.Open(context.Background(), "a*")
	require.NoError(t, err)
	keys, err := kv.Scan(context.Background(), "k*")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, keys)
}

func TestRedisStore_BinaryValues(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithStores("s"))
	raw := string([]byte{0xff, 0x00, 0x80})

	require.NoError(t, mr.Set(store.KeyPrefix("s")+"k", raw))
	_, err := mr.ZAdd(store.KeyPrefix("s")+"z", 2.5, raw)
	require.NoError(t, err)

	kv, err := store.Open(context.Background(), "s")
	require.NoError(t, err)

	value, ok, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(raw), value)

	members, err := kv.ZRange(context.Background(), "z", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{raw}, members)

	entries, err := kv.ZScan(context.Background(), "z", "*")
	require.NoError(t, err)
	assert.Equal(t, []ports.ScoredMember{{Member: raw, Score: 2.5}}, entries)
}

func TestRedisStore_BackendFailure(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithStores("s"))
	kv, err := store.Open(context.Background(), "s")
	require.NoError(t, err)

	mr.SetError("server is sad")
	defer mr.SetError("")

	_, _, err = kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrStoreInternal)
}
