package ports

import (
	"context"
	"testing"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// KVFixture is the data set a store must expose before running the contract.
type KVFixture struct {
	Store  string
	Values map[string]string
	Sorted map[string][]ScoredMember
	Bloom  map[string][]string
}

// ContractFixture returns the data set used by RunKVStoreContract.
func ContractFixture() KVFixture {
	return KVFixture{
		Store: "contract",
		Values: map[string]string{
			"user:1": "alice",
			"user:2": "bob",
			"config": "on",
		},
		Sorted: map[string][]ScoredMember{
			"scores": {
				{Member: "low", Score: 1},
				{Member: "mid", Score: 5},
				{Member: "high", Score: 10},
				{Member: "mild", Score: 7},
			},
		},
		Bloom: map[string][]string{
			"seen": {"a", "b"},
		},
	}
}

// RunKVStoreContract runs a suite of tests to verify that a KVOpener implementation
// adheres to the defined interface contract. seed must load the fixture into the backend.
func RunKVStoreContract(t *testing.T, opener KVOpener, seed func(ctx context.Context, fixture KVFixture) error) {
	ctx := context.Background()
	fixture := ContractFixture()
	require.NoError(t, seed(ctx, fixture), "seeding the fixture should not fail")

	store, err := opener.Open(ctx, fixture.Store)
	require.NoError(t, err, "Open should succeed for a known store")

	t.Run("Open Unknown Store", func(t *testing.T) {
		_, err := opener.Open(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrNoSuchStore)
	})

	t.Run("Get", func(t *testing.T) {
		value, ok, err := store.Get(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "alice", string(value))

		_, ok, err = store.Get(ctx, "user:404")
		require.NoError(t, err)
		assert.False(t, ok, "missing key should report not found")
	})

	t.Run("Scan", func(t *testing.T) {
		keys, err := store.Scan(ctx, "user:*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

		keys, err = store.Scan(ctx, "nothing*")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("ZRange", func(t *testing.T) {
		members, err := store.ZRange(ctx, "scores", 2, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"mid", "mild", "high"}, members)

		members, err = store.ZRange(ctx, "missing", 0, 100)
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("ZScan", func(t *testing.T) {
		entries, err := store.ZScan(ctx, "scores", "mi*")
		require.NoError(t, err)
		assert.Equal(t, []ScoredMember{{Member: "mid", Score: 5}, {Member: "mild", Score: 7}}, entries)

		entries, err = store.ZScan(ctx, "scores", "nothing*")
		require.NoError(t, err)
		assert.Empty(t, entries)

		entries, err = store.ZScan(ctx, "missing", "*")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("BFExists", func(t *testing.T) {
		ok, err := store.BFExists(ctx, "seen", "a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.BFExists(ctx, "seen", "z")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
