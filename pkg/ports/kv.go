package ports

import "context"

// KVOpener opens named key-value stores.
type KVOpener interface {
	// Open returns a handle on the named store.
	// Returns domain.ErrNoSuchStore or domain.ErrAccessDenied when the store cannot be used.
	Open(ctx context.Context, name string) (KVStore, error)
}

// KVStore is a read-only view of a single store.
type KVStore interface {
	// Get returns the value stored at key. The boolean is false if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Scan returns the keys matching a glob pattern (only '*' is significant).
	Scan(ctx context.Context, pattern string) ([]string, error)

	// ZRange returns the members of a sorted set with a score in [min, max], in score order.
	ZRange(ctx context.Context, key string, min, max float64) ([]string, error)

	// ZScan returns the entries of a sorted set whose member matches a glob pattern
	// (only '*' is significant), in score order.
	ZScan(ctx context.Context, key, pattern string) ([]ScoredMember, error)

	// BFExists reports whether value was added to the bloom filter at key.
	BFExists(ctx context.Context, key, value string) (bool, error)
}

// ScoredMember is a sorted set entry.
type ScoredMember struct {
	Member string
	Score  float64
}
