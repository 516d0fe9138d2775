package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.KVOpener using Redis.
// Keys of store "users" live under "<prefix>users:".
type Store struct {
	client       *backend.Client
	prefix       string
	stores       map[string]bool
	bloomFilters bool
	scanCount    int64
}

type Option func(*Store)

// WithPrefix sets the key prefix for all stores.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithStores restricts Open to the given store names. Without it, a store exists
// when its name is a member of the "<prefix>stores" set.
func WithStores(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.stores[n] = true
		}
	}
}

// WithBloomFilters uses BF.EXISTS (RedisBloom) for bfExists instead of SISMEMBER.
func WithBloomFilters(enabled bool) Option {
	return func(s *Store) {
		s.bloomFilters = enabled
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:    client,
		prefix:    "glacier:kv:",
		stores:    make(map[string]bool),
		scanCount: 100,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// RegistryKey is the set listing known stores when no allow-list is configured.
func (s *Store) RegistryKey() string {
	return s.prefix + "stores"
}

// KeyPrefix returns the prefix under which keys of store are written.
func (s *Store) KeyPrefix(store string) string {
	return s.prefix + store + ":"
}

// Open returns a handle on the named store.
func (s *Store) Open(ctx context.Context, name string) (ports.KVStore, error) {
	if len(s.stores) > 0 {
		if !s.stores[name] {
			return nil, domain.ErrNoSuchStore
		}
		return &handle{store: s, prefix: s.KeyPrefix(name)}, nil
	}

	ok, err := s.client.SIsMember(ctx, s.RegistryKey(), name).Result()
	if err != nil {
		return nil, internal(err)
	}
	if !ok {
		return nil, domain.ErrNoSuchStore
	}
	return &handle{store: s, prefix: s.KeyPrefix(name)}, nil
}

type handle struct {
	store  *Store
	prefix string
}

func (h *handle) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := h.store.client.Get(ctx, h.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, internal(err)
	}
	return val, true, nil
}

func (h *handle) Scan(ctx context.Context, pattern string) ([]string, error) {
	match := escapeGlob(h.prefix) + escapeGlob(pattern, '*')

	var keys []string
	var cursor uint64
	for {
		batch, next, err := h.store.client.Scan(ctx, cursor, match, h.store.scanCount).Result()
		if err != nil {
			return nil, internal(err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, h.prefix))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (h *handle) ZRange(ctx context.Context, key string, min, max float64) ([]string, error) {
	members, err := h.store.client.ZRangeByScore(ctx, h.prefix+key, &backend.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, internal(err)
	}
	return members, nil
}

// ZScan walks the sorted set with ZSCAN. Entries come back in score order; ties
// are ordered by member.
func (h *handle) ZScan(ctx context.Context, key, pattern string) ([]ports.ScoredMember, error) {
	match := escapeGlob(pattern, '*')

	seen := make(map[string]bool)
	var entries []ports.ScoredMember
	var cursor uint64
	for {
		batch, next, err := h.store.client.ZScan(ctx, h.prefix+key, cursor, match, h.store.scanCount).Result()
		if err != nil {
			return nil, internal(err)
		}
		for i := 0; i+1 < len(batch); i += 2 {
			member := batch[i]
			if seen[member] {
				continue
			}
			score, err := strconv.ParseFloat(batch[i+1], 64)
			if err != nil {
				return nil, internal(err)
			}
			seen[member] = true
			entries = append(entries, ports.ScoredMember{Member: member, Score: score})
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score == entries[j].Score {
			return entries[i].Member < entries[j].Member
		}
		return entries[i].Score < entries[j].Score
	})
	return entries, nil
}

func (h *handle) BFExists(ctx context.Context, key, value string) (bool, error) {
	var cmd *backend.BoolCmd
	if h.store.bloomFilters {
		cmd = h.store.client.BFExists(ctx, h.prefix+key, value)
	} else {
		cmd = h.store.client.SIsMember(ctx, h.prefix+key, value)
	}
	ok, err := cmd.Result()
	if err != nil {
		return false, internal(err)
	}
	return ok, nil
}

func internal(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreInternal, err)
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// escapeGlob escapes Redis glob metacharacters in s, except those listed in keep.
func escapeGlob(s string, keep ...rune) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			if !strings.ContainsRune(string(keep), r) {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
