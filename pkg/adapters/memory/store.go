package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
)

// KV implements ports.KVOpener in memory.
// Safe for concurrent use.
type KV struct {
	mu     sync.RWMutex
	stores map[string]*bucket
	denied map[string]bool
}

type bucket struct {
	values map[string][]byte
	sorted map[string][]ports.ScoredMember
	bloom  map[string]map[string]struct{}
}

func newBucket() *bucket {
	return &bucket{
		values: make(map[string][]byte),
		sorted: make(map[string][]ports.ScoredMember),
		bloom:  make(map[string]map[string]struct{}),
	}
}

// NewKV creates an in-memory key-value backend with the given (empty) stores.
func NewKV(stores ...string) *KV {
	kv := &KV{
		stores: make(map[string]*bucket),
		denied: make(map[string]bool),
	}
	for _, name := range stores {
		kv.stores[name] = newBucket()
	}
	return kv
}

func (kv *KV) bucket(store string) *bucket {
	b, ok := kv.stores[store]
	if !ok {
		b = newBucket()
		kv.stores[store] = b
	}
	return b
}

// Put sets a value, creating the store if needed.
func (kv *KV) Put(store, key string, value []byte) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.bucket(store).values[key] = append([]byte(nil), value...)
}

// ZAdd adds a member to a sorted set.
func (kv *KV) ZAdd(store, key string, score float64, member string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	b := kv.bucket(store)
	set := b.sorted[key]
	for i, m := range set {
		if m.Member == member {
			set = append(set[:i], set[i+1:]...)
			break
		}
	}
	set = append(set, ports.ScoredMember{Member: member, Score: score})
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Score == set[j].Score {
			return set[i].Member < set[j].Member
		}
		return set[i].Score < set[j].Score
	})
	b.sorted[key] = set
}

// BFAdd adds a value to a bloom filter. The memory backend is exact.
func (kv *KV) BFAdd(store, key, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	b := kv.bucket(store)
	if b.bloom[key] == nil {
		b.bloom[key] = make(map[string]struct{})
	}
	b.bloom[key][value] = struct{}{}
}

// Load seeds the backend from a fixture.
func (kv *KV) Load(f ports.KVFixture) {
	kv.mu.Lock()
	kv.bucket(f.Store)
	kv.mu.Unlock()

	for k, v := range f.Values {
		kv.Put(f.Store, k, []byte(v))
	}
	for k, members := range f.Sorted {
		for _, m := range members {
			kv.ZAdd(f.Store, k, m.Score, m.Member)
		}
	}
	for k, values := range f.Bloom {
		for _, v := range values {
			kv.BFAdd(f.Store, k, v)
		}
	}
}

// Deny makes Open fail with domain.ErrAccessDenied for store.
func (kv *KV) Deny(store string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.denied[store] = true
}

// Open returns a read-only view of store.
func (kv *KV) Open(ctx context.Context, name string) (ports.KVStore, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.denied[name] {
		return nil, domain.ErrAccessDenied
	}
	if _, ok := kv.stores[name]; !ok {
		return nil, domain.ErrNoSuchStore
	}
	return &view{kv: kv, name: name}, nil
}

type view struct {
	kv   *KV
	name string
}

func (v *view) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v.kv.mu.RLock()
	defer v.kv.mu.RUnlock()
	value, ok := v.kv.stores[v.name].values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (v *view) Scan(ctx context.Context, pattern string) ([]string, error) {
	v.kv.mu.RLock()
	defer v.kv.mu.RUnlock()
	var keys []string
	for k := range v.kv.stores[v.name].values {
		if matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *view) ZRange(ctx context.Context, key string, min, max float64) ([]string, error) {
	v.kv.mu.RLock()
	defer v.kv.mu.RUnlock()
	var members []string
	for _, m := range v.kv.stores[v.name].sorted[key] {
		if m.Score >= min && m.Score <= max {
			members = append(members, m.Member)
		}
	}
	return members, nil
}

func (v *view) ZScan(ctx context.Context, key, pattern string) ([]ports.ScoredMember, error) {
	v.kv.mu.RLock()
	defer v.kv.mu.RUnlock()
	var entries []ports.ScoredMember
	for _, m := range v.kv.stores[v.name].sorted[key] {
		if matchGlob(pattern, m.Member) {
			entries = append(entries, m)
		}
	}
	return entries, nil
}

func (v *view) BFExists(ctx context.Context, key, value string) (bool, error) {
	v.kv.mu.RLock()
	defer v.kv.mu.RUnlock()
	_, ok := v.kv.stores[v.name].bloom[key][value]
	return ok, nil
}

// matchGlob matches s against a pattern where only '*' is special.
func matchGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}
