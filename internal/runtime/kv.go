package runtime

import (
	"errors"
	"strings"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
	"github.com/dop251/goja"
)

// defineKV installs the KvStore global. KvStore.open(name) returns a read-only
// handle exposing get, scan, zrange, zscan and bfExists. Values and sorted set
// members reach the script as binary.
func (e *Engine) defineKV() error {
	kv := e.vm.NewObject()
	if err := kv.Set("open", e.kvOpen); err != nil {
		return err
	}
	return e.vm.Set("KvStore", kv)
}

func (e *Engine) kvOpen(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "KvStore.open", 1)
	name := call.Argument(0).String()
	if e.kv == nil {
		e.throwKV(name, "opening store", domain.ErrNoSuchStore)
	}
	store, err := e.kv.Open(e.ctx, name)
	if err != nil {
		e.throwKV(name, "opening store", err)
	}
	return e.kvHandle(name, store)
}

func (e *Engine) kvHandle(name string, store ports.KVStore) *goja.Object {
	h := e.vm.NewObject()

	_ = h.Set("get", func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "get", 1)
		key := call.Argument(0).String()
		value, ok, err := store.Get(e.ctx, key)
		if err != nil {
			e.throwKV(name, "getting key "+key, err)
		}
		if !ok {
			return goja.Null()
		}
		return e.vm.ToValue(e.vm.NewArrayBuffer(value))
	})

	_ = h.Set("scan", func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "scan", 1)
		pattern := call.Argument(0).String()
		if !strings.Contains(pattern, "*") {
			panic(e.vm.NewTypeError("scan: pattern %q must contain '*' (e.g. 'foo*')", pattern))
		}
		keys, err := store.Scan(e.ctx, pattern)
		if err != nil {
			e.throwKV(name, "scanning "+pattern, err)
		}
		return e.stringArray(keys)
	})

	_ = h.Set("zrange", func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "zrange", 3)
		key := call.Argument(0).String()
		members, err := store.ZRange(e.ctx, key, call.Argument(1).ToFloat(), call.Argument(2).ToFloat())
		if err != nil {
			e.throwKV(name, "zrange for key "+key, err)
		}
		items := make([]any, len(members))
		for i, m := range members {
			items[i] = e.vm.NewArrayBuffer([]byte(m))
		}
		return e.vm.NewArray(items...)
	})

	_ = h.Set("zscan", func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "zscan", 2)
		key := call.Argument(0).String()
		entries, err := store.ZScan(e.ctx, key, call.Argument(1).String())
		if err != nil {
			e.throwKV(name, "zscan for key "+key, err)
		}
		items := make([]any, len(entries))
		for i, entry := range entries {
			items[i] = e.vm.NewArray(e.uint8Array([]byte(entry.Member)), entry.Score)
		}
		return e.vm.NewArray(items...)
	})

	_ = h.Set("bfExists", func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "bfExists", 2)
		key := call.Argument(0).String()
		ok, err := store.BFExists(e.ctx, key, call.Argument(1).String())
		if err != nil {
			e.throwKV(name, "checking bloom filter for key "+key, err)
		}
		return e.vm.ToValue(ok)
	})

	return h
}

func (e *Engine) stringArray(values []string) goja.Value {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return e.vm.NewArray(items...)
}

func (e *Engine) uint8Array(b []byte) goja.Value {
	arr, err := e.vm.New(e.vm.Get("Uint8Array"), e.vm.ToValue(e.vm.NewArrayBuffer(b)))
	if err != nil {
		panic(e.vm.NewGoError(err))
	}
	return arr
}

// throwKV maps a store error onto the host error kinds.
func (e *Engine) throwKV(store, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSuchStore):
		e.throw("KvStoreError", "No such store: %s", store)
	case errors.Is(err, domain.ErrAccessDenied):
		e.throw("KvStoreError", "Access denied to store: %s", store)
	case errors.Is(err, domain.ErrStoreInternal):
		e.throw("KvStoreError", "Internal error %s in store %s", op, store)
	default:
		e.throw("KvStoreError", "Error %s in store %s: %v", op, store, err)
	}
}
