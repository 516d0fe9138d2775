// Package env resolves environment variables and versioned secrets for scripts.
package env

import (
	"os"
	"sort"
)

// Slot is one version of a secret, effective from Slot onwards.
type Slot struct {
	Slot  uint64
	Value string
}

// Environment implements ports.Environment.
// Process variables are only visible when allow-listed.
type Environment struct {
	allow   map[string]bool
	values  map[string]string
	secrets map[string][]Slot
	lookup  func(string) (string, bool)
}

type Option func(*Environment)

// WithAllow exposes the named process environment variables.
func WithAllow(names ...string) Option {
	return func(e *Environment) {
		for _, n := range names {
			e.allow[n] = true
		}
	}
}

// WithValues adds static variables. They take precedence over the process environment.
func WithValues(values map[string]string) Option {
	return func(e *Environment) {
		for k, v := range values {
			e.values[k] = v
		}
	}
}

// WithSecret registers the versions of a secret.
func WithSecret(name string, slots ...Slot) Option {
	return func(e *Environment) {
		e.secrets[name] = append(e.secrets[name], slots...)
		sort.SliceStable(e.secrets[name], func(i, j int) bool {
			return e.secrets[name][i].Slot < e.secrets[name][j].Slot
		})
	}
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(e *Environment) {
		e.lookup = lookup
	}
}

// New creates an Environment.
func New(opts ...Option) *Environment {
	e := &Environment{
		allow:   make(map[string]bool),
		values:  make(map[string]string),
		secrets: make(map[string][]Slot),
		lookup:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Environment) Getenv(key string) (string, bool) {
	if v, ok := e.values[key]; ok {
		return v, true
	}
	if !e.allow[key] {
		return "", false
	}
	return e.lookup(key)
}

// Secret returns the most recent version.
func (e *Environment) Secret(key string) (string, bool) {
	slots := e.secrets[key]
	if len(slots) == 0 {
		return "", false
	}
	return slots[len(slots)-1].Value, true
}

// SecretEffectiveAt returns the latest version whose slot is not after slot.
func (e *Environment) SecretEffectiveAt(key string, slot uint64) (string, bool) {
	slots := e.secrets[key]
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].Slot <= slot {
			return slots[i].Value, true
		}
	}
	return "", false
}
