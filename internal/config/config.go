// Package config loads the runtime configuration from a YAML file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Drain policies.
const (
	DrainFailInvocation = "fail_invocation"
	DrainAbortProcess   = "abort_process"
)

// KV backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is read once, before initialization.
type Config struct {
	EntryPoint  string `mapstructure:"entry_point" yaml:"entry_point"`
	LoopCeiling int    `mapstructure:"loop_ceiling" yaml:"loop_ceiling"`
	DrainPolicy string `mapstructure:"drain_policy" yaml:"drain_policy"`
	AssetsDir   string `mapstructure:"assets_dir" yaml:"assets_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Features Features                `mapstructure:"features" yaml:"features"`
	Env      EnvConfig               `mapstructure:"env" yaml:"env"`
	Secrets  map[string][]SecretSlot `mapstructure:"secrets" yaml:"secrets"`
	KV       KVConfig                `mapstructure:"kv" yaml:"kv"`
	HTTP     HTTPConfig              `mapstructure:"http" yaml:"http"`
}

// Features toggles optional engine behaviour.
type Features struct {
	// HighResolutionTime exposes performance.now().
	HighResolutionTime bool `mapstructure:"high_resolution_time" yaml:"high_resolution_time"`
	// FastInterpreter skips source map resolution when compiling.
	FastInterpreter bool `mapstructure:"fast_interpreter" yaml:"fast_interpreter"`
}

// EnvConfig controls which variables getEnv can see.
type EnvConfig struct {
	// Allow lists process environment variables visible to scripts.
	Allow []string `mapstructure:"allow" yaml:"allow"`
	// Values are static variables; they shadow the process environment.
	Values map[string]string `mapstructure:"values" yaml:"values"`
}

// SecretSlot is one version of a secret, effective from Slot onwards.
type SecretSlot struct {
	Slot  uint64 `mapstructure:"slot" yaml:"slot"`
	Value string `mapstructure:"value" yaml:"value"`
}

// KVConfig selects and configures the key-value backend.
type KVConfig struct {
	Backend      string   `mapstructure:"backend" yaml:"backend"`
	Stores       []string `mapstructure:"stores" yaml:"stores"`
	BloomFilters bool     `mapstructure:"bloom_filters" yaml:"bloom_filters"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`

	// Seed preloads the memory backend: store -> key -> value.
	Seed map[string]map[string]string `mapstructure:"seed" yaml:"seed"`
}

// RedisConfig holds the connection settings of the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// HTTPConfig configures the host server and the outbound client.
type HTTPConfig struct {
	Addr    string        `mapstructure:"addr" yaml:"addr"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// envOverrides maps environment variables to dotted config keys.
var envOverrides = map[string]string{
	"GLACIER_ENTRY_POINT":  "entry_point",
	"GLACIER_LOOP_CEILING": "loop_ceiling",
	"GLACIER_DRAIN_POLICY": "drain_policy",
	"GLACIER_ASSETS_DIR":   "assets_dir",
	"GLACIER_LOG_LEVEL":    "log_level",
	"GLACIER_KV_BACKEND":   "kv.backend",
	"GLACIER_REDIS_ADDR":   "kv.redis.addr",
	"GLACIER_HTTP_ADDR":    "http.addr",
	"ENABLE_PBL":           "features.fast_interpreter",

	"ENABLE_EXPERIMENTAL_HIGH_RESOLUTION_TIME_METHODS": "features.high_resolution_time",
}

func defaults() map[string]any {
	return map[string]any{
		"entry_point":  "process",
		"loop_ceiling": 50,
		"drain_policy": DrainFailInvocation,
		"log_level":    "info",
		"kv": map[string]any{
			"backend": BackendMemory,
			"redis":   map[string]any{"addr": "localhost:6379"},
		},
		"http": map[string]any{
			"addr":    ":8080",
			"timeout": "30s",
		},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path (optional) and applies overrides from lookup.
// Pass os.LookupEnv for the process environment.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		merge(raw, file)
	}

	if lookup != nil {
		for env, key := range envOverrides {
			if v, ok := lookup(env); ok {
				set(raw, key, v)
			}
		}
	}

	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.EntryPoint == "" {
		errs = append(errs, errors.New("entry_point must not be empty"))
	}
	if c.LoopCeiling < 1 {
		errs = append(errs, fmt.Errorf("loop_ceiling must be positive, got %d", c.LoopCeiling))
	}
	switch c.DrainPolicy {
	case DrainFailInvocation, DrainAbortProcess:
	default:
		errs = append(errs, fmt.Errorf("unknown drain_policy %q", c.DrainPolicy))
	}
	switch c.KV.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown kv.backend %q", c.KV.Backend))
	}
	return errors.Join(errs...)
}

func decode(raw map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[k] = existing
		}
		merge(existing, sub)
	}
}

// set assigns a dotted key, creating intermediate maps.
func set(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
