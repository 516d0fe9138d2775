package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/glacier"
	"github.com/aretw0/glacier/internal/config"
	"github.com/aretw0/glacier/pkg/adapters/env"
	"github.com/aretw0/glacier/pkg/adapters/httpclient"
	"github.com/aretw0/glacier/pkg/adapters/memory"
	"github.com/aretw0/glacier/pkg/adapters/redis"
	"github.com/aretw0/glacier/pkg/ports"
)

// EngineOptions are the inputs shared by every command that builds an engine.
type EngineOptions struct {
	Config *config.Config
	Logger *slog.Logger
	Debug  bool
	Stdout io.Writer
	Stderr io.Writer
	Extra  []glacier.Option
}

// closer releases resources opened by createEngine.
type closer func() error

// createEngine initializes a Glacier engine with standard CLI conventions:
// environment, secrets, key-value backend, outbound client and assets all come
// from the configuration.
func createEngine(ctx context.Context, scriptPath string, opts EngineOptions) (*glacier.Engine, closer, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	kv, closeKV, err := createKV(ctx, cfg.KV)
	if err != nil {
		return nil, nil, err
	}

	engineOpts := []glacier.Option{
		glacier.WithLogger(logger),
		glacier.WithScriptName(filepath.Base(scriptPath)),
		glacier.WithEntryPoint(cfg.EntryPoint),
		glacier.WithLoopCeiling(cfg.LoopCeiling),
		glacier.WithDrainPolicy(drainPolicy(cfg.DrainPolicy)),
		glacier.WithEnvironment(createEnvironment(cfg)),
		glacier.WithKV(kv),
		glacier.WithHTTPClient(httpclient.New(cfg.HTTP.Timeout)),
		glacier.WithHighResolutionTime(cfg.Features.HighResolutionTime),
		glacier.WithFastInterpreter(cfg.Features.FastInterpreter),
	}
	if opts.Stdout != nil || opts.Stderr != nil {
		engineOpts = append(engineOpts, glacier.WithOutput(writerOr(opts.Stdout, os.Stdout), writerOr(opts.Stderr, os.Stderr)))
	}
	if cfg.AssetsDir != "" {
		engineOpts = append(engineOpts, glacier.WithAssets(os.DirFS(cfg.AssetsDir)))
	}
	if opts.Debug {
		engineOpts = append(engineOpts, glacier.WithLifecycleHooks(createDebugHooks(logger)))
	}
	engineOpts = append(engineOpts, opts.Extra...)

	return glacier.New(engineOpts...), closeKV, nil
}

func drainPolicy(name string) glacier.DrainPolicy {
	if name == config.DrainAbortProcess {
		return glacier.DrainAbortProcess
	}
	return glacier.DrainFailInvocation
}

func createEnvironment(cfg *config.Config) *env.Environment {
	opts := []env.Option{
		env.WithAllow(cfg.Env.Allow...),
		env.WithValues(cfg.Env.Values),
	}
	for name, slots := range cfg.Secrets {
		converted := make([]env.Slot, 0, len(slots))
		for _, s := range slots {
			converted = append(converted, env.Slot{Slot: s.Slot, Value: s.Value})
		}
		opts = append(opts, env.WithSecret(name, converted...))
	}
	return env.New(opts...)
}

func createKV(ctx context.Context, cfg config.KVConfig) (ports.KVOpener, closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		opts := []redis.Option{redis.WithBloomFilters(cfg.BloomFilters)}
		if len(cfg.Stores) > 0 {
			opts = append(opts, redis.WithStores(cfg.Stores...))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store, store.Close, nil
	default:
		kv := memory.NewKV(cfg.Stores...)
		for store, values := range cfg.Seed {
			for key, value := range values {
				kv.Put(store, key, []byte(value))
			}
		}
		return kv, func() error { return nil }, nil
	}
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
