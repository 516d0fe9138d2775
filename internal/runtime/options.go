package runtime

import (
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
)

// DrainPolicy decides what a failing deferred task does to the running invocation.
type DrainPolicy int

const (
	// DrainPolicyFailInvocation fails only the invocation that owns the task.
	DrainPolicyFailInvocation DrainPolicy = iota
	// DrainPolicyAbortProcess writes diagnostics and terminates the process.
	DrainPolicyAbortProcess
)

func (p DrainPolicy) String() string {
	if p == DrainPolicyAbortProcess {
		return "abort_process"
	}
	return "fail_invocation"
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEntryPoint sets the global function called for every request (default: "process").
func WithEntryPoint(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.entryPoint = name
		}
	}
}

// WithLoopCeiling sets the maximum number of scheduler iterations per invocation.
func WithLoopCeiling(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.ceiling = n
		}
	}
}

// WithDrainPolicy selects how task failures during an invocation are handled.
func WithDrainPolicy(p DrainPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithExitFunc replaces os.Exit for DrainPolicyAbortProcess.
func WithExitFunc(exit func(code int)) EngineOption {
	return func(e *Engine) {
		e.exit = exit
	}
}

// WithOutput sets where console output (stdout) and diagnostics (stderr) are written.
func WithOutput(stdout, stderr io.Writer) EngineOption {
	return func(e *Engine) {
		if stdout != nil {
			e.stdout = stdout
		}
		if stderr != nil {
			e.stderr = stderr
		}
	}
}

// WithEnvironment backs getEnv, getSecret and getSecretEffectiveAt.
func WithEnvironment(env ports.Environment) EngineOption {
	return func(e *Engine) {
		e.env = env
	}
}

// WithKV backs the KvStore global.
func WithKV(kv ports.KVOpener) EngineOption {
	return func(e *Engine) {
		e.kv = kv
	}
}

// WithHTTPClient backs fastedge.sendRequest and fetch.
func WithHTTPClient(c ports.HTTPClient) EngineOption {
	return func(e *Engine) {
		e.client = c
	}
}

// WithAssets backs fastedge.readFileSync.
func WithAssets(fsys fs.FS) EngineOption {
	return func(e *Engine) {
		e.assets = fsys
	}
}

// WithHighResolutionTime exposes performance.now().
func WithHighResolutionTime(enabled bool) EngineOption {
	return func(e *Engine) {
		e.highResTime = enabled
	}
}

// WithFastInterpreter compiles scripts without resolving source maps.
func WithFastInterpreter(enabled bool) EngineOption {
	return func(e *Engine) {
		e.fastInterpreter = enabled
	}
}

// WithScriptName sets the file name reported in stack traces.
func WithScriptName(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.scriptName = name
		}
	}
}

// WithSeedSource sets the source of the per-invocation Math.random seed.
func WithSeedSource(seed func() uint64) EngineOption {
	return func(e *Engine) {
		if seed != nil {
			e.seed = seed
		}
	}
}

// WithClock sets the time source used by Date and performance.now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}
