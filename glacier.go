package glacier

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aretw0/glacier/internal/logging"
	"github.com/aretw0/glacier/internal/runtime"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
)

// Outcome is the full result of one invocation.
type Outcome = runtime.Outcome

// DrainPolicy decides what a failing deferred task does to the host.
type DrainPolicy = runtime.DrainPolicy

const (
	// DrainFailInvocation fails only the invocation that ran the task.
	DrainFailInvocation = runtime.DrainPolicyFailInvocation
	// DrainAbortProcess terminates the host process.
	DrainAbortProcess = runtime.DrainPolicyAbortProcess
)

// Engine is the high-level entry point for the Glacier library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	reactor     *runtime.Reactor
	runtimeOpts []runtime.EngineOption
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls are merged.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEntryPoint names the global function called for every request (default: "process").
func WithEntryPoint(name string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithEntryPoint(name))
	}
}

// WithLoopCeiling bounds the scheduler iterations of one invocation (default: 50).
func WithLoopCeiling(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLoopCeiling(n))
	}
}

// WithDrainPolicy decides what a task failure during an invocation does (default: DrainFailInvocation).
func WithDrainPolicy(p DrainPolicy) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDrainPolicy(p))
	}
}

// WithExitFunc replaces os.Exit for DrainAbortProcess.
func WithExitFunc(exit func(code int)) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithExitFunc(exit))
	}
}

// WithOutput redirects the script's output and error channels.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithOutput(stdout, stderr))
	}
}

// WithEnvironment backs fastedge.getEnv and the secret lookups.
func WithEnvironment(env ports.Environment) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithEnvironment(env))
	}
}

// WithKV backs the KvStore global.
func WithKV(kv ports.KVOpener) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithKV(kv))
	}
}

// WithHTTPClient performs the outbound requests made by fetch and fastedge.sendRequest.
func WithHTTPClient(c ports.HTTPClient) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHTTPClient(c))
	}
}

// WithAssets exposes fsys to fastedge.readFileSync.
func WithAssets(fsys fs.FS) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAssets(fsys))
	}
}

// WithHighResolutionTime installs performance.now.
func WithHighResolutionTime(enabled bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHighResolutionTime(enabled))
	}
}

// WithFastInterpreter skips source map processing at compile time.
func WithFastInterpreter(enabled bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithFastInterpreter(enabled))
	}
}

// WithScriptName sets the name used in stack traces.
func WithScriptName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New creates an engine. Call Initialize (or InitializeFile) before serving.
func New(opts ...Option) *Engine {
	eng := &Engine{
		logger: logging.NewNop(),
		Name:   "main.js",
	}
	for _, opt := range opts {
		opt(eng)
	}

	rtOpts := append([]runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithScriptName(eng.Name),
	}, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(rtOpts...)
	return eng
}

// Initialize runs the initialization phase on src. Failures are *domain.FatalError.
func (e *Engine) Initialize(ctx context.Context, src io.Reader) error {
	reactor, err := e.runtime.Initialize(ctx, src)
	if err != nil {
		return err
	}
	e.reactor = reactor
	return nil
}

// InitializeFile reads the script at path and initializes the engine with it.
func (e *Engine) InitializeFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return e.Initialize(ctx, f)
}

// State returns the lifecycle state.
func (e *Engine) State() domain.EngineState {
	return e.runtime.State()
}

// Handle runs one invocation and returns everything it produced.
// It fails with domain.ErrNotInitialized before a successful Initialize.
func (e *Engine) Handle(ctx context.Context, req domain.Request) (Outcome, error) {
	if e.reactor == nil {
		return Outcome{}, fmt.Errorf("%w (state: %s)", domain.ErrNotInitialized, e.State())
	}
	return e.reactor.Handle(ctx, req), nil
}

// Process runs one invocation and returns the response to send.
// Whenever the script did not commit a response, or the invocation failed,
// the default failure response is returned instead.
func (e *Engine) Process(ctx context.Context, req domain.Request) domain.Response {
	out, err := e.Handle(ctx, req)
	if err != nil {
		e.logger.Error("request refused", "err", err)
		return domain.DefaultFailureResponse()
	}
	if out.Failure != nil || !out.Response.Committed() {
		e.logger.Warn("returning default failure response",
			"invocation_id", out.InvocationID,
			"truncated", out.Truncated,
			"err", out.Failure,
		)
		return domain.DefaultFailureResponse()
	}
	return out.Response
}
