package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	goruntime "runtime"
	"runtime/debug"
	"time"

	"github.com/aretw0/glacier/internal/logging"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// Engine owns the script realm. It is initialized exactly once; the resulting
// Reactor serves every request afterwards.
type Engine struct {
	state   domain.EngineState
	vm      *goja.Runtime
	tasks   taskQueue
	tracker *RejectionTracker
	sink    ResponseSink

	// Per-call context. serving is false during initialization, which keeps
	// environment and secret lookups closed until requests are handled.
	ctx          context.Context
	serving      bool
	invocationID string
	startedAt    time.Time

	logger          *slog.Logger
	hooks           domain.LifecycleHooks
	stdout          io.Writer
	stderr          io.Writer
	entryPoint      string
	ceiling         int
	policy          DrainPolicy
	exit            func(int)
	env             ports.Environment
	kv              ports.KVOpener
	client          ports.HTTPClient
	assets          fs.FS
	highResTime     bool
	fastInterpreter bool
	scriptName      string
	seed            func() uint64
	clock           func() time.Time
}

// NewEngine creates an uninitialized engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		state:      domain.StateUninitialized,
		tracker:    NewRejectionTracker(),
		logger:     logging.NewNop(),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		entryPoint: domain.DefaultEntryPoint,
		ceiling:    domain.DefaultLoopCeiling,
		policy:     DrainPolicyFailInvocation,
		exit:       os.Exit,
		scriptName: "main.js",
		seed:       rand.Uint64,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the lifecycle state.
func (e *Engine) State() domain.EngineState {
	return e.state
}

// Initialize compiles and evaluates the script, drains the work it scheduled and
// freezes the engine. It can only be called once. Any failure is a *domain.FatalError
// and leaves the engine unusable.
func (e *Engine) Initialize(ctx context.Context, src io.Reader) (*Reactor, error) {
	if e.state != domain.StateUninitialized {
		return nil, fmt.Errorf("%w (state: %s)", domain.ErrAlreadyInitialized, e.state)
	}
	e.state = domain.StateInitializing
	e.startedAt = e.clock()
	e.ctx = ctx
	defer func() { e.ctx = nil }()

	e.logger.Debug("initializing engine", "script", e.scriptName, "fast_interpreter", e.fastInterpreter)

	rejections, err := e.initialize(ctx, src)
	duration := e.clock().Sub(e.startedAt)

	if e.hooks.OnInitialized != nil {
		e.hooks.OnInitialized(ctx, &domain.InitEvent{
			EventBase:  domain.EventBase{Timestamp: e.clock(), Type: domain.EventInitialized},
			Duration:   duration,
			Rejections: rejections,
			Err:        err,
		})
	}

	if err != nil {
		e.state = domain.StateFailed
		e.logger.Error("initialization failed", "err", err)
		return nil, err
	}

	e.state = domain.StateFrozen
	e.logger.Info("engine frozen", "duration", duration, "rejections", rejections)
	return &Reactor{engine: e}, nil
}

func (e *Engine) initialize(ctx context.Context, src io.Reader) (int, error) {
	e.vm = goja.New()
	e.vm.SetPromiseRejectionTracker(e.tracker.Track)
	e.vm.SetTimeSource(e.clock)
	e.reseed()

	if err := e.defineCapabilities(); err != nil {
		return 0, e.fatal(ctx, domain.StageCapability, err)
	}
	if _, err := e.vm.RunProgram(preludeProgram()); err != nil {
		return 0, e.fatal(ctx, domain.StageCapability, err)
	}

	code, err := io.ReadAll(src)
	if err != nil {
		return 0, e.fatal(ctx, domain.StageCompile, fmt.Errorf("failed to read script: %w", err))
	}

	var parseOpts []parser.Option
	if e.fastInterpreter {
		parseOpts = append(parseOpts, parser.WithDisableSourceMaps)
	}
	ast, err := goja.Parse(e.scriptName, string(code), parseOpts...)
	if err != nil {
		return 0, e.fatal(ctx, domain.StageCompile, err)
	}
	prg, err := goja.CompileAST(ast, false)
	if err != nil {
		return 0, e.fatal(ctx, domain.StageCompile, err)
	}

	if _, err := e.vm.RunProgram(prg); err != nil {
		return 0, e.fatal(ctx, domain.StageEvaluate, err)
	}

	for e.tasks.pending() {
		if err := ctx.Err(); err != nil {
			return 0, e.fatal(ctx, domain.StageDrain, err)
		}
		if err := e.tasks.runPass(); err != nil {
			return 0, e.fatal(ctx, domain.StageDrain, err)
		}
	}

	rejections := e.tracker.Drain()
	for _, d := range rejections {
		e.report(ctx, d)
	}

	goruntime.GC()
	debug.FreeOSMemory()
	return len(rejections), nil
}

// fatal builds the error returned for an aborted initialization and writes its diagnostics.
func (e *Engine) fatal(ctx context.Context, stage string, err error) error {
	fe := &domain.FatalError{Stage: stage, Err: err}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		fe.Diagnostics = append(fe.Diagnostics, diagnosticFromError(err))
	}
	if e.tracker != nil {
		fe.Diagnostics = append(fe.Diagnostics, e.tracker.Drain()...)
	}
	for _, d := range fe.Diagnostics {
		e.report(ctx, d)
	}
	return fe
}

// report writes a diagnostic to the error channel and forwards it to the hooks.
func (e *Engine) report(ctx context.Context, d domain.Diagnostic) {
	fmt.Fprintln(e.stderr, d.String())
	if e.hooks.OnDiagnostic != nil {
		e.hooks.OnDiagnostic(ctx, &domain.DiagnosticEvent{
			EventBase:    domain.EventBase{Timestamp: e.clock(), Type: domain.EventDiagnostic},
			InvocationID: e.invocationID,
			Diagnostic:   d,
		})
	}
}

// reseed gives Math.random a fresh sequence.
func (e *Engine) reseed() {
	r := rand.New(rand.NewPCG(e.seed(), e.seed()))
	e.vm.SetRandSource(r.Float64)
}
