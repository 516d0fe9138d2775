package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// Outcome is the result of one reactor invocation.
type Outcome struct {
	InvocationID string
	// Response is whatever the sink held when the invocation ended. It may be unset.
	Response domain.Response
	// Iterations is the number of scheduler iterations run by the draining loop.
	Iterations int
	// Truncated is true when the loop stopped at the ceiling without a committed response.
	Truncated bool
	// Failure is set when the entry point could not be called or a task failed.
	Failure error
	// Rejections are the unhandled promise rejections reported at the end of the invocation.
	Rejections []domain.Diagnostic
	// AbandonedTasks counts tasks still queued when the invocation ended.
	AbandonedTasks int
}

// OK reports whether the invocation produced a usable response.
func (o Outcome) OK() bool {
	return o.Failure == nil && o.Response.Committed()
}

// Reactor serves requests on a frozen engine. It is only obtainable from
// Engine.Initialize, and it runs one invocation at a time.
type Reactor struct {
	mu     sync.Mutex
	engine *Engine
}

// Engine returns the engine behind the reactor.
func (r *Reactor) Engine() *Engine {
	return r.engine
}

// Handle runs one invocation: it calls the entry point with req and drains deferred
// tasks until a response is committed or the loop ceiling is reached.
func (r *Reactor) Handle(ctx context.Context, req domain.Request) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.engine
	if e.state != domain.StateFrozen {
		panic(fmt.Sprintf("runtime: Handle called on engine in state %s", e.state))
	}

	id := uuid.NewString()
	logger := e.logger.With("invocation_id", id)
	start := e.clock()

	e.beginInvocation(ctx, id)
	defer e.endInvocation()

	if e.hooks.OnInvocationStart != nil {
		e.hooks.OnInvocationStart(ctx, &domain.InvocationEvent{
			EventBase:    domain.EventBase{Timestamp: start, Type: domain.EventInvocationStart},
			InvocationID: id,
			Method:       req.Method,
			URI:          req.URI,
		})
	}

	out := Outcome{InvocationID: id}
	if err := e.callEntry(req); err != nil {
		logger.Warn("entry point failed", "entry_point", e.entryPoint, "err", err)
		out.Failure = err
	} else {
		out.Iterations, out.Truncated, out.Failure = e.drainLoop(ctx, logger)
	}

	if !e.sink.Committed() {
		logger.Warn("service terminated with async tasks pending",
			"pending", e.tasks.len(), "iterations", out.Iterations)
		e.report(ctx, domain.Diagnostic{
			Kind:    domain.DiagnosticPending,
			Message: fmt.Sprintf("service terminated with async tasks pending (%d queued after %d iterations)", e.tasks.len(), out.Iterations),
		})
	}
	out.AbandonedTasks = e.tasks.reset()
	out.Rejections = e.tracker.Drain()
	for _, d := range out.Rejections {
		e.report(ctx, d)
	}
	out.Response = e.sink.Snapshot()

	duration := e.clock().Sub(start)
	logger.Debug("invocation finished",
		"status", out.Response.Status,
		"iterations", out.Iterations,
		"truncated", out.Truncated,
		"duration", duration,
	)

	if e.hooks.OnInvocationEnd != nil {
		e.hooks.OnInvocationEnd(ctx, &domain.InvocationEvent{
			EventBase:      domain.EventBase{Timestamp: e.clock(), Type: domain.EventInvocationEnd},
			InvocationID:   id,
			Method:         req.Method,
			URI:            req.URI,
			Status:         out.Response.Status,
			Iterations:     out.Iterations,
			Truncated:      out.Truncated,
			Rejections:     len(out.Rejections),
			AbandonedTasks: out.AbandonedTasks,
			Duration:       duration,
			Err:            out.Failure,
		})
	}
	return out
}

func (e *Engine) beginInvocation(ctx context.Context, id string) {
	e.sink.Reset()
	e.ctx = ctx
	e.serving = true
	e.invocationID = id
	e.reseed()
}

func (e *Engine) endInvocation() {
	e.ctx = nil
	e.serving = false
	e.invocationID = ""
}

// callEntry builds the request value and calls the entry point synchronously.
func (e *Engine) callEntry(req domain.Request) error {
	fn, ok := goja.AssertFunction(e.vm.Get(e.entryPoint))
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrEntryPointNotFound, e.entryPoint)
	}
	if _, err := fn(goja.Undefined(), e.requestValue(req)); err != nil {
		e.report(e.ctx, diagnosticFromError(err))
		return fmt.Errorf("entry point %q threw: %w", e.entryPoint, err)
	}
	return nil
}

func (e *Engine) requestValue(req domain.Request) goja.Value {
	headers := make([]any, 0, len(req.Headers))
	for _, h := range req.Headers {
		headers = append(headers, e.vm.NewArray(h.Name, h.Value))
	}
	obj := e.vm.NewObject()
	_ = obj.Set("method", req.Method.String())
	_ = obj.Set("url", req.URI)
	_ = obj.Set("headers", e.vm.NewArray(headers...))
	if req.HasBody {
		_ = obj.Set("body", string(req.Body))
	}
	return obj
}

// drainLoop runs scheduler iterations. Each iteration runs one drain pass, then
// checks the sink. It stops once a response is committed or the budget reaches
// the ceiling, whichever comes first.
func (e *Engine) drainLoop(ctx context.Context, logger *slog.Logger) (iterations int, truncated bool, failure error) {
	for budget := 1; ; budget++ {
		if err := e.tasks.runPass(); err != nil {
			return budget, false, e.drainFailure(ctx, err)
		}

		waiting := !e.sink.Committed()
		logger.Debug("reactor iteration", "iteration", budget, "pending", e.tasks.len(), "waiting", waiting)

		switch {
		case !waiting:
			return budget, false, nil
		case budget >= e.ceiling:
			return budget, true, nil
		}
	}
}

// drainFailure applies the drain policy to a failed task.
func (e *Engine) drainFailure(ctx context.Context, err error) error {
	diag := diagnosticFromError(err)
	e.report(ctx, diag)

	failure := fmt.Errorf("%w: %s", domain.ErrDrainFailure, diag.Message)
	if e.policy == DrainPolicyAbortProcess {
		fe := &domain.FatalError{Stage: domain.StageDrain, Err: failure, Diagnostics: []domain.Diagnostic{diag}}
		for _, d := range e.tracker.Drain() {
			e.report(ctx, d)
			fe.Diagnostics = append(fe.Diagnostics, d)
		}
		e.logger.Error("aborting process", "err", fe)
		e.exit(1)
		return fe
	}
	return failure
}
