package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventInitialized     EventType = "initialized"
	EventInvocationStart EventType = "invocation_start"
	EventInvocationEnd   EventType = "invocation_end"
	EventDiagnostic      EventType = "diagnostic"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// InitEvent is emitted once, after the engine froze (or failed to).
type InitEvent struct {
	EventBase
	Duration   time.Duration `json:"duration"`
	Rejections int           `json:"rejections"`
	Err        error         `json:"-"`
}

// InvocationEvent describes the start or end of a reactor invocation.
type InvocationEvent struct {
	EventBase
	InvocationID   string        `json:"invocation_id"`
	Method         Method        `json:"method"`
	URI            string        `json:"uri"`
	Status         int           `json:"status,omitempty"`
	Iterations     int           `json:"iterations,omitempty"`
	Truncated      bool          `json:"truncated,omitempty"`
	Rejections     int           `json:"rejections,omitempty"`
	AbandonedTasks int           `json:"abandoned_tasks,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Err            error         `json:"-"`
}

// DiagnosticEvent carries a diagnostic written to the error channel.
type DiagnosticEvent struct {
	EventBase
	InvocationID string     `json:"invocation_id,omitempty"`
	Diagnostic   Diagnostic `json:"diagnostic"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnInitialized     func(context.Context, *InitEvent)
	OnInvocationStart func(context.Context, *InvocationEvent)
	OnInvocationEnd   func(context.Context, *InvocationEvent)
	OnDiagnostic      func(context.Context, *DiagnosticEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnInitialized:     chain(h.OnInitialized, other.OnInitialized),
		OnInvocationStart: chain(h.OnInvocationStart, other.OnInvocationStart),
		OnInvocationEnd:   chain(h.OnInvocationEnd, other.OnInvocationEnd),
		OnDiagnostic:      chain(h.OnDiagnostic, other.OnDiagnostic),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
