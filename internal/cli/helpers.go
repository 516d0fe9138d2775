package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/glacier/internal/logging"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// CreateLogger configures the application logger from a level name.
// "off" disables logging.
func CreateLogger(level string) (*slog.Logger, error) {
	if level == "off" {
		return logging.NewNop(), nil
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnInitialized: func(ctx context.Context, e *domain.InitEvent) {
			logger.Debug("Initialized", "duration", e.Duration, "rejections", e.Rejections, "err", e.Err)
		},
		OnInvocationStart: func(ctx context.Context, e *domain.InvocationEvent) {
			logger.Debug("Invocation Start", "invocation_id", e.InvocationID, "method", e.Method, "uri", e.URI)
		},
		OnInvocationEnd: func(ctx context.Context, e *domain.InvocationEvent) {
			logger.Debug("Invocation End",
				"invocation_id", e.InvocationID,
				"status", e.Status,
				"iterations", e.Iterations,
				"truncated", e.Truncated,
				"abandoned_tasks", e.AbandonedTasks,
			)
		},
		OnDiagnostic: func(ctx context.Context, e *domain.DiagnosticEvent) {
			logger.Debug("Diagnostic", "invocation_id", e.InvocationID, "kind", e.Diagnostic.Kind)
		},
	}
}

// Printer writes command results, colored when the destination is a terminal.
type Printer struct {
	out *termenv.Output
}

// NewPrinter picks a color profile for w. Non-terminals get plain text.
func NewPrinter(w io.Writer) *Printer {
	profile := termenv.Ascii
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		profile = termenv.EnvColorProfile()
	}
	return &Printer{out: termenv.NewOutput(w, termenv.WithProfile(profile))}
}

// Status prints an HTTP status line colored by class.
func (p *Printer) Status(status int) {
	color := "#22c55e"
	switch {
	case status == domain.StatusUnset:
		color = "#a1a1aa"
	case status >= 500:
		color = "#ef4444"
	case status >= 400:
		color = "#f59e0b"
	case status >= 300:
		color = "#38bdf8"
	}
	label := fmt.Sprintf("HTTP %d", status)
	if status == domain.StatusUnset {
		label = "HTTP (no response)"
	}
	fmt.Fprintln(p.out, p.out.String(label).Foreground(p.out.Color(color)).Bold())
}

// Field prints a dimmed "name: value" line.
func (p *Printer) Field(name string, value any) {
	fmt.Fprintf(p.out, "%s %v\n", p.out.String(name+":").Faint(), value)
}

// Message prints a standardized system message.
func (p *Printer) Message(format string, args ...any) {
	fmt.Fprintf(p.out, ">>> %s\n", fmt.Sprintf(format, args...))
}

// Error prints a failure line.
func (p *Printer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.out, p.out.String("error: "+msg).Foreground(p.out.Color("#ef4444")))
}

// Raw writes text as is.
func (p *Printer) Raw(s string) {
	fmt.Fprint(p.out, s)
}
