package domain

import "strings"

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	DiagnosticException DiagnosticKind = "exception"
	DiagnosticRejection DiagnosticKind = "unhandled_rejection"
	DiagnosticPending   DiagnosticKind = "pending_tasks"
)

// Diagnostic is a rendered script failure.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Stack   string         `json:"stack,omitempty"`
}

// String renders the diagnostic the way it is written to the diagnostics channel.
func (d Diagnostic) String() string {
	var b strings.Builder
	switch d.Kind {
	case DiagnosticRejection:
		b.WriteString("Promise rejected but never handled: ")
	case DiagnosticException:
		b.WriteString("Exception: ")
	}
	b.WriteString(d.Message)
	if d.Stack != "" {
		b.WriteString("\nStack:\n")
		b.WriteString(d.Stack)
	}
	return b.String()
}
