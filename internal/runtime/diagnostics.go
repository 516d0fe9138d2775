package runtime

import (
	"errors"
	"strings"

	"github.com/aretw0/glacier/pkg/domain"
	"github.com/dop251/goja"
)

// diagnosticFromError renders a script failure. Errors that did not come from a
// JavaScript throw (syntax errors, host errors) carry no stack.
func diagnosticFromError(err error) domain.Diagnostic {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		message, stack := describe(ex.Value())
		if stack == "" {
			stack = strings.TrimSpace(strings.TrimPrefix(ex.String(), message))
		}
		return domain.Diagnostic{Kind: domain.DiagnosticException, Message: message, Stack: stack}
	}
	return domain.Diagnostic{Kind: domain.DiagnosticException, Message: err.Error()}
}

// describe returns a printable message and, for Error objects, the stack.
func describe(v goja.Value) (message, stack string) {
	if v == nil || goja.IsUndefined(v) {
		return "undefined", ""
	}
	if goja.IsNull(v) {
		return "null", ""
	}
	message = safeString(v)
	if obj, ok := v.(*goja.Object); ok {
		if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) && !goja.IsNull(s) {
			stack = strings.TrimSpace(strings.TrimPrefix(safeString(s), message))
		}
	}
	return message, stack
}

// safeString converts v without letting a throwing toString escape.
func safeString(v goja.Value) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = "<unprintable value>"
		}
	}()
	return v.String()
}
