package runtime

import (
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/dop251/goja"
)

// RejectionTracker records promises rejected without a handler.
// It is fed by goja's rejection callback: a rejection adds the promise, a late
// handler removes it again.
type RejectionTracker struct {
	order []*goja.Promise
	set   map[*goja.Promise]struct{}
}

// NewRejectionTracker returns an empty tracker.
func NewRejectionTracker() *RejectionTracker {
	return &RejectionTracker{set: make(map[*goja.Promise]struct{})}
}

// Track is installed with goja.Runtime.SetPromiseRejectionTracker.
func (t *RejectionTracker) Track(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		if _, ok := t.set[p]; ok {
			return
		}
		t.set[p] = struct{}{}
		t.order = append(t.order, p)
	case goja.PromiseRejectionHandle:
		delete(t.set, p)
	}
}

// Len returns the number of outstanding rejections.
func (t *RejectionTracker) Len() int {
	return len(t.set)
}

// Drain renders every outstanding rejection and empties the tracker.
func (t *RejectionTracker) Drain() []domain.Diagnostic {
	var diags []domain.Diagnostic
	for _, p := range t.order {
		if _, ok := t.set[p]; !ok {
			continue
		}
		message, stack := describe(p.Result())
		diags = append(diags, domain.Diagnostic{
			Kind:    domain.DiagnosticRejection,
			Message: message,
			Stack:   stack,
		})
	}
	t.order = nil
	t.set = make(map[*goja.Promise]struct{})
	return diags
}
