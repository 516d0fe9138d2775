package runtime

import (
	"fmt"

	"github.com/aretw0/glacier/pkg/domain"
)

// ResponseSink holds the response committed by the current invocation.
// It is owned by the engine and reset at the start of every invocation.
type ResponseSink struct {
	resp domain.Response
}

// Reset clears the sink back to StatusUnset.
func (s *ResponseSink) Reset() {
	s.resp = domain.Response{}
}

// Commit records resp. The last commit of an invocation wins.
func (s *ResponseSink) Commit(resp domain.Response) error {
	if !domain.ValidStatus(resp.Status) {
		return fmt.Errorf("%w: %d", domain.ErrInvalidStatus, resp.Status)
	}
	s.resp = domain.Response{
		Status:  resp.Status,
		Headers: append([]domain.Header(nil), resp.Headers...),
		Body:    append([]byte(nil), resp.Body...),
		HasBody: resp.HasBody,
	}
	return nil
}

// Committed reports whether a terminal status has been set.
func (s *ResponseSink) Committed() bool {
	return s.resp.Committed()
}

// Snapshot returns a copy of the current contents.
func (s *ResponseSink) Snapshot() domain.Response {
	out := s.resp
	out.Headers = append([]domain.Header(nil), s.resp.Headers...)
	out.Body = append([]byte(nil), s.resp.Body...)
	return out
}
