package domain

// Response is what the script commits for an invocation.
type Response struct {
	Status  int
	Headers []Header
	Body    []byte
	HasBody bool
}

// Committed reports whether a terminal status has been set.
func (r Response) Committed() bool {
	return r.Status >= MinStatus
}

// ValidStatus reports whether status may be committed.
func ValidStatus(status int) bool {
	return status >= MinStatus && status <= MaxStatus
}

// DefaultFailureResponse is substituted at the host boundary whenever an invocation
// ends without a committed response.
func DefaultFailureResponse() Response {
	return Response{
		Status:  500,
		Headers: []Header{{Name: "content-type", Value: "text/plain"}},
		Body:    []byte("Error: Internal Server Error"),
		HasBody: true,
	}
}

// Header returns the first value for name (case-sensitive) and whether it was found.
func (r Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}
