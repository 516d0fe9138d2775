package domain

// Method is the HTTP method of an inbound request.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodHead
	MethodPatch
	MethodOptions
)

var methodNames = map[Method]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodHead:    "HEAD",
	MethodPatch:   "PATCH",
	MethodOptions: "OPTIONS",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMethod maps a wire method name to a Method. Matching is exact, as on the wire.
func ParseMethod(s string) Method {
	for m, name := range methodNames {
		if name == s {
			return m
		}
	}
	return MethodUnknown
}

// Header is a single name/value pair. Header lists keep order and allow duplicates.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// HeadersFromPairs converts wire tuples into a header list.
// Tuples with fewer than two elements are skipped.
func HeadersFromPairs(pairs [][]string) []Header {
	headers := make([]Header, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		headers = append(headers, Header{Name: p[0], Value: p[1]})
	}
	return headers
}

// Pairs converts a header list back into wire tuples.
func Pairs(headers []Header) [][]string {
	pairs := make([][]string, 0, len(headers))
	for _, h := range headers {
		pairs = append(pairs, []string{h.Name, h.Value})
	}
	return pairs
}

// Request is an inbound unit of work. It is built fresh for every invocation.
type Request struct {
	Method  Method
	URI     string
	Headers []Header

	// Body is only meaningful when HasBody is true. An absent body is distinct
	// from an empty one.
	Body    []byte
	HasBody bool
}

// NewRequest builds a request without a body.
func NewRequest(method Method, uri string, headers ...Header) Request {
	return Request{
		Method:  method,
		URI:     uri,
		Headers: append([]Header(nil), headers...),
	}
}

// WithBody returns a copy of the request carrying body.
func (r Request) WithBody(body []byte) Request {
	r.Body = append([]byte{}, body...)
	r.HasBody = true
	return r
}

// BodyFromWire decodes a wire body where NoBodySentinel means "absent".
func BodyFromWire(s string) ([]byte, bool) {
	if s == NoBodySentinel {
		return nil, false
	}
	return []byte(s), true
}
