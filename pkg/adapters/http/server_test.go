package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/glacier/internal/logging"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProcessor records the requests it sees and answers with a fixed response.
type MockProcessor struct {
	mu       sync.Mutex
	Requests []domain.Request
	Response domain.Response
}

func (m *MockProcessor) Process(ctx context.Context, req domain.Request) domain.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return m.Response
}

func (m *MockProcessor) last(t *testing.T) domain.Request {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.Requests)
	return m.Requests[len(m.Requests)-1]
}

func newTestHandler(p Processor, opts ...Option) http.Handler {
	return NewHandler(p, append([]Option{WithLogger(logging.NewNop())}, opts...)...)
}

func TestInvoke_ForwardsRequest(t *testing.T) {
	proc := &MockProcessor{Response: domain.Response{
		Status:  201,
		Headers: []domain.Header{{Name: "x-one", Value: "1"}, {Name: "x-one", Value: "2"}},
		Body:    []byte("created"),
		HasBody: true,
	}}
	handler := newTestHandler(proc)

	req := httptest.NewRequest("POST", "http://example.com/items?id=7", strings.NewReader("payload"))
	req.Header.Set("X-Trace", "abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "created", w.Body.String())
	assert.Equal(t, []string{"1", "2"}, w.Result().Header.Values("X-One"))

	got := proc.last(t)
	assert.Equal(t, domain.MethodPost, got.Method)
	assert.Equal(t, "http://example.com/items?id=7", got.URI)
	assert.True(t, got.HasBody)
	assert.Equal(t, "payload", string(got.Body))
	assert.Contains(t, got.Headers, domain.Header{Name: "host", Value: "example.com"})
	assert.Contains(t, got.Headers, domain.Header{Name: "x-trace", Value: "abc"})
}

func TestInvoke_NoBody(t *testing.T) {
	proc := &MockProcessor{Response: domain.Response{Status: 204}}
	handler := newTestHandler(proc)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, 204, w.Code)
	assert.Empty(t, w.Body.String())
	assert.False(t, proc.last(t).HasBody)
}

func TestInvoke_HeadOmitsBody(t *testing.T) {
	proc := &MockProcessor{Response: domain.Response{Status: 200, Body: []byte("x"), HasBody: true}}
	handler := newTestHandler(proc)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("HEAD", "/page", nil))

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, domain.MethodHead, proc.last(t).Method)
}

func TestInvoke_UnsupportedMethod(t *testing.T) {
	proc := &MockProcessor{}
	handler := newTestHandler(proc)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("TRACE", "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, proc.Requests)
}

func TestInvoke_BodyTooLarge(t *testing.T) {
	proc := &MockProcessor{}
	handler := newTestHandler(proc, WithMaxBody(4))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("0123456789")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, proc.Requests)
}

func TestNewHandler_NilLoggerKeepsDefault(t *testing.T) {
	proc := &MockProcessor{}
	handler := NewHandler(proc, WithLogger(nil), WithMaxBody(4))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("0123456789")))
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestReservedRoutes(t *testing.T) {
	proc := &MockProcessor{Response: domain.Response{Status: 200}}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	handler := newTestHandler(proc, WithVersion("1.2.3"), WithMetrics(metrics))

	t.Run("Health", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", ReservedPrefix+"/health", nil))

		assert.Equal(t, 200, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("Info", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", ReservedPrefix+"/info", nil))

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "1.2.3", body["version"])
	})

	t.Run("Metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", ReservedPrefix+"/metrics", nil))

		assert.Equal(t, "# metrics", w.Body.String())
	})

	assert.Empty(t, proc.Requests, "reserved routes never reach the script")
}

func TestCORS(t *testing.T) {
	proc := &MockProcessor{Response: domain.Response{Status: 200}}
	handler := newTestHandler(proc, WithCORS(true))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
