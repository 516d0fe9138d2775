package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aretw0/glacier/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe(t *testing.T) {
	engOpts, _ := testEngineOptions(t)
	script := testutils.WriteScript(t, `
		addEventListener('fetch', function (event) {
			event.respondWith(new Response('served ' + event.request.method, {
				status: 200,
				headers: { 'content-type': 'text/plain' }
			}));
		});
	`)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeOptions{
			ScriptPath: script,
			Listener:   ln,
			Ready:      func(addr string) { ready <- addr },
		}, engOpts)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/anything")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "served GET", string(body))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	resp, err = http.Get("http://" + addr + "/_glacier/metrics")
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(metrics), `glacier_invocations_total{outcome="committed"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_InitializationFailure(t *testing.T) {
	engOpts, _ := testEngineOptions(t)
	script := testutils.WriteScript(t, `throw new Error('nope');`)

	err := Serve(context.Background(), ServeOptions{ScriptPath: script, Addr: "127.0.0.1:0"}, engOpts)
	assert.ErrorContains(t, err, "initialization failed")
}
