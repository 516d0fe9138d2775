package runtime_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/glacier/internal/runtime"
	"github.com/aretw0/glacier/internal/testutils"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/stretchr/testify/require"
)

// start initializes an engine around script and returns its reactor.
func start(t *testing.T, script string, opts ...runtime.EngineOption) (*runtime.Reactor, *testutils.Output) {
	t.Helper()
	out := &testutils.Output{}
	all := append([]runtime.EngineOption{runtime.WithOutput(&out.Stdout, &out.Stderr)}, opts...)
	engine := runtime.NewEngine(all...)
	reactor, err := engine.Initialize(context.Background(), strings.NewReader(script))
	require.NoError(t, err, "stderr: %s", out.Stderr.String())
	return reactor, out
}

func get(uri string) domain.Request {
	return domain.NewRequest(domain.MethodGet, uri)
}

type fakeEnv struct {
	vars    map[string]string
	secrets map[string]string
	slots   []uint64
}

func (f *fakeEnv) Getenv(key string) (string, bool) {
	v, ok := f.vars[key]
	return v, ok
}

func (f *fakeEnv) Secret(key string) (string, bool) {
	v, ok := f.secrets[key]
	return v, ok
}

func (f *fakeEnv) SecretEffectiveAt(key string, slot uint64) (string, bool) {
	f.slots = append(f.slots, slot)
	v, ok := f.secrets[key]
	return v, ok
}

type fakeClient struct {
	requests []domain.Request
	response domain.Response
	err      error
}

func (f *fakeClient) Do(_ context.Context, req domain.Request) (domain.Response, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}
