package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/glacier/internal/runtime"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initFails(t *testing.T, ctx context.Context, script string) (*runtime.Engine, *domain.FatalError, string) {
	t.Helper()
	var stderr bytes.Buffer
	engine := runtime.NewEngine(runtime.WithOutput(&bytes.Buffer{}, &stderr))

	reactor, err := engine.Initialize(ctx, strings.NewReader(script))
	require.Error(t, err)
	assert.Nil(t, reactor)

	var fe *domain.FatalError
	require.ErrorAs(t, err, &fe)
	return engine, fe, stderr.String()
}

func TestEngine_InitializeOnce(t *testing.T) {
	engine := runtime.NewEngine(runtime.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	assert.Equal(t, domain.StateUninitialized, engine.State())

	reactor, err := engine.Initialize(context.Background(), strings.NewReader(`function process() {}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StateFrozen, engine.State())
	assert.Same(t, engine, reactor.Engine())

	_, err = engine.Initialize(context.Background(), strings.NewReader(`function process() {}`))
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
	assert.Equal(t, domain.StateFrozen, engine.State())
}

func TestEngine_CompileError(t *testing.T) {
	engine, fe, stderr := initFails(t, context.Background(), `function process( {`)

	assert.Equal(t, domain.StageCompile, fe.Stage)
	assert.Equal(t, domain.StateFailed, engine.State())
	require.NotEmpty(t, fe.Diagnostics)
	assert.Equal(t, domain.DiagnosticException, fe.Diagnostics[0].Kind)
	assert.Contains(t, stderr, "Exception: ")

	_, err := engine.Initialize(context.Background(), strings.NewReader(`function process() {}`))
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized, "a failed engine cannot be retried")
}

func TestEngine_TopLevelThrow(t *testing.T) {
	_, fe, stderr := initFails(t, context.Background(), `throw new Error('boom');`)

	assert.Equal(t, domain.StageEvaluate, fe.Stage)
	require.NotEmpty(t, fe.Diagnostics)
	assert.Contains(t, fe.Diagnostics[0].Message, "boom")
	assert.Contains(t, stderr, "boom")
	assert.Contains(t, fe.Error(), "evaluating script")
}

func TestEngine_InitTaskFailure(t *testing.T) {
	_, fe, _ := initFails(t, context.Background(), `
		queueTask(function () { throw new Error('late'); });
		function process() {}
	`)

	assert.Equal(t, domain.StageDrain, fe.Stage)
	assert.Contains(t, fe.Diagnostics[0].Message, "late")
}

func TestEngine_InitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, fe, _ := initFails(t, ctx, `
		queueTask(function () {});
		function process() {}
	`)

	assert.Equal(t, domain.StageDrain, fe.Stage)
	assert.True(t, errors.Is(fe, context.Canceled))
	assert.Empty(t, fe.Diagnostics)
}

func TestEngine_InitTasksRunBeforeFreeze(t *testing.T) {
	reactor, _ := start(t, `
		let ready = 'no';
		queueTask(function () {
			queueTask(function () { ready = 'yes'; });
		});
		Promise.resolve().then(function () { ready = ready + '?'; });
		function process() {
			fastedge.sendResponse(200, '[]', ready);
		}
	`)

	assert.Equal(t, "yes", body(t, reactor))
}

func TestEngine_InitRejectionIsNotFatal(t *testing.T) {
	var rejections int
	hooks := domain.LifecycleHooks{
		OnInitialized: func(_ context.Context, ev *domain.InitEvent) {
			rejections = ev.Rejections
			assert.NoError(t, ev.Err)
		},
	}

	_, out := start(t, `
		Promise.reject(new Error('ignored'));
		function process() {}
	`, runtime.WithLifecycleHooks(hooks))

	assert.Equal(t, 1, rejections)
	assert.Contains(t, out.Stderr.String(), "Promise rejected but never handled: Error: ignored")
}

func TestEngine_FastInterpreterSkipsSourceMaps(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			fastedge.sendResponse(200, '[]', 'ok');
		}
		//# sourceMappingURL=bundle.js.map
	`, runtime.WithFastInterpreter(true))

	assert.Equal(t, "ok", body(t, reactor))
}
