package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/aretw0/glacier/pkg/codec"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/dop251/goja"
)

type nativeFunc = func(goja.FunctionCall) goja.Value

// defineCapabilities installs the host surface into the realm: the fastedge object,
// the KvStore global, base64, task scheduling and self.
func (e *Engine) defineCapabilities() error {
	vm := e.vm

	fastedge := vm.NewObject()
	var errs []error
	for _, c := range []struct {
		name string
		fn   nativeFunc
	}{
		{"consoleLog", e.consoleLog},
		{"consoleError", e.consoleError},
		{"getEnv", e.getEnv},
		{"getSecret", e.getSecret},
		{"getSecretEffectiveAt", e.getSecretEffectiveAt},
		{"sendRequest", e.sendRequest},
		{"sendResponse", e.sendResponse},
		{"readFileSync", e.readFileSync},
	} {
		errs = append(errs, fastedge.Set(c.name, c.fn))
	}
	errs = append(errs,
		vm.Set("fastedge", fastedge),
		vm.Set("atob", e.atob),
		vm.Set("btoa", e.btoa),
		vm.Set("queueTask", e.queueTask),
		vm.Set("setTimeout", e.setTimeout),
		vm.Set("clearTimeout", e.clearTimeout),
		e.defineText(),
		e.defineSelf(),
		e.defineKV(),
	)
	if e.highResTime {
		errs = append(errs, e.definePerformance())
	}
	return errors.Join(errs...)
}

func (e *Engine) defineSelf() error {
	global := e.vm.GlobalObject()
	getter := e.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return global
	})
	setter := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		e.requireArgs(call, "globalThis.self setter", 1)
		if err := global.DefineDataProperty("self", call.Argument(0), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			panic(e.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	return global.DefineAccessorProperty("self", getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (e *Engine) definePerformance() error {
	perf := e.vm.NewObject()
	if err := perf.Set("now", func(goja.FunctionCall) goja.Value {
		elapsed := e.clock().Sub(e.startedAt)
		return e.vm.ToValue(float64(elapsed.Nanoseconds()) / 1e6)
	}); err != nil {
		return err
	}
	return e.vm.Set("performance", perf)
}

// requireArgs throws a TypeError when fewer than n arguments were passed.
func (e *Engine) requireArgs(call goja.FunctionCall, name string, n int) {
	if len(call.Arguments) < n {
		panic(e.vm.NewTypeError("%s: At least %d argument(s) required, but only %d passed", name, n, len(call.Arguments)))
	}
}

// throw raises an Error with the given name and message in the calling script.
func (e *Engine) throw(name, format string, args ...any) {
	obj, err := e.vm.New(e.vm.Get("Error"), e.vm.ToValue(fmt.Sprintf(format, args...)))
	if err != nil {
		panic(e.vm.NewGoError(err))
	}
	if name != "" {
		_ = obj.Set("name", name)
	}
	panic(obj)
}

func (e *Engine) consoleLog(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "consoleLog", 1)
	fmt.Fprintln(e.stdout, call.Argument(0).String())
	return goja.Undefined()
}

func (e *Engine) consoleError(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "consoleError", 1)
	fmt.Fprintln(e.stderr, call.Argument(0).String())
	return goja.Undefined()
}

// requireServing refuses environment access outside request processing.
func (e *Engine) requireServing(name string) {
	if !e.serving {
		e.throw("Error", "%s: %v", name, domain.ErrUnavailableDuringInit)
	}
}

func (e *Engine) optionalString(v string, ok bool) goja.Value {
	if !ok {
		return goja.Null()
	}
	return e.vm.ToValue(v)
}

func (e *Engine) getEnv(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "getEnv", 1)
	e.requireServing("getEnv")
	if e.env == nil {
		return goja.Null()
	}
	return e.optionalString(e.env.Getenv(call.Argument(0).String()))
}

func (e *Engine) getSecret(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "getSecret", 1)
	e.requireServing("getSecret")
	if e.env == nil {
		return goja.Null()
	}
	return e.optionalString(e.env.Secret(call.Argument(0).String()))
}

func (e *Engine) getSecretEffectiveAt(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "getSecretEffectiveAt", 2)
	e.requireServing("getSecretEffectiveAt")
	slot := call.Argument(1).ToInteger()
	if slot < 0 {
		slot = 0
	}
	if e.env == nil {
		return goja.Null()
	}
	return e.optionalString(e.env.SecretEffectiveAt(call.Argument(0).String(), uint64(slot)))
}

func (e *Engine) sendRequest(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "sendRequest", 4)
	if e.client == nil {
		e.throw("Error", "sendRequest: outbound requests are not configured")
	}

	methodName := strings.ToUpper(call.Argument(0).String())
	method := domain.ParseMethod(methodName)
	if method == domain.MethodUnknown {
		panic(e.vm.NewTypeError("sendRequest: unsupported method %q", methodName))
	}
	headers, err := e.headers(call.Argument(2))
	if err != nil {
		panic(e.vm.NewTypeError("sendRequest: %v", err))
	}

	req := domain.NewRequest(method, call.Argument(1).String(), headers...)
	if body, ok := e.bodyBytes(call.Argument(3)); ok {
		req = req.WithBody(body)
	}

	resp, err := e.client.Do(e.ctx, req)
	if err != nil {
		e.throw("Error", "sendRequest: %v", err)
	}

	encoded, err := json.Marshal(domain.Pairs(resp.Headers))
	if err != nil {
		panic(e.vm.NewGoError(err))
	}
	out := e.vm.NewObject()
	_ = out.Set("status", resp.Status)
	_ = out.Set("headers", string(encoded))
	_ = out.Set("body", e.vm.NewArrayBuffer(resp.Body))
	return out
}

func (e *Engine) sendResponse(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "sendResponse", 3)

	headers, err := e.headers(call.Argument(1))
	if err != nil {
		panic(e.vm.NewTypeError("sendResponse: %v", err))
	}
	resp := domain.Response{
		Status:  int(call.Argument(0).ToInteger()),
		Headers: headers,
	}
	if body, ok := e.bodyBytes(call.Argument(2)); ok {
		resp.Body = body
		resp.HasBody = true
	}
	if err := e.sink.Commit(resp); err != nil {
		panic(e.vm.NewTypeError("sendResponse: %v", err))
	}
	return goja.Undefined()
}

// bodyBytes converts a body argument to bytes. ArrayBuffers and Uint8Arrays are
// taken as is, anything else is converted to its string form. The boolean is false
// for null and undefined.
func (e *Engine) bodyBytes(v goja.Value) ([]byte, bool) {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	switch b := v.Export().(type) {
	case goja.ArrayBuffer:
		return append([]byte{}, b.Bytes()...), true
	case []byte:
		return append([]byte{}, b...), true
	}
	return []byte(v.String()), true
}

// defineText installs the UTF-8 codec used by the prelude's TextEncoder and
// TextDecoder. The prelude removes the global once it has captured it.
func (e *Engine) defineText() error {
	text := e.vm.NewObject()
	encode := func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(e.vm.NewArrayBuffer([]byte(call.Argument(0).String())))
	}
	decode := func(call goja.FunctionCall) goja.Value {
		data, _ := e.bodyBytes(call.Argument(0))
		// Converting through runes replaces each invalid byte with U+FFFD.
		s := string([]rune(string(data)))
		return e.vm.ToValue(strings.TrimPrefix(s, "\uFEFF"))
	}
	return errors.Join(
		text.Set("encode", encode),
		text.Set("decode", decode),
		e.vm.Set("__glacierText", text),
	)
}

// headers accepts a JSON string of [name, value] pairs or an array of pairs.
func (e *Engine) headers(v goja.Value) ([]domain.Header, error) {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	var pairs [][]string
	if s, ok := v.Export().(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(s), &pairs); err != nil {
			return nil, fmt.Errorf("headers must be a JSON array of [name, value] pairs: %w", err)
		}
		return domain.HeadersFromPairs(pairs), nil
	}
	if err := e.vm.ExportTo(v, &pairs); err != nil {
		return nil, fmt.Errorf("headers must be an array of [name, value] pairs: %w", err)
	}
	return domain.HeadersFromPairs(pairs), nil
}

func (e *Engine) readFileSync(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "readFileSync", 1)
	if e.assets == nil {
		e.throw("Error", "readFileSync: no asset directory configured")
	}
	name := strings.TrimPrefix(path.Clean("/"+call.Argument(0).String()), "/")
	data, err := fs.ReadFile(e.assets, name)
	if err != nil {
		e.throw("Error", "readFileSync: %v", err)
	}
	return e.vm.ToValue(string(data))
}

func (e *Engine) atob(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "atob", 1)
	data, err := codec.ByteString(call.Argument(0).String())
	if err != nil {
		e.throw("InvalidCharacterError", "atob: %v", err)
	}
	decoded, err := codec.Decode(string(data), codec.Standard)
	if err != nil {
		e.throw("InvalidCharacterError", "atob: %v", err)
	}
	return e.vm.ToValue(codec.Latin1(decoded))
}

func (e *Engine) btoa(call goja.FunctionCall) goja.Value {
	e.requireArgs(call, "btoa", 1)
	data, err := codec.ByteString(call.Argument(0).String())
	if err != nil {
		e.throw("InvalidCharacterError", "btoa: %v", err)
	}
	return e.vm.ToValue(codec.Encode(data, codec.Standard))
}

func (e *Engine) callback(call goja.FunctionCall, name string) goja.Callable {
	e.requireArgs(call, name, 1)
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(e.vm.NewTypeError("%s: first argument must be a function", name))
	}
	return fn
}

func (e *Engine) queueTask(call goja.FunctionCall) goja.Value {
	fn := e.callback(call, "queueTask")
	return e.vm.ToValue(e.tasks.schedule(fn, call.Arguments[1:]))
}

// setTimeout queues the callback for the next drain pass. The delay is not
// honoured: scheduling is counted in loop iterations, not wall-clock time.
func (e *Engine) setTimeout(call goja.FunctionCall) goja.Value {
	fn := e.callback(call, "setTimeout")
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = call.Arguments[2:]
	}
	return e.vm.ToValue(e.tasks.schedule(fn, args))
}

func (e *Engine) clearTimeout(call goja.FunctionCall) goja.Value {
	if id := call.Argument(0); !goja.IsUndefined(id) && !goja.IsNull(id) {
		e.tasks.cancel(id.ToInteger())
	}
	return goja.Undefined()
}
