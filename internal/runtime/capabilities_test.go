package runtime_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/aretw0/glacier/internal/runtime"
	"github.com/aretw0/glacier/pkg/adapters/memory"
	"github.com/aretw0/glacier/pkg/domain"
	"github.com/aretw0/glacier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body(t *testing.T, reactor *runtime.Reactor) string {
	t.Helper()
	out := reactor.Handle(context.Background(), get("/"))
	require.NoError(t, out.Failure)
	require.Equal(t, 200, out.Response.Status)
	return string(out.Response.Body)
}

func TestBase64Globals(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			const out = [btoa('foo'), atob(' Zm9v Yg== ')];
			try { atob('Zm9v!'); } catch (e) { out.push(e.name); }
			try { btoa('Ā'); } catch (e) { out.push(e.name); }
			fastedge.sendResponse(200, '[]', out.join('|'));
		}
	`)

	assert.Equal(t, "Zm9v|foob|InvalidCharacterError|InvalidCharacterError", body(t, reactor))
}

func TestSendResponse_Arity(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			try {
				fastedge.sendResponse(200);
			} catch (e) {
				fastedge.sendResponse(200, '[]', e.name + ': ' + e.message);
			}
		}
	`)

	assert.Equal(t, "TypeError: sendResponse: At least 3 argument(s) required, but only 1 passed", body(t, reactor))
}

func TestSendResponse_InvalidStatus(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			try {
				fastedge.sendResponse(42, '[]', 'nope');
			} catch (e) {
				fastedge.sendResponse(200, [['x-error', e.name]], null);
			}
		}
	`)

	out := reactor.Handle(context.Background(), get("/"))
	assert.Equal(t, 200, out.Response.Status)
	v, _ := out.Response.Header("x-error")
	assert.Equal(t, "TypeError", v)
	assert.False(t, out.Response.HasBody)
}

func TestEnvironment_ClosedDuringInit(t *testing.T) {
	env := &fakeEnv{
		vars:    map[string]string{"REGION": "eu"},
		secrets: map[string]string{"TOKEN": "s3cret"},
	}
	reactor, _ := start(t, `
		let initError = 'none';
		try { fastedge.getEnv('REGION'); } catch (e) { initError = e.message; }

		function process() {
			const out = [
				initError,
				fastedge.getEnv('REGION'),
				String(fastedge.getEnv('MISSING')),
				fastedge.getSecret('TOKEN'),
				fastedge.getSecretEffectiveAt('TOKEN', -5),
			];
			fastedge.sendResponse(200, '[]', out.join('|'));
		}
	`, runtime.WithEnvironment(env))

	assert.Equal(t,
		"getEnv: capability unavailable during initialization|eu|null|s3cret|s3cret",
		body(t, reactor))
	assert.Equal(t, []uint64{0}, env.slots, "negative slots clamp to zero")
}

func TestReadFileSync(t *testing.T) {
	assets := fstest.MapFS{
		"static/index.html": {Data: []byte("<h1>hi</h1>")},
	}
	reactor, _ := start(t, `
		function process() {
			const out = [fastedge.readFileSync('/static/index.html')];
			try { fastedge.readFileSync('../../etc/passwd'); } catch (e) { out.push('missing'); }
			fastedge.sendResponse(200, '[]', out.join('|'));
		}
	`, runtime.WithAssets(assets))

	assert.Equal(t, "<h1>hi</h1>|missing", body(t, reactor))
}

func TestKvStore(t *testing.T) {
	kv := memory.NewKV()
	kv.Load(ports.ContractFixture())
	kv.Deny("secret")

	reactor, _ := start(t, `
		function process() {
			const s = KvStore.open('contract');
			const text = new TextDecoder();
			const out = [
				text.decode(s.get('user:1')),
				s.get('nope') === null ? '' : 'unexpected',
				s.scan('user:*').join(','),
				s.zrange('scores', 0, 5).map((m) => text.decode(m)).join(','),
				s.zscan('scores', 'mi*').map(([m, score]) => text.decode(m) + '=' + score).join(','),
				String(s.bfExists('seen', 'a')),
			];
			try { KvStore.open('ghost'); } catch (e) { out.push(e.message); }
			try { KvStore.open('secret'); } catch (e) { out.push(e.name + ': ' + e.message); }
			try { s.scan('user:1'); } catch (e) { out.push(e.name); }
			fastedge.sendResponse(200, '[]', out.join('|'));
		}
	`, runtime.WithKV(kv))

	assert.Equal(t,
		"alice||user:1,user:2|low,mid|mid=5,mild=7|true|No such store: ghost|KvStoreError: Access denied to store: secret|TypeError",
		body(t, reactor))
}

func TestKvStore_BinaryValues(t *testing.T) {
	raw := []byte{0xff, 0x00, 0x80}
	kv := memory.NewKV()
	kv.Put("s", "k", raw)
	kv.ZAdd("s", "z", 1, string(raw))

	reactor, _ := start(t, `
		function process(req) {
			const s = KvStore.open('s');
			if (req.url === '/get') {
				fastedge.sendResponse(200, '[]', s.get('k'));
				return;
			}
			const value = new Uint8Array(s.get('k'));
			const member = new Uint8Array(s.zrange('z', 0, 10)[0]);
			const [scanned, score] = s.zscan('z', '*')[0];
			fastedge.sendResponse(200, '[]', [
				s.get('k') instanceof ArrayBuffer,
				Array.from(value).join(','),
				Array.from(member).join(','),
				scanned instanceof Uint8Array,
				Array.from(scanned).join(','),
				score
			].join('|'));
		}
	`, runtime.WithKV(kv))

	out := reactor.Handle(context.Background(), get("/get"))
	require.NoError(t, out.Failure)
	assert.Equal(t, raw, out.Response.Body)
	assert.True(t, out.Response.HasBody)

	assert.Equal(t, "true|255,0,128|255,0,128|true|255,0,128|1", body(t, reactor))
}

func TestResponse_BinaryBody(t *testing.T) {
	reactor, _ := start(t, `
		addEventListener('fetch', (event) => {
			switch (event.request.url) {
			case '/bytes':
				event.respondWith(new Response(new Uint8Array([104, 105])));
				break;
			case '/view':
				event.respondWith(new Response(new Uint8Array([0, 0xff, 104, 0]).subarray(1, 3)));
				break;
			case '/buffer':
				event.respondWith(new Response(new Uint8Array([0xfe, 0x01]).buffer));
				break;
			default:
				event.respondWith((async () => {
					const res = new Response(new Uint8Array([111, 107]));
					const text = await res.text();
					const buf = await new Response('hé').arrayBuffer();
					return new Response(text + ' ' + buf.byteLength);
				})());
			}
		});
	`)

	cases := map[string][]byte{
		"/bytes":  []byte("hi"),
		"/view":   {0xff, 104},
		"/buffer": {0xfe, 0x01},
		"/read":   []byte("ok 3"),
	}
	for uri, want := range cases {
		out := reactor.Handle(context.Background(), get(uri))
		require.NoError(t, out.Failure, uri)
		assert.Equal(t, 200, out.Response.Status, uri)
		assert.True(t, out.Response.HasBody, uri)
		assert.Equal(t, want, out.Response.Body, uri)
	}
}

func TestResponse_JSON(t *testing.T) {
	reactor, _ := start(t, `
		addEventListener('fetch', (event) => {
			switch (event.request.url) {
			case '/plain':
				event.respondWith(Response.json({ a: 1 }));
				break;
			case '/init':
				event.respondWith(Response.json([1, 'two'], { status: 201, headers: { 'Content-Type': 'application/problem+json' } }));
				break;
			case '/no-body':
				try {
					Response.json({}, { status: 204 });
				} catch (e) {
					event.respondWith(new Response(e.name));
				}
				break;
			default:
				event.respondWith((async () => {
					const parsed = await Response.json({ n: 41 }).json();
					return new Response(String(parsed.n + 1));
				})());
			}
		});
	`)

	out := reactor.Handle(context.Background(), get("/plain"))
	require.NoError(t, out.Failure)
	assert.Equal(t, 200, out.Response.Status)
	assert.Equal(t, `{"a":1}`, string(out.Response.Body))
	assert.Equal(t, []domain.Header{{Name: "content-type", Value: "application/json"}}, out.Response.Headers)

	out = reactor.Handle(context.Background(), get("/init"))
	assert.Equal(t, 201, out.Response.Status)
	assert.Equal(t, `[1,"two"]`, string(out.Response.Body))
	assert.Equal(t, []domain.Header{{Name: "content-type", Value: "application/problem+json"}}, out.Response.Headers)

	out = reactor.Handle(context.Background(), get("/no-body"))
	assert.Equal(t, "TypeError", string(out.Response.Body))

	out = reactor.Handle(context.Background(), get("/roundtrip"))
	assert.Equal(t, "42", string(out.Response.Body))
}

func TestTextCodec(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			const bytes = new TextEncoder().encode('hé');
			const decoder = new TextDecoder();
			const out = [
				bytes instanceof Uint8Array,
				Array.from(bytes).join(','),
				decoder.decode(bytes),
				decoder.decode(new Uint8Array([0x61, 0xff, 0x62])),
				decoder.decode(new Uint8Array([0xef, 0xbb, 0xbf, 0x7a])),
				decoder.decode(),
				typeof __glacierText
			];
			try { decoder.decode('text'); } catch (e) { out.push(e.name); }
			fastedge.sendResponse(200, '[]', out.join('|'));
		}
	`)

	assert.Equal(t, "true|104,195,169|hé|a\uFFFDb|z||undefined|TypeError", body(t, reactor))
}

func TestConsole(t *testing.T) {
	reactor, out := start(t, `
		function process() {
			console.log('hello', 1, { a: true });
			console.info('info');
			console.warn('careful');
			console.error('boom');
			fastedge.sendResponse(200, '[]', null);
		}
	`)

	reactor.Handle(context.Background(), get("/"))

	assert.Equal(t, "[LOG] hello, 1, {\"a\":true}\n[INFO] info\n", out.Stdout.String())
	assert.Contains(t, out.Stderr.String(), "[WARN] careful\n")
	assert.Contains(t, out.Stderr.String(), "[ERROR] boom\n")
}

func TestSelf(t *testing.T) {
	reactor, _ := start(t, `
		const same = self === globalThis;
		function process() {
			self = 'replaced';
			fastedge.sendResponse(200, '[]', same + '|' + self);
		}
	`)

	assert.Equal(t, "true|replaced", body(t, reactor))
}

func TestPerformance(t *testing.T) {
	script := `
		function process() {
			const out = typeof performance === 'undefined' ? 'absent' : typeof performance.now();
			fastedge.sendResponse(200, '[]', out);
		}
	`

	t.Run("Disabled", func(t *testing.T) {
		reactor, _ := start(t, script)
		assert.Equal(t, "absent", body(t, reactor))
	})

	t.Run("Enabled", func(t *testing.T) {
		reactor, _ := start(t, script, runtime.WithHighResolutionTime(true))
		assert.Equal(t, "number", body(t, reactor))
	})
}

func TestSetTimeout(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			const cancelled = setTimeout(function () {
				fastedge.sendResponse(500, '[]', 'cancelled timer ran');
			}, 0);
			clearTimeout(cancelled);
			setTimeout(function (a, b) {
				fastedge.sendResponse(200, '[]', a + b);
			}, 1000, 'x', 'y');
		}
	`)

	out := reactor.Handle(context.Background(), get("/"))
	assert.Equal(t, 200, out.Response.Status)
	assert.Equal(t, "xy", string(out.Response.Body))
	assert.Equal(t, 1, out.Iterations, "the delay is not waited for")
}

func TestMathRandom_ReseededPerInvocation(t *testing.T) {
	reactor, _ := start(t, `
		function process() {
			fastedge.sendResponse(200, '[]', String(Math.random()));
		}
	`, runtime.WithSeedSource(func() uint64 { return 42 }))

	first := body(t, reactor)
	second := body(t, reactor)
	assert.Equal(t, first, second)
}
