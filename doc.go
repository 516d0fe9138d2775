/*
Package glacier hosts request handlers written in JavaScript on an embedded engine.

A script is evaluated exactly once. Whatever it builds at the top level (globals,
caches, compiled templates) is kept and reused by every request afterwards. Each
request then calls the script's entry point and drives the deferred work it
schedules until a response is committed.

# Lifecycle

	Uninitialized -> Initializing -> Frozen
	                              \-> Failed

Initialization compiles and evaluates the script, then drains every task and
promise reaction it queued. Any failure there is fatal: the engine becomes
unusable and a *domain.FatalError describes the stage that failed.

Once frozen, each invocation runs a bounded scheduler loop:

 1. The entry point (default "process") is called with the request.
 2. One drain pass runs the tasks that were queued when the pass started.
 3. If a response was committed the invocation ends; otherwise the loop
    repeats until the ceiling (default 50) is reached.

Tasks still queued when the invocation ends are discarded, so nothing leaks into
the next request. Unhandled promise rejections are reported after each phase.

# Usage

	eng := glacier.New(glacier.WithLogger(logger))
	if err := eng.InitializeFile(ctx, "handler.js"); err != nil {
		log.Fatal(err)
	}
	resp := eng.Process(ctx, domain.NewRequest(domain.MethodGet, "http://localhost/"))

Process never fails: when the script did not commit a response it returns
domain.DefaultFailureResponse. Use Handle to inspect the full Outcome.

# Capabilities

Scripts see a small host surface: the fastedge object (console, environment and
secrets, outbound requests, response commit, bundled assets), the KvStore
global, atob/btoa, queueTask/setTimeout and a fetch-event compatibility layer.
Environment and secret lookups are refused during initialization.
*/
package glacier
