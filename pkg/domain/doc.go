/*
Package domain contains the core domain models for the Glacier reactor.

It defines the values exchanged between the host and the engine: the inbound Request,
the Response committed by script code, the EngineState lifecycle and the diagnostics
produced when script code fails. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - EngineState: The one-way lifecycle of an engine (Uninitialized, Initializing, Frozen).
  - Request: An immutable inbound unit of work (method, target, ordered headers, optional body).
  - Response: The status, headers and optional body committed by the script.
  - Diagnostic: A rendered exception or unhandled rejection.
  - LifecycleHooks: Observability callbacks fired by the engine.
*/
package domain
