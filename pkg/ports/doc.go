/*
Package ports defines the driven ports (interfaces) for the Glacier engine.

These interfaces decouple the capability surface exposed to scripts from the host
services backing it, allowing the engine to run against in-memory fakes in tests and
against real backends (Redis, HTTP, process environment) in production.

# Key Interfaces

  - Environment: Resolves environment variables and secrets while serving requests.
  - KVOpener / KVStore: Read-only key-value stores exposed to scripts as KvStore.
  - HTTPClient: Performs outbound requests on behalf of fastedge.sendRequest and fetch.
*/
package ports
