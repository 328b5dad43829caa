/*
Package ports defines the driven and driving ports (interfaces) of the phasewise engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, graph sources and transports.

# Key Interfaces

  - GraphSource: Loads the phase graph definition (e.g., from YAML files, Loam or Memory).
  - SessionStore: Persists and loads session aggregates.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - SessionEngine: The operations exposed to HTTP, MCP and CLI adapters.
*/
package ports
