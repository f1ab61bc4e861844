// Package server provides the core server infrastructure for the MCP
// Prometheus alerts server.
//
// This package contains:
// - ServerContext: Configuration and shared resources management
// - Registry: The validated name-to-server configuration mapping
// - Logger interface: Structured logging abstraction
// - Configuration options: Functional options pattern for server setup
//
// The registry is loaded from indexed environment slots
// (PROMETHEUS_SERVER_0 through PROMETHEUS_SERVER_9) with fallbacks to the
// older PROMETHEUS_SERVERS aggregate list and the legacy single-server
// PROMETHEUS_URL variables. It is held by the ServerContext as an immutable
// snapshot; reloading builds a fresh registry and swaps it atomically so
// concurrent tool invocations never read partial state.
//
// Example usage:
//
//	ctx := context.Background()
//	serverContext, err := server.NewServerContext(ctx,
//	    server.WithDebugMode(true),
//	    server.WithLogger(logger),
//	)
package server
