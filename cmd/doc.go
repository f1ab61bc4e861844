// Package cmd provides the command-line interface for the MCP Prometheus
// alerts server.
//
// This package implements the Cobra CLI framework to provide commands for:
// - Starting the MCP server with various transport options (stdio, sse, http)
// - Managing server configuration and lifecycle
//
// The main entry point is the serve command which loads the server registry,
// starts the MCP server and registers the alert tools.
//
// Environment Variables:
//   - PROMETHEUS_SERVER_0 .. PROMETHEUS_SERVER_9: JSON objects with the
//     fields name, url, description (optional), token (optional) and
//     verify_ssl (optional, defaults to true)
//   - PROMETHEUS_SERVERS: Fallback JSON array of the same objects
//   - PROMETHEUS_URL / PROMETHEUS_TOKEN / PROMETHEUS_VERIFY_SSL: Legacy
//     single-server fallback, loaded under the name "default"
//   - OTEL_EXPORTER_OTLP_ENDPOINT: Optional OTLP endpoint enabling tracing
//
// Example usage:
//
//	mcp-prometheus-alerts serve --transport stdio
//	mcp-prometheus-alerts serve --transport sse --http-addr :8080
package cmd
