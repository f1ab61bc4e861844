// Package prometheus provides MCP tools for inspecting alert rules across
// one or more configured Prometheus servers.
//
// This package implements the following MCP tools:
//
//   - list_servers: List the configured servers with their connection details
//     (tokens are reported by presence only, never by value)
//   - check_prometheus_connection: Verify connectivity via the build-info
//     endpoint of a named or default server
//   - get_alerts: Fetch alert rules with optional state, group and alert-name
//     filters, summary statistics, and either a minimal projection or the
//     full upstream rule metadata
//
// Each server is reached through its own HTTP client honoring the configured
// bearer token and TLS verification flag, under a fixed 10 second timeout.
// Failures are reported as structured error payloads tagged with an error
// kind (not_configured, timeout, connection_error, upstream_error,
// upstream_logical_error, unexpected_error); no failure propagates out of a
// tool handler as a Go error.
//
// Example tool usage:
//
//	list_servers: {}
//	check_prometheus_connection: {"server_name": "production"}
//	get_alerts: {"state": "firing", "extended_metadata": false}
package prometheus
