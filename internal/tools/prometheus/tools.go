package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"

	"github.com/jgato/mcp-prometheus-alerts/internal/server"
)

// RegisterPrometheusTools registers the Prometheus tools with the MCP server
func RegisterPrometheusTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// list_servers tool
	listServersTool := mcp.NewTool("list_servers",
		mcp.WithDescription("List the configured Prometheus servers"),
	)

	s.AddTool(listServersTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListServers(ctx, request, sc)
	})

	// check_prometheus_connection tool
	checkConnectionTool := mcp.NewTool("check_prometheus_connection",
		mcp.WithDescription("Check the connection to a configured Prometheus server"),
		mcp.WithString("server_name",
			mcp.Description("Name of the configured server to check (default: the first configured server)"),
		),
	)

	s.AddTool(checkConnectionTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCheckConnection(ctx, request, sc)
	})

	// get_alerts tool
	getAlertsTool := mcp.NewTool("get_alerts",
		mcp.WithDescription("Get alert rules from a Prometheus server with summary statistics. "+
			"Supports filtering by state, rule group and alert name."),
		mcp.WithString("server_name",
			mcp.Description("Name of the configured server to query (default: the first configured server)"),
		),
		mcp.WithString("state",
			mcp.Description("Filter by alert state: 'firing', 'pending' or 'inactive'"),
		),
		mcp.WithString("group_name",
			mcp.Description("Filter by exact rule group name"),
		),
		mcp.WithString("alert_name",
			mcp.Description("Filter by exact alert rule name"),
		),
		mcp.WithBoolean("extended_metadata",
			mcp.Description("Return the full upstream rule metadata instead of the minimal projection (default: false)"),
		),
	)

	s.AddTool(getAlertsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetAlerts(ctx, request, sc)
	})

	return nil
}

// serverSummary is the per-server entry returned by list_servers. The token
// itself never leaves the process, only its presence.
type serverSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	HasToken    bool   `json:"has_token"`
	VerifySSL   bool   `json:"verify_ssl"`
}

// errorPayload is the structured error shape every tool returns instead of
// letting a failure cross the tool boundary.
type errorPayload struct {
	Status            string          `json:"status"`
	Error             ErrorKind       `json:"error"`
	Message           string          `json:"message"`
	StatusCode        int             `json:"status_code,omitempty"`
	ConfiguredServers []string        `json:"configured_servers,omitempty"`
	Details           json.RawMessage `json:"details,omitempty"`
}

// handleListServers handles the list_servers tool
func handleListServers(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	reg := sc.Registry()
	if reg.Len() == 0 {
		return errorResult(&server.NotFoundError{}), nil
	}

	servers := make([]serverSummary, 0, reg.Len())
	for _, cfg := range reg.Servers() {
		servers = append(servers, serverSummary{
			Name:        cfg.Name,
			Description: cfg.Description,
			URL:         cfg.URL,
			HasToken:    cfg.Token != "",
			VerifySSL:   cfg.VerifySSL,
		})
	}

	return jsonResult(map[string]interface{}{
		"status":  "success",
		"count":   len(servers),
		"servers": servers,
	}), nil
}

// handleCheckConnection handles the check_prometheus_connection tool
func handleCheckConnection(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)
	name, _ := params["server_name"].(string)

	cfg, err := sc.Registry().Resolve(name)
	if err != nil {
		return errorResult(err), nil
	}

	sc.Logger().Debug("Checking Prometheus connection", "server", cfg.Name)

	client, err := NewClient(cfg, sc.Logger())
	if err != nil {
		return errorResult(err), nil
	}

	info, err := client.BuildInfo(ctx)
	if err != nil {
		sc.Logger().Error("Connection check failed", "server", cfg.Name, "error", err)
		return errorResult(err), nil
	}

	return jsonResult(struct {
		Status    string             `json:"status"`
		Message   string             `json:"message"`
		Server    string             `json:"server"`
		BuildInfo v1.BuildinfoResult `json:"build_info"`
	}{
		Status:    "success",
		Message:   "Connected to Prometheus",
		Server:    cfg.Name,
		BuildInfo: info,
	}), nil
}

// handleGetAlerts handles the get_alerts tool
func handleGetAlerts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := requestParams(request)

	name, _ := params["server_name"].(string)
	filters := Filters{}
	filters.State, _ = params["state"].(string)
	filters.GroupName, _ = params["group_name"].(string)
	filters.AlertName, _ = params["alert_name"].(string)
	extended, _ := params["extended_metadata"].(bool)

	cfg, err := sc.Registry().Resolve(name)
	if err != nil {
		return errorResult(err), nil
	}

	sc.Logger().Debug("Fetching alert rules", "server", cfg.Name,
		"state", filters.State, "group", filters.GroupName, "alert", filters.AlertName,
		"extended", extended)

	client, err := NewClient(cfg, sc.Logger())
	if err != nil {
		return errorResult(err), nil
	}

	result, err := FetchAlerts(ctx, client, filters, extended)
	if err != nil {
		sc.Logger().Error("Failed to fetch alert rules", "server", cfg.Name, "error", err)
		return errorResult(err), nil
	}

	return jsonResult(result), nil
}

// requestParams extracts the argument map from a tool request
func requestParams(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments != nil {
		if argsMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			return argsMap
		}
	}
	return map[string]interface{}{}
}

// jsonResult marshals a success payload into a text tool result
func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`{"status": "error", "error": %q, "message": "failed to encode result: %v"}`, ErrUnexpected, err),
				},
			},
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}
}

// errorResult converts a typed error into the structured error payload
func errorResult(err error) *mcp.CallToolResult {
	payload := errorPayload{Status: "error"}

	var notFound *server.NotFoundError
	var toolErr *ToolError
	switch {
	case errors.As(err, &notFound):
		payload.Error = ErrNotConfigured
		payload.Message = notFound.Error()
		payload.ConfiguredServers = notFound.Known
	case errors.As(err, &toolErr):
		payload.Error = toolErr.Kind
		payload.Message = toolErr.Message
		payload.StatusCode = toolErr.StatusCode
		if json.Valid(toolErr.Detail) {
			payload.Details = toolErr.Detail
		} else if len(toolErr.Detail) > 0 {
			// Non-JSON upstream bodies are carried as a quoted string.
			if quoted, qerr := json.Marshal(string(toolErr.Detail)); qerr == nil {
				payload.Details = quoted
			}
		}
	default:
		payload.Error = ErrUnexpected
		payload.Message = err.Error()
	}

	data, merr := json.MarshalIndent(payload, "", "  ")
	if merr != nil {
		data = []byte(fmt.Sprintf(`{"status": "error", "error": %q, "message": %q}`, payload.Error, payload.Message))
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}
}
