package prometheus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"

	"github.com/jgato/mcp-prometheus-alerts/internal/server"
	"github.com/jgato/mcp-prometheus-alerts/internal/telemetry"
)

// requestTimeout bounds every outbound call. There are no retries; the
// timeout is the worst-case latency per invocation.
const requestTimeout = 10 * time.Second

// bearerTokenRoundTripper adds bearer token authentication to requests
type bearerTokenRoundTripper struct {
	token string
	rt    http.RoundTripper
}

func (b *bearerTokenRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.rt.RoundTrip(req)
}

// Client performs the upstream HTTP calls for one configured server.
type Client struct {
	api    api.Client
	config server.ServerConfig
	logger server.Logger
}

// NewClient builds a client for the given server configuration. The transport
// chain reflects the profile: TLS peer verification per VerifySSL, bearer
// auth header injection when a token is configured.
func NewClient(config server.ServerConfig, logger server.Logger) (*Client, error) {
	if config.URL == "" {
		return nil, &ToolError{Kind: ErrNotConfigured, Message: "server URL is empty"}
	}

	var roundTripper http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !config.VerifySSL,
		},
	}

	if config.Token != "" {
		roundTripper = &bearerTokenRoundTripper{
			token: config.Token,
			rt:    roundTripper,
		}
		logger.Debug("Using bearer token authentication", "server", config.Name)
	}

	promClient, err := api.NewClient(api.Config{
		Address:      config.URL,
		RoundTripper: roundTripper,
	})
	if err != nil {
		return nil, &ToolError{
			Kind:    ErrUnexpected,
			Message: fmt.Sprintf("failed to create Prometheus client: %v", err),
			Err:     err,
		}
	}

	return &Client{
		api:    promClient,
		config: config,
		logger: logger,
	}, nil
}

// buildinfoEnvelope is the /api/v1/status/buildinfo response envelope.
type buildinfoEnvelope struct {
	Status string             `json:"status"`
	Data   v1.BuildinfoResult `json:"data"`
}

// rulesEnvelope is the /api/v1/rules response envelope.
type rulesEnvelope struct {
	Status    string    `json:"status"`
	Data      rulesData `json:"data"`
	ErrorType string    `json:"errorType,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type rulesData struct {
	Groups []RuleGroup `json:"groups"`
}

// BuildInfo probes the server's build information to verify connectivity.
func (c *Client) BuildInfo(ctx context.Context) (v1.BuildinfoResult, error) {
	var env buildinfoEnvelope
	if err := c.get(ctx, "/api/v1/status/buildinfo", &env); err != nil {
		return v1.BuildinfoResult{}, err
	}
	return env.Data, nil
}

// Rules fetches the rule groups from the server. The raw envelope is decoded
// into explicit structs so filtering and projection see validated data.
func (c *Client) Rules(ctx context.Context) ([]RuleGroup, error) {
	var env rulesEnvelope
	if err := c.get(ctx, "/api/v1/rules", &env); err != nil {
		return nil, err
	}
	return env.Data.Groups, nil
}

// envelope lets get check the upstream status field regardless of the
// concrete payload type.
type envelope interface {
	status() string
}

func (e *buildinfoEnvelope) status() string { return e.Status }
func (e *rulesEnvelope) status() string     { return e.Status }

// get issues a GET under the fixed timeout, checks the HTTP status, decodes
// the body into out and verifies the envelope reports success.
func (c *Client) get(ctx context.Context, endpoint string, out envelope) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "prometheus.get"+endpoint, c.config.Name)
	defer span.End()

	u := c.api.URL(endpoint, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &ToolError{Kind: ErrUnexpected, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	resp, body, err := c.api.Do(ctx, req)
	if err != nil {
		c.logger.Debug("Upstream request failed", "server", c.config.Name, "endpoint", endpoint, "error", err)
		return classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return &ToolError{
			Kind:       ErrUpstream,
			Message:    fmt.Sprintf("failed to fetch %s: HTTP %d", endpoint, resp.StatusCode),
			StatusCode: resp.StatusCode,
			Detail:     json.RawMessage(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ToolError{Kind: ErrUnexpected, Message: fmt.Sprintf("failed to decode response: %v", err), Err: err}
	}

	if out.status() != "success" {
		return &ToolError{
			Kind:    ErrUpstreamLogical,
			Message: fmt.Sprintf("Prometheus reported %q for %s", out.status(), endpoint),
			Detail:  json.RawMessage(body),
		}
	}

	return nil
}
