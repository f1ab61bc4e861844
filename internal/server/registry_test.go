package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// recordingLogger captures warnings so tests can assert on them
type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) {}
func (l *recordingLogger) Info(msg string, args ...interface{})  {}
func (l *recordingLogger) Error(msg string, args ...interface{}) {}
func (l *recordingLogger) Warn(msg string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf("%s %v", msg, args))
}

func (l *recordingLogger) containsWarning(t *testing.T, substr string) {
	t.Helper()
	for _, w := range l.warnings {
		if strings.Contains(w, substr) {
			return
		}
	}
	t.Errorf("expected a warning containing %q, got %v", substr, l.warnings)
}

func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadSingleServerAtIndexZero(t *testing.T) {
	logger := &recordingLogger{}
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"test-server","url":"https://prometheus.example.com","description":"Test","token":"secret","verify_ssl":false}`,
	}), logger)

	if reg.Len() != 1 {
		t.Fatalf("expected 1 server, got %d", reg.Len())
	}
	cfg, err := reg.Resolve("test-server")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "https://prometheus.example.com" {
		t.Errorf("unexpected URL: %s", cfg.URL)
	}
	if cfg.Description != "Test" || cfg.Token != "secret" {
		t.Errorf("unexpected fields: %+v", cfg)
	}
	if cfg.VerifySSL {
		t.Error("expected verify_ssl false")
	}
	if len(logger.warnings) != 0 {
		t.Errorf("unexpected warnings: %v", logger.warnings)
	}
}

func TestLoadServersWithGaps(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_1": `{"name":"server-1","url":"https://prom1.example.com"}`,
		"PROMETHEUS_SERVER_3": `{"name":"server-3","url":"https://prom3.example.com"}`,
	}), &recordingLogger{})

	if reg.Len() != 2 {
		t.Fatalf("expected 2 servers, got %d", reg.Len())
	}
	for _, name := range []string{"server-1", "server-3"} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("expected %s to be loaded: %v", name, err)
		}
	}
}

func TestLoadAllTenSlots(t *testing.T) {
	vars := make(map[string]string)
	for i := 0; i < 10; i++ {
		vars[fmt.Sprintf("PROMETHEUS_SERVER_%d", i)] =
			fmt.Sprintf(`{"name":"server-%d","url":"https://prom%d.example.com"}`, i, i)
	}
	reg := LoadRegistry(envMap(vars), &recordingLogger{})

	if reg.Len() != 10 {
		t.Fatalf("expected 10 servers, got %d", reg.Len())
	}
}

func TestLoadHighestIndexOnly(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_9": `{"name":"last-server","url":"https://prom9.example.com"}`,
	}), &recordingLogger{})

	if reg.Len() != 1 {
		t.Fatalf("expected 1 server, got %d", reg.Len())
	}
	if _, err := reg.Resolve("last-server"); err != nil {
		t.Errorf("expected last-server to be loaded: %v", err)
	}
}

func TestDefaultsForOptionalFields(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"minimal","url":"http://localhost:9090"}`,
	}), &recordingLogger{})

	cfg, err := reg.Resolve("minimal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Description != "" || cfg.Token != "" {
		t.Errorf("expected empty defaults, got %+v", cfg)
	}
	if !cfg.VerifySSL {
		t.Error("expected verify_ssl to default to true")
	}
}

func TestVerifySSLCoercion(t *testing.T) {
	tests := []struct {
		name     string
		value    string // raw JSON for the verify_ssl field, empty means absent
		want     bool
		wantWarn bool
	}{
		{name: "absent", value: "", want: true},
		{name: "null", value: "null", want: true},
		{name: "bool true", value: "true", want: true},
		{name: "bool false", value: "false", want: false},
		{name: "string true", value: `"true"`, want: true},
		{name: "string TRUE", value: `"TRUE"`, want: true},
		{name: "string 1", value: `"1"`, want: true},
		{name: "string yes", value: `"Yes"`, want: true},
		{name: "string false", value: `"false"`, want: false},
		{name: "string other", value: `"verify-me"`, want: false},
		{name: "number", value: "123", want: true, wantWarn: true},
		{name: "array", value: "[]", want: true, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := `{"name":"s","url":"http://x"}`
			if tt.value != "" {
				slot = fmt.Sprintf(`{"name":"s","url":"http://x","verify_ssl":%s}`, tt.value)
			}
			logger := &recordingLogger{}
			reg := LoadRegistry(envMap(map[string]string{"PROMETHEUS_SERVER_0": slot}), logger)

			cfg, err := reg.Resolve("s")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.VerifySSL != tt.want {
				t.Errorf("verify_ssl = %t, want %t", cfg.VerifySSL, tt.want)
			}
			if tt.wantWarn {
				logger.containsWarning(t, "verify_ssl")
			} else if len(logger.warnings) != 0 {
				t.Errorf("unexpected warnings: %v", logger.warnings)
			}
		})
	}
}

func TestMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		slot    string
		missing string
	}{
		{name: "missing name", slot: `{"url":"https://prom.example.com"}`, missing: "name"},
		{name: "missing url", slot: `{"name":"no-url-server"}`, missing: "url"},
		{name: "missing both", slot: `{"description":"nothing here"}`, missing: "name, url"},
		{name: "empty values", slot: `{"name":"","url":""}`, missing: "name, url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			reg := LoadRegistry(envMap(map[string]string{"PROMETHEUS_SERVER_0": tt.slot}), logger)

			if reg.Len() != 0 {
				t.Errorf("expected no servers, got %d", reg.Len())
			}
			logger.containsWarning(t, tt.missing)
		})
	}
}

func TestInvalidJSONIsIsolated(t *testing.T) {
	logger := &recordingLogger{}
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"bad-json","url":"incomplete`,
		"PROMETHEUS_SERVER_1": `{"name":"good-server","url":"https://prom.example.com"}`,
		"PROMETHEUS_SERVER_2": `{"name":"no-url-server"}`,
		"PROMETHEUS_SERVER_3": `{"name":"valid-2","url":"https://prom3.example.com"}`,
	}), logger)

	if reg.Len() != 2 {
		t.Fatalf("expected 2 servers, got %d", reg.Len())
	}
	for _, name := range []string{"good-server", "valid-2"} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("expected %s to survive invalid neighbors: %v", name, err)
		}
	}
	logger.containsWarning(t, "PROMETHEUS_SERVER_0")
	logger.containsWarning(t, "PROMETHEUS_SERVER_2")
}

func TestDuplicateNameLastWriteWins(t *testing.T) {
	logger := &recordingLogger{}
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"duplicate","url":"https://prom0.example.com"}`,
		"PROMETHEUS_SERVER_1": `{"name":"duplicate","url":"https://prom1.example.com"}`,
	}), logger)

	if reg.Len() != 1 {
		t.Fatalf("expected 1 server, got %d", reg.Len())
	}
	cfg, err := reg.Resolve("duplicate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "https://prom1.example.com" {
		t.Errorf("expected the later slot to win, got %s", cfg.URL)
	}
	logger.containsWarning(t, "overwritten")
}

func TestOutOfRangeSlotsWarnAndAreNeverLoaded(t *testing.T) {
	logger := &recordingLogger{}
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0":  `{"name":"valid-server","url":"https://prom0.example.com"}`,
		"PROMETHEUS_SERVER_10": `{"name":"out-of-range-10","url":"https://prom10.example.com"}`,
		"PROMETHEUS_SERVER_15": `{"name":"out-of-range-15","url":"https://prom15.example.com"}`,
	}), logger)

	if reg.Len() != 1 {
		t.Fatalf("expected only the in-range server, got %d", reg.Len())
	}
	if _, err := reg.Resolve("out-of-range-10"); err == nil {
		t.Error("index 10 must never be loaded")
	}
	logger.containsWarning(t, "PROMETHEUS_SERVER_10")
	logger.containsWarning(t, "PROMETHEUS_SERVER_15")
	if len(logger.warnings) != 2 {
		t.Errorf("expected exactly one warning per out-of-range slot, got %v", logger.warnings)
	}
}

func TestAggregateListFallback(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVERS": `[{"name":"a","url":"http://a:9090"},{"name":"b","url":"http://b:9090","verify_ssl":"no"}]`,
	}), &recordingLogger{})

	if reg.Len() != 2 {
		t.Fatalf("expected 2 servers, got %d", reg.Len())
	}
	cfg, err := reg.Resolve("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VerifySSL {
		t.Error("expected verify_ssl false for 'no'")
	}
}

func TestLegacyVariableFallback(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_URL":        "https://legacy.example.com",
		"PROMETHEUS_TOKEN":      "legacy-token",
		"PROMETHEUS_VERIFY_SSL": "false",
	}), &recordingLogger{})

	if reg.Len() != 1 {
		t.Fatalf("expected 1 server, got %d", reg.Len())
	}
	cfg, err := reg.Resolve("default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token != "legacy-token" || cfg.VerifySSL {
		t.Errorf("unexpected legacy config: %+v", cfg)
	}
}

func TestIndexedSlotsTakePrecedenceOverFallbacks(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"indexed","url":"http://indexed:9090"}`,
		"PROMETHEUS_SERVERS":  `[{"name":"aggregate","url":"http://aggregate:9090"}]`,
		"PROMETHEUS_URL":      "http://legacy:9090",
	}), &recordingLogger{})

	if reg.Len() != 1 {
		t.Fatalf("expected only the indexed server, got %d", reg.Len())
	}
	if _, err := reg.Resolve("indexed"); err != nil {
		t.Errorf("expected indexed server: %v", err)
	}
}

func TestResolve(t *testing.T) {
	empty := LoadRegistry(envMap(nil), &recordingLogger{})
	if _, err := empty.Resolve(""); err == nil {
		t.Error("expected NotFoundError for empty registry")
	}

	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"p","url":"http://x"}`,
	}), &recordingLogger{})

	cfg, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "p" {
		t.Errorf("expected default resolution to yield p, got %s", cfg.Name)
	}

	_, err = reg.Resolve("missing")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(notFound.Known) != 1 || notFound.Known[0] != "p" {
		t.Errorf("expected known servers [p], got %v", notFound.Known)
	}
}

func TestResolveDefaultIsFirstInserted(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_1": `{"name":"first","url":"http://first:9090"}`,
		"PROMETHEUS_SERVER_4": `{"name":"second","url":"http://second:9090"}`,
	}), &recordingLogger{})

	cfg, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "first" {
		t.Errorf("expected first-inserted server, got %s", cfg.Name)
	}
}

func TestReloadReplacesRegistry(t *testing.T) {
	vars := map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"old","url":"http://old:9090"}`,
	}

	sc, err := NewServerContext(context.Background(),
		WithEnviron(envMap(vars)),
		WithLogger(&recordingLogger{}),
	)
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	defer sc.Shutdown()

	if _, err := sc.Registry().Resolve("old"); err != nil {
		t.Fatalf("expected old server: %v", err)
	}

	// The rebuild is a full replace, not a merge.
	delete(vars, "PROMETHEUS_SERVER_0")
	vars["PROMETHEUS_SERVER_1"] = `{"name":"new","url":"http://new:9090"}`
	sc.ReloadServers()

	if _, err := sc.Registry().Resolve("old"); err == nil {
		t.Error("old server should be gone after reload")
	}
	if _, err := sc.Registry().Resolve("new"); err != nil {
		t.Errorf("expected new server after reload: %v", err)
	}
}

func TestServersPreserveInsertionOrder(t *testing.T) {
	reg := LoadRegistry(envMap(map[string]string{
		"PROMETHEUS_SERVER_0": `{"name":"zeta","url":"http://z:9090"}`,
		"PROMETHEUS_SERVER_1": `{"name":"alpha","url":"http://a:9090"}`,
	}), &recordingLogger{})

	servers := reg.Servers()
	if len(servers) != 2 || servers[0].Name != "zeta" || servers[1].Name != "alpha" {
		t.Errorf("expected insertion order [zeta alpha], got %v", servers)
	}
}
