package server

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	// serverSlotPrefix is the environment variable prefix for indexed server slots.
	serverSlotPrefix = "PROMETHEUS_SERVER_"

	// maxServerSlots is the number of indexed slots scanned (0 to maxServerSlots-1).
	maxServerSlots = 10

	// outOfRangeScanLimit bounds the proactive scan for slots users may have
	// defined under the mistaken assumption of one-based or unbounded indexing.
	outOfRangeScanLimit = 100
)

// ServerConfig holds the validated connection parameters for one
// Prometheus-compatible endpoint.
type ServerConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Token       string `json:"token"`
	VerifySSL   bool   `json:"verify_ssl"`
}

// Registry is an immutable mapping of server name to configuration.
// Entries keep their first-insertion order so that resolving without a name
// is deterministic for single-server deployments.
type Registry struct {
	order  []string
	byName map[string]ServerConfig
}

// NotFoundError is returned when a server cannot be resolved. It carries the
// set of configured names so callers can surface them as a diagnostic.
type NotFoundError struct {
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return "no Prometheus servers configured"
	}
	return fmt.Sprintf("server %q not found, configured servers: %s", e.Name, strings.Join(e.Known, ", "))
}

// rawServerConfig mirrors the JSON shape of a configuration slot before
// validation. VerifySSL stays untyped so the coercion rule can inspect what
// the user actually wrote.
type rawServerConfig struct {
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Description string      `json:"description"`
	Token       string      `json:"token"`
	VerifySSL   interface{} `json:"verify_ssl"`
}

// LoadRegistry builds a Registry from the environment. Three configuration
// generations are supported, newest first:
//
//  1. Indexed slots PROMETHEUS_SERVER_0 .. PROMETHEUS_SERVER_9, each a JSON
//     object {"name","url","description"?,"token"?,"verify_ssl"?}. Gaps are
//     fine; invalid slots are warned about and skipped, never fatal.
//  2. PROMETHEUS_SERVERS, a JSON array of the same objects.
//  3. The legacy PROMETHEUS_URL / PROMETHEUS_TOKEN / PROMETHEUS_VERIFY_SSL
//     triple, defining a single server named "default".
//
// getenv may be nil, in which case os.Getenv is used.
func LoadRegistry(getenv func(string) string, logger Logger) *Registry {
	if getenv == nil {
		getenv = os.Getenv
	}
	if logger == nil {
		logger = &noopLogger{}
	}

	reg := &Registry{byName: make(map[string]ServerConfig)}

	// Users coming from one-based indexing (or hoping for more than ten
	// slots) get an explicit warning instead of a silently ignored server.
	for i := maxServerSlots; i < outOfRangeScanLimit; i++ {
		key := fmt.Sprintf("%s%d", serverSlotPrefix, i)
		if getenv(key) != "" {
			logger.Warn("Server slot index is out of range and will not be loaded",
				"variable", key, "validRange", fmt.Sprintf("0-%d", maxServerSlots-1))
		}
	}

	indexed := false
	for i := 0; i < maxServerSlots; i++ {
		key := fmt.Sprintf("%s%d", serverSlotPrefix, i)
		value := getenv(key)
		if value == "" {
			continue
		}
		indexed = true

		var raw rawServerConfig
		if err := json.Unmarshal([]byte(value), &raw); err != nil {
			logger.Warn("Failed to parse server slot, skipping", "variable", key, "error", err)
			continue
		}
		reg.insert(raw, key, logger)
	}
	if indexed {
		return reg
	}

	if value := getenv("PROMETHEUS_SERVERS"); value != "" {
		var raws []rawServerConfig
		if err := json.Unmarshal([]byte(value), &raws); err != nil {
			logger.Warn("Failed to parse PROMETHEUS_SERVERS, skipping", "error", err)
			return reg
		}
		for i, raw := range raws {
			reg.insert(raw, fmt.Sprintf("PROMETHEUS_SERVERS[%d]", i), logger)
		}
		return reg
	}

	if url := getenv("PROMETHEUS_URL"); url != "" {
		verify := true
		if v := getenv("PROMETHEUS_VERIFY_SSL"); v != "" {
			verify = coerceVerifyString(v)
		}
		reg.insert(rawServerConfig{
			Name:      "default",
			URL:       url,
			Token:     getenv("PROMETHEUS_TOKEN"),
			VerifySSL: verify,
		}, "PROMETHEUS_URL", logger)
	}

	return reg
}

// insert validates a raw slot and stores it under its name. Validation
// failures warn and leave the registry untouched; a duplicate name warns and
// overwrites the earlier definition.
func (r *Registry) insert(raw rawServerConfig, source string, logger Logger) {
	var missing []string
	if raw.Name == "" {
		missing = append(missing, "name")
	}
	if raw.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		logger.Warn("Server slot missing required field(s), skipping",
			"variable", source, "missing", strings.Join(missing, ", "))
		return
	}

	verify, ok := coerceVerifySSL(raw.VerifySSL)
	if !ok {
		logger.Warn("Invalid verify_ssl value type, defaulting to true",
			"variable", source, "type", fmt.Sprintf("%T", raw.VerifySSL))
	}

	if _, exists := r.byName[raw.Name]; exists {
		logger.Warn("Duplicate server name, previous definition will be overwritten",
			"name", raw.Name, "variable", source)
	} else {
		r.order = append(r.order, raw.Name)
	}

	r.byName[raw.Name] = ServerConfig{
		Name:        raw.Name,
		URL:         raw.URL,
		Description: raw.Description,
		Token:       raw.Token,
		VerifySSL:   verify,
	}
}

// coerceVerifySSL applies the verify_ssl coercion rule. The second return
// value is false only for types that triggered the default-with-warning path.
func coerceVerifySSL(v interface{}) (bool, bool) {
	switch value := v.(type) {
	case nil:
		return true, true
	case bool:
		return value, true
	case string:
		return coerceVerifyString(value), true
	default:
		return true, false
	}
}

func coerceVerifyString(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Len returns the number of configured servers.
func (r *Registry) Len() int {
	return len(r.byName)
}

// Names returns the configured server names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Servers returns the configurations in first-insertion order.
func (r *Registry) Servers() []ServerConfig {
	servers := make([]ServerConfig, 0, len(r.order))
	for _, name := range r.order {
		servers = append(servers, r.byName[name])
	}
	return servers
}

// Resolve looks up a server by name. An empty name resolves to the first
// configured server, which keeps the common single-server case working
// without any tool parameters. Unknown names and an empty registry return a
// *NotFoundError listing the configured names.
func (r *Registry) Resolve(name string) (ServerConfig, error) {
	if len(r.order) == 0 {
		return ServerConfig{}, &NotFoundError{Name: name}
	}
	if name == "" {
		return r.byName[r.order[0]], nil
	}
	cfg, ok := r.byName[name]
	if !ok {
		return ServerConfig{}, &NotFoundError{Name: name, Known: r.Names()}
	}
	return cfg, nil
}
