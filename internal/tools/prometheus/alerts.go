package prometheus

import (
	"context"
	"strings"

	"github.com/prometheus/common/model"
)

// ruleTypeAlerting marks the only rule type in scope; recording rules are
// ignored by every filter and counter.
const ruleTypeAlerting = "alerting"

// Alert rule states as reported by the rules endpoint.
const (
	StateFiring   = "firing"
	StatePending  = "pending"
	StateInactive = "inactive"
)

// RuleGroup is one evaluation group as returned by /api/v1/rules.
type RuleGroup struct {
	Name           string      `json:"name"`
	File           string      `json:"file,omitempty"`
	Interval       float64     `json:"interval,omitempty"`
	Limit          int         `json:"limit,omitempty"`
	Rules          []AlertRule `json:"rules"`
	EvaluationTime float64     `json:"evaluationTime,omitempty"`
	LastEvaluation string      `json:"lastEvaluation,omitempty"`
}

// AlertRule is one rule inside a group. Recording rules share the shape but
// carry type "recording" and no state or alerts.
type AlertRule struct {
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Query          string         `json:"query,omitempty"`
	Duration       float64        `json:"duration,omitempty"`
	KeepFiringFor  float64        `json:"keepFiringFor,omitempty"`
	State          string         `json:"state,omitempty"`
	Health         string         `json:"health,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	Labels         model.LabelSet `json:"labels,omitempty"`
	Annotations    model.LabelSet `json:"annotations,omitempty"`
	Alerts         []ActiveAlert  `json:"alerts,omitempty"`
	EvaluationTime float64        `json:"evaluationTime,omitempty"`
	LastEvaluation string         `json:"lastEvaluation,omitempty"`
}

// ActiveAlert is one currently active instance of an alerting rule.
type ActiveAlert struct {
	Labels      model.LabelSet `json:"labels"`
	Annotations model.LabelSet `json:"annotations"`
	State       string         `json:"state"`
	ActiveAt    string         `json:"activeAt,omitempty"`
	Value       string         `json:"value,omitempty"`
}

// Filters are the three independent criteria applied to the fetched rules.
// An empty value disables that dimension.
type Filters struct {
	State     string
	GroupName string
	AlertName string
}

// Summary holds the counts computed over the filtered alerting rules.
type Summary struct {
	TotalAlertRules   int `json:"total_alert_rules"`
	Firing            int `json:"firing"`
	Pending           int `json:"pending"`
	Inactive          int `json:"inactive"`
	TotalActiveAlerts int `json:"total_active_alerts"`
}

// FilterValues echoes the applied criteria back to the caller.
type FilterValues struct {
	State            string `json:"state"`
	GroupName        string `json:"group_name"`
	AlertName        string `json:"alert_name"`
	ExtendedMetadata bool   `json:"extended_metadata"`
}

// CompactRule is the minimal projection returned without extended metadata.
type CompactRule struct {
	Name        string         `json:"name"`
	State       string         `json:"state"`
	Severity    string         `json:"severity"`
	Annotations model.LabelSet `json:"annotations"`
}

// CompactGroup pairs a group name with its projected rules.
type CompactGroup struct {
	Name  string        `json:"name"`
	Rules []CompactRule `json:"rules"`
}

// AlertsResult is the aggregate returned by a successful get_alerts call.
// Groups holds []RuleGroup in extended mode, []CompactGroup otherwise.
type AlertsResult struct {
	Status  string       `json:"status"`
	Server  string       `json:"server"`
	Filters FilterValues `json:"filters"`
	Summary Summary      `json:"summary"`
	Groups  interface{}  `json:"groups"`
}

// FetchAlerts retrieves the rule groups from the client's server, applies the
// filters, computes the summary and projects the rules unless extended
// metadata was requested.
func FetchAlerts(ctx context.Context, client *Client, filters Filters, extended bool) (*AlertsResult, error) {
	groups, err := client.Rules(ctx)
	if err != nil {
		return nil, err
	}

	groups = filterGroups(groups, filters)

	result := &AlertsResult{
		Status: "success",
		Server: client.config.Name,
		Filters: FilterValues{
			State:            filters.State,
			GroupName:        filters.GroupName,
			AlertName:        filters.AlertName,
			ExtendedMetadata: extended,
		},
		Summary: summarize(groups),
	}

	if extended {
		result.Groups = groups
	} else {
		result.Groups = compactGroups(groups)
	}
	return result, nil
}

// ruleState normalizes a rule's state, defaulting to inactive when absent.
func ruleState(r AlertRule) string {
	state := strings.ToLower(r.State)
	if state == "" {
		return StateInactive
	}
	return state
}

// filterGroups applies the criteria in fixed order: group name, alert name,
// state. Groups left without rules by the per-rule filters are dropped.
func filterGroups(groups []RuleGroup, filters Filters) []RuleGroup {
	if filters.GroupName != "" {
		kept := make([]RuleGroup, 0, 1)
		for _, group := range groups {
			if group.Name == filters.GroupName {
				kept = append(kept, group)
			}
		}
		groups = kept
	}

	if filters.AlertName != "" {
		groups = filterRules(groups, func(r AlertRule) bool {
			return r.Name == filters.AlertName
		})
	}

	if filters.State != "" {
		want := strings.ToLower(filters.State)
		groups = filterRules(groups, func(r AlertRule) bool {
			return ruleState(r) == want
		})
	}

	return groups
}

// filterRules keeps only alerting rules matching keep, dropping groups whose
// rule list ends up empty.
func filterRules(groups []RuleGroup, keep func(AlertRule) bool) []RuleGroup {
	filtered := make([]RuleGroup, 0, len(groups))
	for _, group := range groups {
		var rules []AlertRule
		for _, rule := range group.Rules {
			if rule.Type == ruleTypeAlerting && keep(rule) {
				rules = append(rules, rule)
			}
		}
		if len(rules) == 0 {
			continue
		}
		group.Rules = rules
		filtered = append(filtered, group)
	}
	return filtered
}

// summarize counts the alerting rules by state and totals their active alert
// instances.
func summarize(groups []RuleGroup) Summary {
	var s Summary
	for _, group := range groups {
		for _, rule := range group.Rules {
			if rule.Type != ruleTypeAlerting {
				continue
			}
			s.TotalAlertRules++
			switch ruleState(rule) {
			case StateFiring:
				s.Firing++
			case StatePending:
				s.Pending++
			default:
				s.Inactive++
			}
			s.TotalActiveAlerts += len(rule.Alerts)
		}
	}
	return s
}

// compactGroups strips every alerting rule down to the minimal projection.
// Groups holding only recording rules disappear from the output.
func compactGroups(groups []RuleGroup) []CompactGroup {
	compact := make([]CompactGroup, 0, len(groups))
	for _, group := range groups {
		var rules []CompactRule
		for _, rule := range group.Rules {
			if rule.Type != ruleTypeAlerting {
				continue
			}
			severity := string(rule.Labels["severity"])
			if severity == "" {
				severity = "none"
			}
			annotations := rule.Annotations
			if annotations == nil {
				annotations = model.LabelSet{}
			}
			rules = append(rules, CompactRule{
				Name:        rule.Name,
				State:       ruleState(rule),
				Severity:    severity,
				Annotations: annotations,
			})
		}
		if len(rules) == 0 {
			continue
		}
		compact = append(compact, CompactGroup{Name: group.Name, Rules: rules})
	}
	return compact
}
