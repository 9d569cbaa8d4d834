// Package devapi is a local stand-in for the diagnostic API: a rules
// classifier, a playbook of steps and references per category, and a summary
// responder, served over the same HTTP contract the console consumes.
package devapi

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneralCategory is the fallback bucket.
const GeneralCategory = "General"

// Rule is one classifier bucket.
type Rule struct {
	Category string   `yaml:"-"`
	MatchAny []string `yaml:"match_any"`
	Severity string   `yaml:"severity"`
	Signals  []string `yaml:"signals"`
}

// Classification is the classifier verdict.
type Classification struct {
	Category string
	Severity string
	Signals  []string
}

// Classifier matches error codes and messages against ordered rules. The
// first matching rule wins.
type Classifier struct {
	rules  []Rule
	source string
}

// DefaultRules are the built-in buckets.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "Payments", MatchAny: []string{"PAYMENT", "CARD"}, Severity: "High", Signals: []string{"payment_module", "cc_validation", "gateway_response"}},
		{Category: "Auth", MatchAny: []string{"AUTH", "UNAUTHORIZED", "401"}, Severity: "Medium", Signals: []string{"token_expired", "bad_credentials"}},
		{Category: "Networking", MatchAny: []string{"TIMEOUT", "TIMED OUT"}, Severity: "Medium", Signals: []string{"upstream_timeout", "retry_needed"}},
		{Category: "Routing", MatchAny: []string{"NOT FOUND", "404"}, Severity: "Low", Signals: []string{"missing_endpoint", "bad_url"}},
		{Category: GeneralCategory, Severity: "Low", Signals: []string{"generic_checklist"}},
	}
}

// NewClassifier returns a classifier over rules. source names where the rules
// came from and is reported by the ping endpoint.
func NewClassifier(rules []Rule, source string) *Classifier {
	return &Classifier{rules: rules, source: source}
}

// LoadClassifier reads rules from path, a YAML or JSON mapping of category to
// rule whose key order is the match order. An empty path, or a file that is
// missing or unreadable, yields the built-in rules.
func LoadClassifier(path string) (*Classifier, error) {
	builtin := NewClassifier(DefaultRules(), "builtin")
	if path == "" {
		return builtin, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return builtin, nil
	}
	if err != nil {
		return builtin, fmt.Errorf("reading rules %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return builtin, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	return NewClassifier(rules, path), nil
}

// ParseRules decodes an ordered category -> rule mapping.
func ParseRules(data []byte) ([]Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("rules must be a mapping of category to rule")
	}

	m := doc.Content[0]
	rules := make([]Rule, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		var r Rule
		if err := m.Content[i+1].Decode(&r); err != nil {
			return nil, fmt.Errorf("rule %q: %w", m.Content[i].Value, err)
		}
		r.Category = m.Content[i].Value
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules defined")
	}
	return rules, nil
}

// Source reports where the rules came from.
func (c *Classifier) Source() string { return c.source }

// Classify returns the first rule whose triggers appear in the error code or
// message, case-insensitively. The trace is not consulted.
func (c *Classifier) Classify(errorCode, message, trace string) Classification {
	code := strings.ToUpper(strings.TrimSpace(errorCode))
	msg := strings.ToUpper(message)

	for _, r := range c.rules {
		for _, t := range r.MatchAny {
			t = strings.ToUpper(t)
			if strings.Contains(code, t) || strings.Contains(msg, t) {
				return verdict(r)
			}
		}
	}
	for _, r := range c.rules {
		if r.Category == GeneralCategory {
			return verdict(r)
		}
	}
	return Classification{Category: GeneralCategory, Severity: "Low", Signals: []string{"generic_checklist"}}
}

func verdict(r Rule) Classification {
	out := Classification{Category: r.Category, Severity: r.Severity, Signals: append([]string(nil), r.Signals...)}
	if out.Severity == "" {
		out.Severity = "Low"
	}
	if len(out.Signals) == 0 {
		out.Signals = []string{"generic_checklist"}
	}
	return out
}
