// Package samples holds the built-in library of example payment incidents
// used to pre-fill the diagnosis form.
package samples

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed incidents.yaml
var incidentsYAML []byte

// Incident is a single example payload. Incidents are immutable once loaded.
type Incident struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	ErrorCode string `yaml:"error_code" json:"error_code"`
	Message   string `yaml:"message" json:"message"`
	Trace     string `yaml:"trace" json:"trace"`
	Category  string `yaml:"category" json:"category"`
}

// Library is a read-only, ordered collection of incidents.
type Library struct {
	incidents []Incident
	index     map[string]int
}

var defaultLibrary = mustParse(incidentsYAML)

// Default returns the built-in library.
func Default() *Library { return defaultLibrary }

// Parse builds a Library from a YAML list of incidents. IDs must be unique
// and non-empty.
func Parse(data []byte) (*Library, error) {
	var incidents []Incident
	if err := yaml.Unmarshal(data, &incidents); err != nil {
		return nil, fmt.Errorf("parsing incidents: %w", err)
	}

	index := make(map[string]int, len(incidents))
	for i, inc := range incidents {
		if inc.ID == "" {
			return nil, fmt.Errorf("incident %d: id is required", i)
		}
		if _, dup := index[inc.ID]; dup {
			return nil, fmt.Errorf("incident %d: duplicate id %q", i, inc.ID)
		}
		index[inc.ID] = i
	}

	return &Library{incidents: incidents, index: index}, nil
}

func mustParse(data []byte) *Library {
	lib, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return lib
}

// ByID looks up an incident. The boolean is false when no incident has the id.
func (l *Library) ByID(id string) (Incident, bool) {
	i, ok := l.index[id]
	if !ok {
		return Incident{}, false
	}
	return l.incidents[i], true
}

// All returns every incident in library order. The slice is a copy.
func (l *Library) All() []Incident {
	out := make([]Incident, len(l.incidents))
	copy(out, l.incidents)
	return out
}

// Len reports the number of incidents.
func (l *Library) Len() int { return len(l.incidents) }

// Categories returns the distinct categories in first-occurrence order.
func (l *Library) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, inc := range l.incidents {
		if seen[inc.Category] {
			continue
		}
		seen[inc.Category] = true
		out = append(out, inc.Category)
	}
	return out
}

// Grouped returns incidents bucketed by category, buckets in
// first-occurrence order.
func (l *Library) Grouped() []Group {
	var groups []Group
	pos := make(map[string]int)
	for _, inc := range l.incidents {
		i, ok := pos[inc.Category]
		if !ok {
			i = len(groups)
			pos[inc.Category] = i
			groups = append(groups, Group{Category: inc.Category})
		}
		groups[i].Incidents = append(groups[i].Incidents, inc)
	}
	return groups
}

// Group is one category bucket of the library.
type Group struct {
	Category  string
	Incidents []Incident
}
