package devapi

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is the guidance for one category.
type Entry struct {
	References []string
	Steps      []string
}

// Playbook maps categories to guidance, in a fixed order.
type Playbook struct {
	order   []string
	entries map[string]Entry
}

// DefaultPlaybook is the built-in guidance.
func DefaultPlaybook() *Playbook {
	p := &Playbook{entries: make(map[string]Entry)}
	p.add("Payments", Entry{
		References: []string{
			"docs/payments/gateway-checks.md",
			"docs/payments/tokenization.md",
			"runbooks/payments/common-failures.md",
		},
		Steps: []string{
			"Verify payment method is allowed for the account/location.",
			"Check tokenization response (token present, not expired).",
			"Confirm gateway credentials & merchant config in env.",
			"Validate currency, amount format, and CVV/AVS rules.",
			"Retry once if upstream 5xx; otherwise surface user-safe message.",
		},
	})
	p.add("Auth", Entry{
		References: []string{"docs/auth/jwt-rotation.md", "runbooks/auth/401-403.md"},
		Steps: []string{
			"Check Authorization header present and Bearer token format.",
			"Validate token exp/nbf and audience claims.",
			"Confirm server clock skew and refresh token logic.",
		},
	})
	p.add("Networking", Entry{
		References: []string{"docs/net/retries.md", "runbooks/net/timeouts.md"},
		Steps: []string{
			"Confirm upstream host resolves and is reachable.",
			"Increase client timeout to >= 30s for heavy operations.",
			"Enable exponential backoff with jitter on retries.",
		},
	})
	p.add("Routing", Entry{
		References: []string{"docs/api/routing.md"},
		Steps: []string{
			"Check route path and HTTP method.",
			"Ensure service registering route on startup (import side-effects).",
		},
	})
	p.add(GeneralCategory, Entry{
		References: []string{"docs/oncall/triage-checklist.md"},
		Steps: []string{
			"Reproduce locally with same inputs.",
			"Check recent deploys/feature flags.",
			"Collect logs with correlation/request IDs.",
		},
	})
	return p
}

func (p *Playbook) add(category string, e Entry) {
	if _, ok := p.entries[category]; !ok {
		p.order = append(p.order, category)
	}
	p.entries[category] = e
}

// LoadKnowledge overlays the built-in playbook with files from dir. For each
// category, <lowercase category>_refs.txt and _steps.txt replace the
// corresponding list, one non-blank line per item. Missing files are skipped.
func LoadKnowledge(dir string) (*Playbook, error) {
	p := DefaultPlaybook()
	if dir == "" {
		return p, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return p, nil
	}

	for _, category := range p.order {
		e := p.entries[category]
		stem := strings.ToLower(category)
		refs, err := readLines(filepath.Join(dir, stem+"_refs.txt"))
		if err != nil {
			return p, err
		}
		if refs != nil {
			e.References = refs
		}
		steps, err := readLines(filepath.Join(dir, stem+"_steps.txt"))
		if err != nil {
			return p, err
		}
		if steps != nil {
			e.Steps = steps
		}
		p.entries[category] = e
	}
	return p, nil
}

// readLines returns nil, nil for a missing file.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	lines := []string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// Retrieve returns the references and steps for category, falling back to
// the General entry.
func (p *Playbook) Retrieve(category string) (refs, steps []string) {
	e, ok := p.entries[category]
	if !ok {
		e = p.entries[GeneralCategory]
	}
	return append([]string(nil), e.References...), append([]string(nil), e.Steps...)
}

// Categories lists the playbook categories in order.
func (p *Playbook) Categories() []string {
	return append([]string(nil), p.order...)
}
