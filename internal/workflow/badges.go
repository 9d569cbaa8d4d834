package workflow

import (
	"net/url"
	"strings"

	"github.com/sourpat/payresolve/internal/apiclient"
)

// Tone is the color family of a badge.
type Tone string

const (
	ToneGreen Tone = "green"
	ToneRed   Tone = "red"
	ToneBlue  Tone = "blue"
)

// Badge is a short labelled pill.
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// StatusBadges derives the header badges. Each badge is independent: a
// missing model does not hide the rules source and so on. A nil ping renders
// as offline.
func StatusBadges(ping *apiclient.PingStatus, base string) []Badge {
	var out []Badge
	if ping != nil && ping.OK {
		out = append(out, Badge{Label: "API Online", Tone: ToneGreen})
	} else {
		out = append(out, Badge{Label: "API Offline", Tone: ToneRed})
	}
	if ping != nil && ping.Model != "" {
		out = append(out, Badge{Label: "Model: " + ping.Model, Tone: ToneBlue})
	}
	if ping != nil && ping.RulesSource != "" {
		out = append(out, Badge{Label: "Rules: " + ping.RulesSource, Tone: ToneBlue})
	}
	if base != "" {
		out = append(out, Badge{Label: "Base: " + FormatBaseURL(base), Tone: ToneBlue})
	}
	return out
}

// FormatBaseURL shows the host of an absolute base URL. Anything else just has
// a leading http(s):// scheme stripped.
func FormatBaseURL(base string) string {
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		return u.Host
	}
	s := strings.TrimPrefix(base, "https://")
	return strings.TrimPrefix(s, "http://")
}

// SeverityTone maps a severity label to its tone.
func SeverityTone(severity string) Tone {
	if severity == "High" {
		return ToneRed
	}
	return ToneGreen
}

// Panels is the render-ready form of a DiagnosisResult.
type Panels struct {
	DetectedError string
	Category      *Badge
	Severity      *Badge
	Summary       string
	RawNotes      string
	RulesVersion  string
	Signals       []string
	Steps         []string
	References    []string
}

// BuildPanels filters empty list entries and derives badges. A nil result
// yields empty panels.
func BuildPanels(r *apiclient.DiagnosisResult) Panels {
	if r == nil {
		return Panels{}
	}
	p := Panels{
		DetectedError: r.DetectedError,
		Summary:       r.AssistantSummary,
		RawNotes:      r.RawNotes,
		RulesVersion:  r.RulesVersion,
		Signals:       compact(r.Signals),
		Steps:         compact(r.SuggestedSteps),
		References:    compact(r.References),
	}
	if r.Category != "" {
		p.Category = &Badge{Label: r.Category, Tone: ToneBlue}
	}
	if r.Severity != "" {
		p.Severity = &Badge{Label: r.Severity, Tone: SeverityTone(r.Severity)}
	}
	return p
}

// HasResult reports whether any panel has content.
func (p Panels) HasResult() bool {
	return p.DetectedError != "" || p.Category != nil || p.Severity != nil ||
		p.Summary != "" || p.RawNotes != "" || p.RulesVersion != "" ||
		len(p.Signals) > 0 || len(p.Steps) > 0 || len(p.References) > 0
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
