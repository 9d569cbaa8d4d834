// Package theme manages the light/dark/auto color preference: persisting it,
// resolving "auto" against the environment's color scheme, and applying the
// concrete result to a presentation root.
package theme

import (
	"context"
	"errors"
	"fmt"
)

// Preference is the stored user choice.
type Preference string

const (
	PreferenceLight Preference = "light"
	PreferenceDark  Preference = "dark"
	PreferenceAuto  Preference = "auto"
)

// Resolved is the concrete theme actually applied.
type Resolved string

const (
	Light Resolved = "light"
	Dark  Resolved = "dark"
)

// DefaultKey is the storage key for the persisted preference.
const DefaultKey = "theme"

// ErrInvalidPreference is returned for values outside light, dark and auto.
var ErrInvalidPreference = errors.New("invalid theme preference")

// Preferences lists the valid preferences in toggle order.
var Preferences = []Preference{PreferenceLight, PreferenceDark, PreferenceAuto}

// ParsePreference validates s.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(s); p {
	case PreferenceLight, PreferenceDark, PreferenceAuto:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreference, s)
	}
}

// ParseResolved interprets a color-scheme signal. Anything other than "dark"
// is treated as light, matching how browsers report no preference.
func ParseResolved(s string) Resolved {
	if s == string(Dark) {
		return Dark
	}
	return Light
}

// Resolve maps a preference to a concrete theme given the environment's
// current scheme.
func Resolve(p Preference, env Resolved) Resolved {
	switch p {
	case PreferenceDark:
		return Dark
	case PreferenceLight:
		return Light
	default:
		if env == Dark {
			return Dark
		}
		return Light
	}
}

// Store is a durable key-value store for the preference.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Environment exposes the operating environment's color-scheme signal.
type Environment interface {
	Current() Resolved
	Subscribe(fn func(Resolved)) (unsubscribe func())
}

// Applied is what gets written to the presentation root: the data attribute
// value and the color-scheme hint for native form controls.
type Applied struct {
	Preference  Preference `json:"preference"`
	Theme       Resolved   `json:"resolved"`
	ColorScheme string     `json:"color_scheme"`
}

// Root receives the applied theme.
type Root interface {
	Apply(Applied)
}

// RootFunc adapts a function to Root.
type RootFunc func(Applied)

func (f RootFunc) Apply(a Applied) { f(a) }
