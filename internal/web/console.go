// Package web serves the browser console: the diagnosis page, the about page,
// the 404 page and the live websocket session that drives each open page.
package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/prefs"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/status"
	"github.com/sourpat/payresolve/internal/theme"
	"github.com/sourpat/payresolve/internal/workflow"
)

// ClientCookie identifies a browser across visits. Theme preferences are
// stored per client id.
const ClientCookie = "payresolve_client"

// Deps are the collaborators shared by every page and session.
type Deps struct {
	Client   workflow.Diagnoser
	Samples  *samples.Library
	Status   *status.Flag
	Prefs    *prefs.Store
	Recorder workflow.Recorder
	Observer workflow.Observer
	Logger   *zap.Logger
	// ThemeKey is the preference key for the theme, "theme" when empty.
	ThemeKey string
	// Sessions is notified when page sessions open and close.
	Sessions SessionObserver
}

// SessionObserver tracks live page sessions.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// Console serves the pages and sessions.
type Console struct {
	deps  Deps
	pages *pages
	about aboutContent
	// fallbackPrefs holds theme preferences when no prefs store is wired.
	fallbackPrefs *theme.MemoryStore
}

// New parses the embedded templates and renders the about page markdown.
func New(deps Deps) (*Console, error) {
	if deps.Client == nil {
		return nil, errors.New("web: api client is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Samples == nil {
		deps.Samples = samples.Default()
	}
	if deps.Status == nil {
		deps.Status = &status.Flag{}
	}
	if deps.ThemeKey == "" {
		deps.ThemeKey = theme.DefaultKey
	}

	p, err := parsePages(deps.Logger)
	if err != nil {
		return nil, err
	}
	about, err := renderAbout(deps.Samples)
	if err != nil {
		return nil, err
	}
	return &Console{deps: deps, pages: p, about: about, fallbackPrefs: theme.NewMemoryStore()}, nil
}

// RegisterRoutes mounts all console routes onto the given router.
func (c *Console) RegisterRoutes(r chi.Router) {
	r.Get("/", c.handleMain)
	r.Get("/about", c.handleAbout)
	r.Get("/ws/console", c.handleWebSocket)
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))
	r.NotFound(c.handleNotFound)
}

// clientID returns the request's client id, issuing a new cookie when the
// request has none.
func clientID(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(ClientCookie); err == nil && ck.Value != "" {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value
		}
	}
	id := uuid.NewString()
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     ClientCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return id
}

func (c *Console) themeStore(id string) theme.Store {
	if c.deps.Prefs == nil {
		return c.fallbackPrefs
	}
	return c.deps.Prefs.ForClient(id)
}
