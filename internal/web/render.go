package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// fallbackHTML is served whenever a page fails to render. It is static so it
// cannot fail itself.
const fallbackHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Something went wrong</title><link rel="stylesheet" href="/static/console.css"></head>
<body>
<div class="error-fallback">
  <h2>Something went wrong</h2>
  <p>Please refresh the page or try again later.</p>
</div>
</body>
</html>`

// fallbackFragment replaces the live view when a fragment fails to render.
const fallbackFragment = `<div class="error-fallback"><h2>Something went wrong</h2><p>Please refresh the page or try again later.</p></div>`

type pages struct {
	tmpl   *template.Template
	logger *zap.Logger
}

var funcs = template.FuncMap{
	"title": func(p theme.Preference) string {
		s := string(p)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

func parsePages(logger *zap.Logger) (*pages, error) {
	tmpl, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &pages{tmpl: tmpl, logger: logger}, nil
}

// execute runs one template into a buffer, converting panics into errors.
func (p *pages) execute(buf *bytes.Buffer, name string, data any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic rendering %s: %v", name, rec)
		}
	}()
	return p.tmpl.ExecuteTemplate(buf, name, data)
}

// render writes a full page. Nothing reaches the client until the template
// has executed completely; on failure the fallback page is written instead.
func (p *pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.execute(&buf, name, data); err != nil {
		p.logger.Error("page render failed", zap.String("template", name), zap.Error(err))
		writeFallback(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// fragment renders a partial for the live session.
func (p *pages) fragment(name string, data any) string {
	var buf bytes.Buffer
	if err := p.execute(&buf, name, data); err != nil {
		p.logger.Error("fragment render failed", zap.String("template", name), zap.Error(err))
		return fallbackFragment
	}
	return buf.String()
}

func writeFallback(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(fallbackHTML))
}

// Boundary recovers panics from downstream handlers and serves the fallback
// page. http.ErrAbortHandler is re-raised so the server can abort the
// response as usual.
func Boundary(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				// A hijacked websocket connection has no response to write.
				if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
					writeFallback(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
