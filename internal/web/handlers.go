package web

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/theme"
	"github.com/sourpat/payresolve/internal/workflow"
)

//go:embed about.md
var aboutMarkdown []byte

// schemeHint is the client hint carrying the browser's color scheme.
const schemeHint = "Sec-CH-Prefers-Color-Scheme"

// pageData feeds every full-page template.
type pageData struct {
	Page        string
	Title       string
	Theme       theme.Applied
	Preferences []theme.Preference
	Online      bool

	View viewData

	Content    template.HTML
	Sample     *samples.Incident
	SampleHTML template.HTML
	Categories []string
}

// viewData feeds the "view" fragment.
type viewData struct {
	Snapshot workflow.Snapshot
	Badges   []workflow.Badge
	Panels   workflow.Panels
	Groups   []samples.Group
}

type aboutContent struct {
	body       template.HTML
	sample     *samples.Incident
	sampleHTML template.HTML
	categories []string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// renderAbout converts the about page once at startup, together with an
// illustrative request built from the first sample.
func renderAbout(lib *samples.Library) (aboutContent, error) {
	var body bytes.Buffer
	if err := markdown.Convert(aboutMarkdown, &body); err != nil {
		return aboutContent{}, err
	}
	out := aboutContent{body: template.HTML(body.String()), categories: lib.Categories()}

	all := lib.All()
	if len(all) == 0 {
		return out, nil
	}
	inc := all[0]
	payload, err := json.MarshalIndent(apiclient.DiagnosisRequest{
		ErrorCode: inc.ErrorCode,
		Message:   inc.Message,
		Trace:     inc.Trace,
	}, "", "  ")
	if err != nil {
		return aboutContent{}, err
	}
	src := "POST `/support/diagnose/with-summary`\n\n```json\n" + string(payload) + "\n```\n"
	var sample bytes.Buffer
	if err := markdown.Convert([]byte(src), &sample); err != nil {
		return aboutContent{}, err
	}
	out.sample = &inc
	out.sampleHTML = template.HTML(sample.String())
	return out, nil
}

func (c *Console) basePage(w http.ResponseWriter, r *http.Request, page, title string) pageData {
	online, _ := c.deps.Status.Online()
	return pageData{
		Page:        page,
		Title:       title,
		Theme:       c.initialTheme(w, r),
		Preferences: theme.Preferences,
		Online:      online,
	}
}

// initialTheme resolves the theme for a full page load from the client's
// stored preference and, for auto, the color-scheme client hint.
func (c *Console) initialTheme(w http.ResponseWriter, r *http.Request) theme.Applied {
	w.Header().Set("Accept-CH", schemeHint)
	w.Header().Add("Vary", schemeHint)

	id := clientID(w, r)
	env := theme.NewSchemeFeed(schemeFromHint(r.Header.Get(schemeHint)))
	ctrl := theme.NewController(r.Context(), c.themeStore(id), env, nil,
		theme.WithKey(c.deps.ThemeKey),
		theme.WithLogger(c.deps.Logger),
	)
	defer ctrl.Close()
	return ctrl.Applied()
}

func schemeFromHint(v string) theme.Resolved {
	return theme.ParseResolved(strings.Trim(strings.TrimSpace(v), `"`))
}

func (c *Console) viewData(snap workflow.Snapshot) viewData {
	return viewData{
		Snapshot: snap,
		Badges:   workflow.StatusBadges(snap.Ping, snap.BaseURL),
		Panels:   workflow.BuildPanels(snap.Result),
		Groups:   c.deps.Samples.Grouped(),
	}
}

func (c *Console) handleMain(w http.ResponseWriter, r *http.Request) {
	data := c.basePage(w, r, "main", "Console")
	fresh := workflow.New(workflow.Deps{Client: c.deps.Client}, workflow.Options{})
	data.View = c.viewData(fresh.Snapshot())
	c.pages.render(w, http.StatusOK, "main", data)
}

func (c *Console) handleAbout(w http.ResponseWriter, r *http.Request) {
	data := c.basePage(w, r, "about", "About")
	data.Content = c.about.body
	data.Sample = c.about.sample
	data.SampleHTML = c.about.sampleHTML
	data.Categories = c.about.categories
	c.pages.render(w, http.StatusOK, "about", data)
}

func (c *Console) handleNotFound(w http.ResponseWriter, r *http.Request) {
	data := c.basePage(w, r, "notfound", "Not Found")
	c.pages.render(w, http.StatusNotFound, "notfound", data)
}
