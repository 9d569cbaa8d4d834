package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/db"
	"github.com/sourpat/payresolve/internal/prefs"
	"github.com/sourpat/payresolve/internal/status"
	"github.com/sourpat/payresolve/internal/theme"
	"github.com/sourpat/payresolve/internal/workflow"
)

const stubDiagnosis = `{
  "category": "Payment errors",
  "severity": "High",
  "signals": ["avs_mismatch"],
  "suggested_steps": ["Verify billing address", "Retry payment"],
  "references": ["KB-101"]
}`

// stubAPI fakes the diagnostic service.
func stubAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /support/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"model":"stub","rules_source":"builtin"}`))
	})
	mux.HandleFunc("POST /support/diagnose/with-summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(stubDiagnosis))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	console *Console
	server  *httptest.Server
	flag    *status.Flag
	prefs   *prefs.Store
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	api := stubAPI(t)
	flag := &status.Flag{}
	store := prefs.NewStore(database)
	c, err := New(Deps{
		Client: apiclient.New(api.URL, apiclient.WithHTTPClient(api.Client())),
		Status: flag,
		Prefs:  store,
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	c.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{console: c, server: srv, flag: flag, prefs: store}
}

func (e *testEnv) dial(t *testing.T, page, clientID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/console?page=" + page
	header := http.Header{}
	if clientID != "" {
		header.Set("Cookie", ClientCookie+"="+clientID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(outbound) bool) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg outbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestDiagnosisEndToEnd(t *testing.T) {
	env := setupTest(t)
	conn := env.dial(t, "main", "")

	if err := conn.WriteJSON(inbound{Type: "diagnose"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(m outbound) bool {
		return m.Type == "view" && strings.Contains(m.HTML, "badge-severity")
	})
	html := msg.HTML

	if n := strings.Count(html, "badge-category"); n != 1 {
		t.Errorf("category badges = %d, want 1", n)
	}
	if !strings.Contains(html, `<span class="badge badge-category badge-blue">Payment errors</span>`) {
		t.Error("missing Payment errors category badge")
	}
	if !strings.Contains(html, `<span class="badge badge-severity badge-red">High</span>`) {
		t.Error("severity badge should read High in the red tone")
	}
	if n := strings.Count(html, `<li class="step">`); n != 2 {
		t.Errorf("steps = %d, want 2", n)
	}
	first := strings.Index(html, "Verify billing address")
	second := strings.Index(html, "Retry payment")
	if first < 0 || second < 0 || first > second {
		t.Error("steps not rendered in server order")
	}
	if n := strings.Count(html, `<li class="ref">`); n != 1 {
		t.Errorf("references = %d, want 1", n)
	}
	if strings.Contains(html, "error-banner") {
		t.Error("unexpected error banner")
	}
}

func TestSessionPublishesStatus(t *testing.T) {
	env := setupTest(t)
	conn := env.dial(t, "main", "")

	readUntil(t, conn, func(m outbound) bool {
		return m.Type == "navbar" && m.Online != nil && *m.Online
	})
	if online, known := env.flag.Online(); !online || !known {
		t.Errorf("flag = (%v, %v), want (true, true)", online, known)
	}

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	w := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `class="status-dot online"`) {
		t.Error("navbar should show online after the health check")
	}
}

func TestApplySampleOverSession(t *testing.T) {
	env := setupTest(t)
	conn := env.dial(t, "main", "")

	if err := conn.WriteJSON(inbound{Type: "apply_sample", ID: "ach-hold"}); err != nil {
		t.Fatal(err)
	}
	inc, _ := env.console.deps.Samples.ByID("ach-hold")
	readUntil(t, conn, func(m outbound) bool {
		return m.Type == "view" && strings.Contains(m.HTML, template.HTMLEscapeString(inc.ErrorCode))
	})
}

func TestThemeSessionPersists(t *testing.T) {
	env := setupTest(t)
	id := "5b0c4b7e-6d55-4ad5-9f36-0b7f2a0e2c11"
	conn := env.dial(t, "about", id)

	first := readUntil(t, conn, func(m outbound) bool { return m.Type == "theme" })
	if first.Theme.Preference != theme.PreferenceAuto {
		t.Errorf("initial preference = %q, want auto", first.Theme.Preference)
	}

	conn.WriteJSON(inbound{Type: "color_scheme", Value: "dark"})
	msg := readUntil(t, conn, func(m outbound) bool { return m.Type == "theme" })
	if msg.Theme.Theme != theme.Dark {
		t.Errorf("auto after dark scheme = %q, want dark", msg.Theme.Theme)
	}

	conn.WriteJSON(inbound{Type: "theme", Value: "light"})
	msg = readUntil(t, conn, func(m outbound) bool { return m.Type == "theme" })
	if msg.Theme.Preference != theme.PreferenceLight || msg.Theme.Theme != theme.Light {
		t.Errorf("theme = %+v, want light/light", msg.Theme)
	}

	// The preference is persisted after it is applied.
	deadline := time.Now().Add(5 * time.Second)
	for {
		v, ok, _ := env.prefs.Get(t.Context(), id, theme.DefaultKey)
		if ok && v == "light" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("preference never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Stored preferences drive the next full page load.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: id})
	w := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(w, req)
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="light" data-preference="light"`) {
		t.Error("page should render the stored light preference")
	}
	if !strings.Contains(body, `data-theme-pref="light" aria-pressed="true"`) {
		t.Error("light toggle should be pressed")
	}
}

func TestInitialThemeFromClientHint(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(schemeHint, `"dark"`)
	w := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(w, req)

	if got := w.Header().Get("Accept-CH"); got != schemeHint {
		t.Errorf("Accept-CH = %q", got)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark" data-preference="auto"`) {
		t.Error("auto preference should follow the client hint")
	}
	found := false
	for _, ck := range w.Result().Cookies() {
		if ck.Name == ClientCookie && ck.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a client id cookie")
	}
}

func TestCopyOverSession(t *testing.T) {
	env := setupTest(t)
	conn := env.dial(t, "main", "")

	conn.WriteJSON(inbound{Type: "diagnose"})
	readUntil(t, conn, func(m outbound) bool {
		return m.Type == "view" && strings.Contains(m.HTML, "badge-severity")
	})

	conn.WriteJSON(inbound{Type: "copy", Panel: "steps"})
	clip := readUntil(t, conn, func(m outbound) bool { return m.Type == "clipboard" })
	if clip.Text != "Verify billing address\nRetry payment" {
		t.Errorf("clipboard text = %q", clip.Text)
	}
	conn.WriteJSON(inbound{Type: "clipboard_ack", ID: clip.ID, OK: true})
	notice := readUntil(t, conn, func(m outbound) bool { return m.Type == "notice" })
	if !notice.Notice.OK || notice.Notice.Message != "Copied to clipboard" {
		t.Errorf("notice = %+v", notice.Notice)
	}

	conn.WriteJSON(inbound{Type: "copy", Panel: "summary"})
	notice = readUntil(t, conn, func(m outbound) bool { return m.Type == "notice" })
	if notice.Notice.OK {
		t.Error("copying an empty summary should fail")
	}
}

func TestSessionCloseReleasesSubscriptions(t *testing.T) {
	env := setupTest(t)
	conn := env.dial(t, "main", "")
	readUntil(t, conn, func(m outbound) bool { return m.Type == "navbar" })
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for env.flag.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("status subscribers = %d after close", env.flag.Subscribers())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestViewRendersSparseResult(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name    string
		result  *apiclient.DiagnosisResult
		want    []string
		notWant []string
	}{
		{
			name:    "no result",
			notWant: []string{"Detected error:", "Signals ("},
		},
		{
			name:   "empty result",
			result: &apiclient.DiagnosisResult{},
			want:   []string{"Detected error: <span class=\"muted\">—</span>", "Signals (0)", "No signals detected.", "Suggested Steps (0)"},
		},
		{
			name:    "rules version without notes",
			result:  &apiclient.DiagnosisResult{RulesVersion: "v7", Signals: []string{"avs_mismatch", "cvv_fail"}},
			want:    []string{"Rules version: <code>v7</code>", "Signals (2)", "cvv_fail"},
			notWant: []string{"Raw notes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := env.console.pages.fragment("view", env.console.viewData(workflow.Snapshot{Result: tt.result}))
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("view missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("view should not contain %q", w)
				}
			}
		})
	}
}

func TestStalledPageDoesNotBlockOthers(t *testing.T) {
	env := setupTest(t)
	stalled := env.dial(t, "main", "stalled")

	// Every field change echoes the value back in a view render. Never
	// reading them fills the socket until the server stops consuming input.
	big := strings.Repeat("x", 64<<10)
	stalled.SetWriteDeadline(time.Now().Add(time.Second))
	for i := 0; i < 500; i++ {
		if err := stalled.WriteJSON(inbound{Type: "field", Field: "message", Value: big}); err != nil {
			break
		}
	}

	conn := env.dial(t, "main", "")
	readUntil(t, conn, func(m outbound) bool {
		return m.Type == "view" && strings.Contains(m.HTML, "API Online")
	})
}

func TestWebSocketErrors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		page string
		msg  any
		want string
	}{
		{"unknown type", "main", inbound{Type: "bogus"}, "unknown message type"},
		{"bad theme", "main", inbound{Type: "theme", Value: "sepia"}, "invalid theme preference"},
		{"unknown field", "main", inbound{Type: "field", Field: "amount", Value: "1"}, "unknown field"},
		{"view message off main", "about", inbound{Type: "diagnose"}, "no console view"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := env.dial(t, tt.page, "")
			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatal(err)
			}
			msg := readUntil(t, conn, func(m outbound) bool { return m.Type == "error" })
			if !strings.Contains(msg.Error, tt.want) {
				t.Errorf("error = %q, want %q", msg.Error, tt.want)
			}
		})
	}
}

func TestPages(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		path   string
		status int
		want   []string
	}{
		{"/", http.StatusOK, []string{"Payment Resolution Console", defaultFormMarker, "API Offline", `class="status-dot offline"`}},
		{"/about", http.StatusOK, []string{"About This Project", "Payment errors", "/support/diagnose/with-summary"}},
		{"/missing", http.StatusNotFound, []string{"Page Not Found", `href="/"`, `href="/about"`}},
		{"/static/console.js", http.StatusOK, []string{"WebSocket"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			env.server.Config.Handler.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			for _, s := range tt.want {
				if !strings.Contains(w.Body.String(), s) {
					t.Errorf("body missing %q", s)
				}
			}
		})
	}
}

// defaultFormMarker is the pre-filled error code input.
const defaultFormMarker = `value="PAYMENT_METHOD_ERROR"`

func TestRenderFallback(t *testing.T) {
	p := &pages{
		tmpl: template.Must(template.New("pages").Funcs(template.FuncMap{
			"boom":    func() (string, error) { return "", errors.New("boom") },
			"explode": func() string { panic("kaboom") },
		}).Parse(`{{define "err"}}partial output {{boom}}{{end}}{{define "panic"}}{{explode}}{{end}}`)),
		logger: zap.NewNop(),
	}

	for _, name := range []string{"err", "panic"} {
		w := httptest.NewRecorder()
		p.render(w, http.StatusOK, name, nil)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", name, w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "Something went wrong") || strings.Contains(body, "partial output") {
			t.Errorf("%s: body = %q", name, body)
		}
		if got := p.fragment(name, nil); got != fallbackFragment {
			t.Errorf("%s: fragment = %q", name, got)
		}
	}
}

func TestBoundary(t *testing.T) {
	h := Boundary(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Something went wrong") {
		t.Error("expected fallback page")
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without a client")
	}
}

func TestOutboundEncoding(t *testing.T) {
	online := false
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(outbound{Type: "navbar", Online: &online}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"type":"navbar","online":false}` {
		t.Errorf("encoded = %s", got)
	}
}
