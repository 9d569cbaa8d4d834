package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/theme"
	"github.com/sourpat/payresolve/internal/workflow"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// clipboardTimeout bounds how long a copy waits for the browser to answer.
	clipboardTimeout = 5 * time.Second
	// writeTimeout bounds a single websocket write. A page that stops reading
	// is disconnected once it expires.
	writeTimeout = 10 * time.Second
	outboxSize   = 32
)

// inbound is a message from the page.
type inbound struct {
	Type  string             `json:"type"`
	Field string             `json:"field,omitempty"`
	Value string             `json:"value,omitempty"`
	ID    string             `json:"id,omitempty"`
	Panel string             `json:"panel,omitempty"`
	Key   *workflow.KeyEvent `json:"key,omitempty"`
	OK    bool               `json:"ok,omitempty"`
}

// outbound is a message to the page.
type outbound struct {
	Type   string           `json:"type"`
	HTML   string           `json:"html,omitempty"`
	Online *bool            `json:"online,omitempty"`
	Theme  *theme.Applied   `json:"theme,omitempty"`
	ID     string           `json:"id,omitempty"`
	Text   string           `json:"text,omitempty"`
	Notice *workflow.Notice `json:"notice,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// session is one open page. Opening the main page's session mounts a
// workflow view; closing it unmounts the view.
type session struct {
	console *Console
	conn    *websocket.Conn
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// outbox feeds the single writer goroutine.
	outbox     chan outbound
	writerDone chan struct{}

	env   *theme.SchemeFeed
	theme *theme.Controller
	view  *workflow.View

	clipSeq atomic.Uint64
	clipMu  sync.Mutex
	pending map[string]chan bool
}

func (c *Console) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := clientID(nil, r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.deps.Logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	s := c.newSession(r, conn, id)
	defer s.close()
	s.run()
}

func (c *Console) newSession(r *http.Request, conn *websocket.Conn, id string) *session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s := &session{
		console: c,
		conn:    conn,
		logger:  c.deps.Logger.With(zap.String("client", id)),
		ctx:     ctx,
		cancel:  cancel,
		env:     theme.NewSchemeFeed(schemeFromHint(r.Header.Get(schemeHint))),
		pending: make(map[string]chan bool),

		outbox:     make(chan outbound, outboxSize),
		writerDone: make(chan struct{}),
	}
	go s.writeLoop()
	if c.deps.Sessions != nil {
		c.deps.Sessions.SessionOpened()
	}

	s.theme = theme.NewController(ctx, c.themeStore(id), s.env, theme.RootFunc(s.applyTheme),
		theme.WithKey(c.deps.ThemeKey),
		theme.WithLogger(s.logger),
	)

	if r.URL.Query().Get("page") == "main" || r.URL.Query().Get("page") == "" {
		s.view = workflow.New(workflow.Deps{
			Client:    c.deps.Client,
			Samples:   c.deps.Samples,
			Status:    c.deps.Status,
			Clipboard: workflow.ClipboardFunc(s.writeClipboard),
			Recorder:  c.deps.Recorder,
			Observer:  c.deps.Observer,
			Logger:    s.logger,
		}, workflow.Options{
			Source:   history.SourceWeb,
			ClientID: id,
			OnChange: s.pushView,
		})
	}
	return s
}

// watchStatus forwards status flag changes to the navbar dot. Publish runs
// subscribers inline, so a full outbox drops the update instead of blocking
// the publisher.
func (s *session) watchStatus() func() {
	return s.console.deps.Status.Subscribe(func(online bool) {
		s.trySend(outbound{Type: "navbar", Online: &online})
	})
}

func (s *session) run() {
	stopStatus := s.watchStatus()
	defer stopStatus()

	if s.view != nil {
		s.view.Mount(s.ctx)
		s.pushView(s.view.Snapshot())
	}
	online, _ := s.console.deps.Status.Online()
	s.send(outbound{Type: "navbar", Online: &online})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			s.sendError("invalid message format")
			continue
		}
		s.dispatch(in)
	}
}

func (s *session) dispatch(in inbound) {
	switch in.Type {
	case "theme":
		pref, err := theme.ParsePreference(in.Value)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		if err := s.theme.Set(s.ctx, pref); err != nil {
			s.logger.Warn("saving theme preference", zap.Error(err))
		}
	case "color_scheme":
		s.env.Set(theme.ParseResolved(in.Value))
	case "clipboard_ack":
		s.ackClipboard(in.ID, in.OK)
	case "field", "apply_sample", "diagnose", "key", "copy":
		if s.view == nil {
			s.sendError("no console view on this page")
			return
		}
		s.dispatchView(in)
	default:
		s.sendError("unknown message type: " + in.Type)
	}
}

func (s *session) dispatchView(in inbound) {
	switch in.Type {
	case "field":
		if !s.view.SetField(workflow.Field(in.Field), in.Value) {
			s.sendError("unknown field: " + in.Field)
		}
	case "apply_sample":
		// Unknown ids are ignored.
		s.view.ApplySample(in.ID)
	case "diagnose":
		s.goAsync(func() {
			if err := s.view.RunDiagnosis(s.ctx); errors.Is(err, workflow.ErrInFlight) {
				s.logger.Debug("diagnose ignored; already in flight")
			}
		})
	case "key":
		if in.Key != nil {
			s.view.HandleKey(*in.Key)
		}
	case "copy":
		// The copy waits for a clipboard_ack, which only the read loop can
		// deliver, so it must not block here.
		s.goAsync(func() {
			n := s.view.CopyPanel(s.ctx, workflow.Panel(in.Panel))
			s.send(outbound{Type: "notice", Notice: &n})
		})
	}
}

func (s *session) goAsync(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *session) pushView(snap workflow.Snapshot) {
	html := s.console.pages.fragment("view", s.console.viewData(snap))
	s.send(outbound{Type: "view", HTML: html})
}

func (s *session) applyTheme(a theme.Applied) {
	s.send(outbound{Type: "theme", Theme: &a})
}

// writeClipboard asks the page to write text and waits for its answer.
func (s *session) writeClipboard(ctx context.Context, text string) error {
	id := strconv.FormatUint(s.clipSeq.Add(1), 10)
	ch := make(chan bool, 1)
	s.clipMu.Lock()
	s.pending[id] = ch
	s.clipMu.Unlock()
	defer func() {
		s.clipMu.Lock()
		delete(s.pending, id)
		s.clipMu.Unlock()
	}()

	if err := s.send(outbound{Type: "clipboard", ID: id, Text: text}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	select {
	case ok := <-ch:
		if !ok {
			return errors.New("browser rejected clipboard write")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) ackClipboard(id string, ok bool) {
	s.clipMu.Lock()
	ch := s.pending[id]
	s.clipMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ok:
	default:
	}
}

// send queues out for the writer. It blocks while the outbox is full and
// fails once the session is closing.
func (s *session) send(out outbound) error {
	select {
	case s.outbox <- out:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// trySend queues out unless the outbox is full.
func (s *session) trySend(out outbound) {
	select {
	case s.outbox <- out:
	default:
		s.logger.Debug("outbox full; dropped", zap.String("type", out.Type))
	}
}

// writeLoop owns all writes to the connection. A failed or timed-out write
// ends the session.
func (s *session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case out := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(out); err != nil {
				s.logger.Debug("websocket write", zap.String("type", out.Type), zap.Error(err))
				s.cancel()
				s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) sendError(message string) {
	s.send(outbound{Type: "error", Error: message})
}

// close unmounts the view and releases every subscription the session took.
func (s *session) close() {
	s.cancel()
	if s.view != nil {
		s.view.Unmount()
	}
	s.wg.Wait()
	<-s.writerDone
	s.theme.Close()
	if s.console.deps.Sessions != nil {
		s.console.deps.Sessions.SessionClosed()
	}
}
