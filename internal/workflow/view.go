// Package workflow implements the diagnosis view: form state, the health
// check performed on mount, and the single-flight diagnose cycle.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/samples"
)

const (
	DefaultErrorCode = "PAYMENT_METHOD_ERROR"
	DefaultMessage   = "Card declined: AVS mismatch"
)

// ErrInFlight is returned when a diagnosis is requested while another is
// still running. The request is dropped, not queued.
var ErrInFlight = errors.New("diagnosis already in flight")

// ErrUnmounted is returned by operations attempted after Unmount.
var ErrUnmounted = errors.New("view unmounted")

// Field names a form input.
type Field string

const (
	FieldErrorCode Field = "error_code"
	FieldMessage   Field = "message"
	FieldTrace     Field = "trace"
)

// Diagnoser is the subset of the API client the view needs.
type Diagnoser interface {
	Ping(ctx context.Context) apiclient.PingStatus
	Diagnose(ctx context.Context, req apiclient.DiagnosisRequest) (*apiclient.DiagnosisResult, error)
	BaseURL() string
}

// SampleLookup resolves sample incidents by id.
type SampleLookup interface {
	ByID(id string) (samples.Incident, bool)
}

// StatusPublisher receives the health-check outcome.
type StatusPublisher interface {
	Publish(online bool)
}

// Recorder persists diagnosis runs.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (*history.Run, error)
}

// Observer is notified of diagnosis outcomes, e.g. for metrics.
type Observer interface {
	ObserveDiagnosis(elapsed time.Duration, ok bool)
	ObservePing(online bool)
}

// Deps are the collaborators of a View. Client is required.
type Deps struct {
	Client    Diagnoser
	Samples   SampleLookup
	Status    StatusPublisher
	Clipboard Clipboard
	Recorder  Recorder
	Observer  Observer
	Logger    *zap.Logger
}

// Options tune a View.
type Options struct {
	// Source and ClientID tag recorded runs.
	Source   history.Source
	ClientID string
	// OnChange is called after every state change with a fresh snapshot.
	// It runs outside the view's lock.
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	ErrorCode  string
	Message    string
	Trace      string
	Diagnosing bool
	Ping       *apiclient.PingStatus
	Result     *apiclient.DiagnosisResult
	Err        string
	BaseURL    string
	Mounted    bool
}

// View is one instance of the diagnosis screen. It is safe for concurrent
// use.
type View struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	errorCode  string
	message    string
	trace      string
	diagnosing bool
	ping       *apiclient.PingStatus
	result     *apiclient.DiagnosisResult
	errMsg     string

	mounted  bool
	torndown bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an unmounted view with the default form values.
func New(deps Deps, opts Options) *View {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Source == "" {
		opts.Source = history.SourceWeb
	}
	return &View{
		deps:      deps,
		opts:      opts,
		errorCode: DefaultErrorCode,
		message:   DefaultMessage,
	}
}

// Mount starts the one-time health check. The check runs under a context
// derived from ctx that Unmount cancels. Mounting twice, or after Unmount, is
// a no-op.
func (v *View) Mount(ctx context.Context) {
	v.mu.Lock()
	if v.mounted || v.torndown {
		v.mu.Unlock()
		return
	}
	v.mounted = true
	v.ctx, v.cancel = context.WithCancel(ctx)
	runCtx := v.ctx
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		v.checkHealth(runCtx)
	}()
}

func (v *View) checkHealth(ctx context.Context) {
	status := v.deps.Client.Ping(ctx)

	v.mu.Lock()
	// Resume point: a torn-down view must not write state or publish.
	if v.torndown || ctx.Err() != nil {
		v.mu.Unlock()
		v.deps.Logger.Debug("health check resolved after unmount; dropped")
		return
	}
	v.ping = &status
	v.mu.Unlock()

	// Subscribers may be slow; never publish with the lock held.
	if v.deps.Status != nil {
		v.deps.Status.Publish(status.OK)
	}

	if v.deps.Observer != nil {
		v.deps.Observer.ObservePing(status.OK)
	}
	if !status.OK {
		v.deps.Logger.Info("diagnostic api offline", zap.String("base", v.deps.Client.BaseURL()))
	}
	v.changed()
}

// Unmount cancels the health check and any in-flight diagnosis, and waits
// for background work started by the view to finish. After Unmount the view
// no longer changes state. It is idempotent.
func (v *View) Unmount() {
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return
	}
	v.torndown = true
	cancel := v.cancel
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.wg.Wait()
}

// SetField updates one form input.
func (v *View) SetField(f Field, value string) bool {
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return false
	}
	switch f {
	case FieldErrorCode:
		v.errorCode = value
	case FieldMessage:
		v.message = value
	case FieldTrace:
		v.trace = value
	default:
		v.mu.Unlock()
		return false
	}
	v.mu.Unlock()
	v.changed()
	return true
}

// ApplySample overwrites all three form fields from the sample with the given
// id. An unknown id leaves the form untouched and returns false. Applying a
// sample never starts a diagnosis.
func (v *View) ApplySample(id string) bool {
	if v.deps.Samples == nil {
		return false
	}
	inc, ok := v.deps.Samples.ByID(id)
	if !ok {
		return false
	}

	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return false
	}
	v.errorCode = inc.ErrorCode
	v.message = inc.Message
	v.trace = inc.Trace
	v.mu.Unlock()

	v.changed()
	return true
}

// RunDiagnosis submits the current form. It returns ErrInFlight without
// issuing a request when another diagnosis is running. On failure the error
// banner names the configured base URL and the previous result is cleared;
// the diagnosing flag is always cleared on return.
func (v *View) RunDiagnosis(ctx context.Context) error {
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return ErrUnmounted
	}
	if v.diagnosing {
		v.mu.Unlock()
		return ErrInFlight
	}
	v.diagnosing = true
	v.errMsg = ""
	v.result = nil
	req := apiclient.DiagnosisRequest{
		ErrorCode: strings.TrimSpace(v.errorCode),
		Message:   strings.TrimSpace(v.message),
	}
	if v.trace != "" {
		req.Trace = v.trace
	}
	if v.ctx != nil {
		// Tie the request to the view's lifetime as well as the caller's.
		var stop context.CancelFunc
		ctx, stop = mergeCancel(ctx, v.ctx)
		defer stop()
	}
	v.mu.Unlock()
	v.changed()

	defer func() {
		v.mu.Lock()
		v.diagnosing = false
		v.mu.Unlock()
		v.changed()
	}()

	start := time.Now()
	result, err := v.deps.Client.Diagnose(ctx, req)
	elapsed := time.Since(start)

	v.mu.Lock()
	if !v.torndown {
		if err != nil {
			v.result = nil
			v.errMsg = bannerFor(err, v.deps.Client.BaseURL())
		} else {
			v.result = result
		}
	}
	v.mu.Unlock()

	if v.deps.Observer != nil {
		v.deps.Observer.ObserveDiagnosis(elapsed, err == nil)
	}
	v.record(req, start, elapsed, result, err)

	if err != nil {
		v.deps.Logger.Warn("diagnosis failed",
			zap.String("error_code", req.ErrorCode),
			zap.String("base", v.deps.Client.BaseURL()),
			zap.Error(err),
		)
		return err
	}
	v.deps.Logger.Info("diagnosis complete",
		zap.String("error_code", req.ErrorCode),
		zap.String("category", result.Category),
		zap.String("severity", result.Severity),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (v *View) record(req apiclient.DiagnosisRequest, start time.Time, elapsed time.Duration, result *apiclient.DiagnosisResult, err error) {
	if v.deps.Recorder == nil {
		return
	}
	run := history.Run{
		StartedAt: start,
		Duration:  elapsed,
		Source:    v.opts.Source,
		ClientID:  v.opts.ClientID,
		BaseURL:   v.deps.Client.BaseURL(),
		ErrorCode: req.ErrorCode,
		Message:   req.Message,
		HasTrace:  req.Trace != "",
		Outcome:   history.OutcomeSuccess,
		Result:    result,
	}
	if err != nil {
		run.Outcome = history.OutcomeFailed
		run.Error = err.Error()
	}
	// Recording must not be cut short by a cancelled request context.
	if _, recErr := v.deps.Recorder.Record(context.Background(), run); recErr != nil {
		v.deps.Logger.Warn("recording diagnosis run", zap.Error(recErr))
	}
}

func bannerFor(err error, base string) string {
	var ce *apiclient.ConnectionError
	if errors.As(err, &ce) {
		return ce.Guidance()
	}
	return (&apiclient.ConnectionError{BaseURL: base}).Guidance()
}

// KeyEvent is a keyboard event forwarded from the page.
type KeyEvent struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl"`
	Meta bool   `json:"meta"`
}

// IsRunChord reports whether e is Ctrl+Enter or Cmd+Enter.
func (e KeyEvent) IsRunChord() bool {
	return (e.Ctrl || e.Meta) && e.Key == "Enter"
}

// HandleKey starts a diagnosis in the background when e is the run chord and
// the view is mounted. It reports whether a run was started; a chord pressed
// while a diagnosis is in flight is ignored.
func (v *View) HandleKey(e KeyEvent) bool {
	if !e.IsRunChord() {
		return false
	}

	v.mu.Lock()
	if !v.mounted || v.torndown || v.diagnosing {
		v.mu.Unlock()
		return false
	}
	ctx := v.ctx
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		_ = v.RunDiagnosis(ctx)
	}()
	return true
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	s := Snapshot{
		ErrorCode:  v.errorCode,
		Message:    v.message,
		Trace:      v.trace,
		Diagnosing: v.diagnosing,
		Err:        v.errMsg,
		BaseURL:    v.deps.Client.BaseURL(),
		Mounted:    v.mounted && !v.torndown,
	}
	if v.ping != nil {
		p := *v.ping
		s.Ping = &p
	}
	if v.result != nil {
		r := cloneResult(*v.result)
		s.Result = &r
	}
	return s
}

func (v *View) changed() {
	if v.opts.OnChange == nil {
		return
	}
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()
	v.opts.OnChange(snap)
}

func cloneResult(r apiclient.DiagnosisResult) apiclient.DiagnosisResult {
	r.Signals = append([]string(nil), r.Signals...)
	r.SuggestedSteps = append([]string(nil), r.SuggestedSteps...)
	r.References = append([]string(nil), r.References...)
	return r
}

// mergeCancel returns a context derived from a that is also cancelled when b
// is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(a)
	stop := context.AfterFunc(b, func() { cancel(context.Cause(b)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
