package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/sourpat/payresolve/internal/apiclient"
	"github.com/sourpat/payresolve/internal/history"
	"github.com/sourpat/payresolve/internal/samples"
	"github.com/sourpat/payresolve/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient lets tests control when Ping and Diagnose return.
type fakeClient struct {
	base string

	pingGate chan struct{}
	ping     apiclient.PingStatus

	diagGate  chan struct{}
	result    *apiclient.DiagnosisResult
	err       error
	calls     atomic.Int32
	mu        sync.Mutex
	lastReq   apiclient.DiagnosisRequest
	diagStart chan struct{}
}

func (f *fakeClient) Ping(ctx context.Context) apiclient.PingStatus {
	if f.pingGate != nil {
		select {
		case <-f.pingGate:
		case <-ctx.Done():
			return apiclient.PingStatus{}
		}
	}
	return f.ping
}

func (f *fakeClient) Diagnose(ctx context.Context, req apiclient.DiagnosisRequest) (*apiclient.DiagnosisResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.diagStart != nil {
		f.diagStart <- struct{}{}
	}
	if f.diagGate != nil {
		select {
		case <-f.diagGate:
		case <-ctx.Done():
			return nil, &apiclient.ConnectionError{BaseURL: f.base, Err: ctx.Err()}
		}
	}
	return f.result, f.err
}

func (f *fakeClient) BaseURL() string { return f.base }

func (f *fakeClient) request() apiclient.DiagnosisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (r *memRecorder) Record(_ context.Context, run history.Run) (*history.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return &run, nil
}

func TestDefaults(t *testing.T) {
	v := New(Deps{Client: &fakeClient{base: "http://127.0.0.1:8000"}}, Options{})
	snap := v.Snapshot()
	if snap.ErrorCode != DefaultErrorCode || snap.Message != DefaultMessage || snap.Trace != "" {
		t.Errorf("unexpected defaults: %+v", snap)
	}
	if snap.Diagnosing || snap.Ping != nil || snap.Result != nil || snap.Err != "" {
		t.Errorf("fresh view should be idle: %+v", snap)
	}
}

func TestApplySample(t *testing.T) {
	lib := samples.Default()
	v := New(Deps{Client: &fakeClient{}, Samples: lib}, Options{})

	inc, _ := lib.ByID("jde-timeout")
	if !v.ApplySample("jde-timeout") {
		t.Fatal("ApplySample returned false for known id")
	}
	snap := v.Snapshot()
	got := [3]string{snap.ErrorCode, snap.Message, snap.Trace}
	want := [3]string{inc.ErrorCode, inc.Message, inc.Trace}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields after apply (-want +got):\n%s", diff)
	}

	v.SetField(FieldTrace, "custom trace")
	before := v.Snapshot()
	if v.ApplySample("no-such-sample") {
		t.Error("ApplySample returned true for unknown id")
	}
	if diff := cmp.Diff(before, v.Snapshot()); diff != "" {
		t.Errorf("unknown id changed state (-before +after):\n%s", diff)
	}
}

func TestApplySampleDoesNotRun(t *testing.T) {
	fc := &fakeClient{}
	v := New(Deps{Client: fc, Samples: samples.Default()}, Options{})
	v.ApplySample("payment-avs")
	if n := fc.calls.Load(); n != 0 {
		t.Errorf("diagnose calls = %d, want 0", n)
	}
}

func TestRunDiagnosisSingleFlight(t *testing.T) {
	fc := &fakeClient{
		base:      "http://127.0.0.1:8000",
		diagGate:  make(chan struct{}),
		diagStart: make(chan struct{}, 1),
		result:    &apiclient.DiagnosisResult{Category: "Payment errors"},
	}
	v := New(Deps{Client: fc}, Options{})

	done := make(chan error, 1)
	go func() { done <- v.RunDiagnosis(t.Context()) }()
	<-fc.diagStart

	if !v.Snapshot().Diagnosing {
		t.Error("expected diagnosing while request is in flight")
	}
	if err := v.RunDiagnosis(t.Context()); !errors.Is(err, ErrInFlight) {
		t.Errorf("second RunDiagnosis err = %v, want ErrInFlight", err)
	}
	if n := fc.calls.Load(); n != 1 {
		t.Errorf("calls while in flight = %d, want 1", n)
	}

	close(fc.diagGate)
	if err := <-done; err != nil {
		t.Fatalf("first RunDiagnosis: %v", err)
	}
	if v.Snapshot().Diagnosing {
		t.Error("diagnosing flag not cleared")
	}
}

func TestRunDiagnosisSuccessVerbatim(t *testing.T) {
	want := &apiclient.DiagnosisResult{
		DetectedError:    "PAYMENT_METHOD_ERROR",
		Category:         "Payment errors",
		Severity:         "High",
		Signals:          []string{"avs_mismatch", ""},
		SuggestedSteps:   []string{"Verify billing address", "Retry payment"},
		References:       []string{"KB-101"},
		AssistantSummary: "AVS mismatch on card payment.",
		RawNotes:         "notes",
		RulesVersion:     "builtin",
	}
	fc := &fakeClient{base: "http://127.0.0.1:8000", result: want}
	rec := &memRecorder{}
	v := New(Deps{Client: fc, Recorder: rec}, Options{Source: history.SourceCLI})

	v.SetField(FieldErrorCode, "  PAYMENT_METHOD_ERROR ")
	v.SetField(FieldMessage, " Card declined ")
	if err := v.RunDiagnosis(t.Context()); err != nil {
		t.Fatalf("RunDiagnosis: %v", err)
	}

	snap := v.Snapshot()
	if diff := cmp.Diff(want, snap.Result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	if snap.Err != "" {
		t.Errorf("error banner = %q, want empty", snap.Err)
	}
	wantReq := apiclient.DiagnosisRequest{ErrorCode: "PAYMENT_METHOD_ERROR", Message: "Card declined"}
	if diff := cmp.Diff(wantReq, fc.request()); diff != "" {
		t.Errorf("request (-want +got):\n%s", diff)
	}
	if len(rec.runs) != 1 || rec.runs[0].Outcome != history.OutcomeSuccess || rec.runs[0].Source != history.SourceCLI {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestRunDiagnosisSendsTraceOnlyWhenSet(t *testing.T) {
	tests := []struct {
		trace string
		want  string
	}{
		{"", ""},
		{"  at Foo.bar()\n", "  at Foo.bar()\n"},
		{" \n\t", " \n\t"},
	}
	for _, tt := range tests {
		fc := &fakeClient{result: &apiclient.DiagnosisResult{}}
		v := New(Deps{Client: fc}, Options{})
		v.SetField(FieldTrace, tt.trace)
		if err := v.RunDiagnosis(t.Context()); err != nil {
			t.Fatal(err)
		}
		if got := fc.request().Trace; got != tt.want {
			t.Errorf("trace %q sent as %q, want %q", tt.trace, got, tt.want)
		}
	}
}

func TestRunDiagnosisFailureClearsResult(t *testing.T) {
	base := "http://127.0.0.1:8000"
	fc := &fakeClient{base: base, result: &apiclient.DiagnosisResult{Category: "Payment errors"}}
	rec := &memRecorder{}
	v := New(Deps{Client: fc, Recorder: rec}, Options{})
	if err := v.RunDiagnosis(t.Context()); err != nil {
		t.Fatal(err)
	}

	fc.result = nil
	fc.err = &apiclient.ConnectionError{BaseURL: base, Endpoint: "/support/diagnose/with-summary", Err: errors.New("connection refused")}
	if err := v.RunDiagnosis(t.Context()); err == nil {
		t.Fatal("expected error")
	}

	snap := v.Snapshot()
	if snap.Result != nil {
		t.Errorf("result = %+v, want nil", snap.Result)
	}
	want := "Could not reach API. Ensure the diagnostic service is running on " + base + " and CORS allows this origin."
	if snap.Err != want {
		t.Errorf("banner = %q, want %q", snap.Err, want)
	}
	if snap.Diagnosing {
		t.Error("diagnosing flag not cleared after failure")
	}
	if len(rec.runs) != 2 || rec.runs[1].Outcome != history.OutcomeFailed || rec.runs[1].Error == "" {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestRunDiagnosisBannerIncludesDetail(t *testing.T) {
	base := "/api"
	fc := &fakeClient{base: base, err: &apiclient.ConnectionError{BaseURL: base, StatusCode: 400, Detail: "error_code is required"}}
	v := New(Deps{Client: fc}, Options{})
	_ = v.RunDiagnosis(t.Context())
	want := "Could not reach API. Ensure the diagnostic service is running on /api and CORS allows this origin. Server said: error_code is required"
	if got := v.Snapshot().Err; got != want {
		t.Errorf("banner = %q, want %q", got, want)
	}
}

func TestMountPublishesStatus(t *testing.T) {
	flag := &status.Flag{}
	changes := make(chan Snapshot, 8)
	fc := &fakeClient{base: "/api", ping: apiclient.PingStatus{OK: true, Model: "gpt-4o-mini"}}
	v := New(Deps{Client: fc, Status: flag}, Options{OnChange: func(s Snapshot) { changes <- s }})

	v.Mount(t.Context())
	v.Mount(t.Context())
	snap := <-changes
	v.Unmount()

	if snap.Ping == nil || !snap.Ping.OK || snap.Ping.Model != "gpt-4o-mini" {
		t.Errorf("ping = %+v", snap.Ping)
	}
	if online, known := flag.Online(); !online || !known {
		t.Errorf("flag = (%v, %v), want (true, true)", online, known)
	}
}

// gatedStatus blocks Publish until released.
type gatedStatus struct {
	entered chan bool
	release chan struct{}
}

func (g *gatedStatus) Publish(online bool) {
	g.entered <- online
	<-g.release
}

func TestSlowStatusSubscriberKeepsViewInteractive(t *testing.T) {
	st := &gatedStatus{entered: make(chan bool, 1), release: make(chan struct{})}
	fc := &fakeClient{base: "/api", ping: apiclient.PingStatus{OK: true}}
	v := New(Deps{Client: fc, Status: st}, Options{})

	v.Mount(t.Context())
	select {
	case <-st.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("health check never published")
	}

	done := make(chan Snapshot, 1)
	go func() {
		v.SetField(FieldMessage, "still typing")
		done <- v.Snapshot()
	}()
	select {
	case snap := <-done:
		if snap.Ping == nil || !snap.Ping.OK {
			t.Errorf("ping = %+v, want online", snap.Ping)
		}
		if snap.Message != "still typing" {
			t.Errorf("message = %q", snap.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("view locked while the status subscriber is blocked")
	}

	close(st.release)
	v.Unmount()
}

func TestUnmountBeforeHealthCheck(t *testing.T) {
	flag := &status.Flag{}
	fc := &fakeClient{base: "/api", pingGate: make(chan struct{}), ping: apiclient.PingStatus{OK: true}}
	v := New(Deps{Client: fc, Status: flag}, Options{})

	v.Mount(t.Context())
	v.Unmount()
	close(fc.pingGate)

	if _, known := flag.Online(); known {
		t.Error("status flag published after unmount")
	}
	if v.Snapshot().Ping != nil {
		t.Error("ping state written after unmount")
	}
	v.Unmount()
}

func TestUnmountWithoutMount(t *testing.T) {
	v := New(Deps{Client: &fakeClient{}}, Options{})
	v.Unmount()
	v.Mount(t.Context())
	if v.Snapshot().Mounted {
		t.Error("mount after unmount should be a no-op")
	}
	if err := v.RunDiagnosis(t.Context()); !errors.Is(err, ErrUnmounted) {
		t.Errorf("err = %v, want ErrUnmounted", err)
	}
}

func TestHandleKey(t *testing.T) {
	fc := &fakeClient{result: &apiclient.DiagnosisResult{Severity: "Low"}}
	changes := make(chan Snapshot, 16)
	v := New(Deps{Client: fc}, Options{OnChange: func(s Snapshot) { changes <- s }})

	if v.HandleKey(KeyEvent{Key: "Enter", Ctrl: true}) {
		t.Error("chord before mount should not run")
	}
	v.Mount(t.Context())
	if v.HandleKey(KeyEvent{Key: "Enter"}) {
		t.Error("plain Enter should not run")
	}
	if !v.HandleKey(KeyEvent{Key: "Enter", Meta: true}) {
		t.Fatal("Cmd+Enter should run")
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-changes:
			if s.Result != nil && !s.Diagnosing {
				v.Unmount()
				if n := fc.calls.Load(); n != 1 {
					t.Errorf("calls = %d, want 1", n)
				}
				return
			}
		case <-deadline:
			v.Unmount()
			t.Fatal("diagnosis never completed")
		}
	}
}

func TestUnmountCancelsInFlightDiagnosis(t *testing.T) {
	fc := &fakeClient{diagGate: make(chan struct{}), diagStart: make(chan struct{}, 1)}
	v := New(Deps{Client: fc}, Options{})
	v.Mount(t.Context())

	done := make(chan error, 1)
	go func() { done <- v.RunDiagnosis(context.Background()) }()
	<-fc.diagStart
	v.Unmount()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected cancellation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("diagnosis not cancelled by unmount")
	}
}

func TestCopy(t *testing.T) {
	var wrote []string
	ok := ClipboardFunc(func(_ context.Context, text string) error {
		wrote = append(wrote, text)
		return nil
	})
	fc := &fakeClient{result: &apiclient.DiagnosisResult{
		SuggestedSteps: []string{"Verify billing address", "", "Retry payment"},
	}}
	v := New(Deps{Client: fc, Clipboard: ok}, Options{})
	if err := v.RunDiagnosis(t.Context()); err != nil {
		t.Fatal(err)
	}

	if n := v.CopyPanel(t.Context(), PanelSteps); !n.OK || n.Message != NoticeCopied {
		t.Errorf("notice = %+v", n)
	}
	if diff := cmp.Diff([]string{"Verify billing address\nRetry payment"}, wrote); diff != "" {
		t.Errorf("clipboard (-want +got):\n%s", diff)
	}
	if n := v.CopyPanel(t.Context(), PanelReferences); n.OK {
		t.Error("copying an empty panel should fail")
	}

	before := v.Snapshot()
	failing := New(Deps{Client: fc, Clipboard: ClipboardFunc(func(context.Context, string) error {
		return errors.New("denied")
	})}, Options{})
	if n := failing.Copy(t.Context(), "x"); n.OK || n.Message != NoticeCopyFailed {
		t.Errorf("notice = %+v", n)
	}
	if diff := cmp.Diff(before, v.Snapshot()); diff != "" {
		t.Errorf("copy changed state:\n%s", diff)
	}
}
