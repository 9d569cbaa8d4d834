package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestObserver(t *testing.T) {
	var o Observer
	before := testutil.ToFloat64(diagnosesTotal.WithLabelValues(OutcomeFailed))
	o.ObserveDiagnosis(-time.Second, false)
	if got := testutil.ToFloat64(diagnosesTotal.WithLabelValues(OutcomeFailed)); got != before+1 {
		t.Errorf("failed counter = %v, want %v", got, before+1)
	}

	o.ObservePing(true)
	if got := testutil.ToFloat64(apiUp); got != 1 {
		t.Errorf("api_up = %v, want 1", got)
	}
	o.ObservePing(false)
	if got := testutil.ToFloat64(apiUp); got != 0 {
		t.Errorf("api_up = %v, want 0", got)
	}

	base := testutil.ToFloat64(sessionsActive)
	var s Sessions
	s.SessionOpened()
	s.SessionOpened()
	s.SessionClosed()
	if got := testutil.ToFloat64(sessionsActive); got != base+1 {
		t.Errorf("sessions_active = %v, want %v", got, base+1)
	}
}
