package track

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fieldtrack/internal/geoloc"
)

// fakeProvider returns scripted one-shot fixes and hands watch callbacks
// to the test for manual delivery.
type fakeProvider struct {
	mu          sync.Mutex
	currentErr  error
	accuracyM   float64
	blockUntil  chan struct{} // optional gate for Current
	watchCount  int
	watchErr    error
	onSample    func(geoloc.Sample)
	onError     func(error)
	cancelCount int
}

func (p *fakeProvider) Current(ctx context.Context, opts geoloc.Options) (geoloc.Sample, error) {
	if p.blockUntil != nil {
		select {
		case <-p.blockUntil:
		case <-ctx.Done():
			return geoloc.Sample{}, &geoloc.Error{Kind: geoloc.KindTimeout, Msg: ctx.Err().Error()}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return geoloc.Sample{}, p.currentErr
	}
	acc := p.accuracyM
	if acc == 0 {
		acc = 10
	}
	return geoloc.Sample{Lat: 48.2, Lng: 16.4, AccuracyM: acc, CapturedAt: time.Now()}, nil
}

func (p *fakeProvider) Watch(ctx context.Context, opts geoloc.Options, onSample func(geoloc.Sample), onError func(error)) (geoloc.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return nil, p.watchErr
	}
	p.watchCount++
	p.onSample = onSample
	p.onError = onError
	return &fakeSub{p: p}, nil
}

type fakeSub struct{ p *fakeProvider }

func (s *fakeSub) Cancel() {
	s.p.mu.Lock()
	s.p.cancelCount++
	s.p.mu.Unlock()
}

// fakeReporter scripts collector responses and counts calls.
type fakeReporter struct {
	mu         sync.Mutex
	startErr   error
	reportErrs []error // consumed in order; nil entries succeed
	starts     int
	stops      int
	reports    int
	stopped    []string
}

func (r *fakeReporter) StartSession(ctx context.Context, routeType string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return "", r.startErr
	}
	return fmt.Sprintf("sess-%d", r.starts), nil
}

func (r *fakeReporter) StopSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.stopped = append(r.stopped, sessionID)
	return nil
}

func (r *fakeReporter) Report(ctx context.Context, s geoloc.Sample, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports++
	if len(r.reportErrs) > 0 {
		err := r.reportErrs[0]
		r.reportErrs = r.reportErrs[1:]
		return err
	}
	return nil
}

func newTestController(p *fakeProvider, r *fakeReporter, opts ...Option) *Controller {
	opts = append(opts, WithSourceOptions(geoloc.WithRetryDelay(0)), WithDeviceID("dev-test"))
	return NewController(p, r, opts...)
}

func TestStartTransitionsToActive(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{}
	c := newTestController(provider, reporter)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := c.Status()
	if st.State != StateActive {
		t.Errorf("state = %s, want active", st.State)
	}
	if st.SessionID != "sess-1" {
		t.Errorf("session id = %q", st.SessionID)
	}
	if provider.watchCount != 1 {
		t.Errorf("watch registrations = %d, want 1", provider.watchCount)
	}
	if reporter.reports != 1 {
		t.Errorf("initial reports = %d, want 1", reporter.reports)
	}
	if len(st.History) != 1 {
		t.Errorf("history length = %d, want 1 (initial fix)", len(st.History))
	}
}

func TestStartRejectedLeavesIdle(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{startErr: errors.New("session rejected: quota")}
	c := newTestController(provider, reporter)

	err := c.Start(t.Context())
	if err == nil {
		t.Fatal("expected surfaced rejection")
	}
	if st := c.Status(); st.State != StateIdle || st.SessionID != "" {
		t.Errorf("state = %+v, want idle with no session", st)
	}
	if provider.watchCount != 0 {
		t.Errorf("no subscription may be registered on rejection, got %d", provider.watchCount)
	}
}

func TestInitialReportFailureAbortsStart(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{reportErrs: []error{errors.New("delivery failed")}}
	c := newTestController(provider, reporter)

	if err := c.Start(t.Context()); err == nil {
		t.Fatal("expected start to fail on initial report")
	}
	if st := c.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if reporter.stops != 1 {
		t.Errorf("half-open session must be closed, stops = %d", reporter.stops)
	}
}

func TestWatchSamplesFlowAndHistoryCap(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{}
	var displayed int
	c := newTestController(provider, reporter, WithDisplay(func(geoloc.Sample, Tier) { displayed++ }))

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 15; i++ {
		provider.onSample(geoloc.Sample{Lat: 48.2 + float64(i)/1000, Lng: 16.4, AccuracyM: 30})
	}

	st := c.Status()
	if len(st.History) != 10 {
		t.Errorf("history length = %d, want capped at 10", len(st.History))
	}
	// Oldest evicted first: the newest sample must be last.
	last := st.History[len(st.History)-1]
	if last.Lat != 48.2+float64(14)/1000 {
		t.Errorf("unexpected newest history entry: %+v", last)
	}
	if st.SamplesSeen != 16 { // initial fix + 15 watch samples
		t.Errorf("samples seen = %d, want 16", st.SamplesSeen)
	}
	if displayed != 16 {
		t.Errorf("display callbacks = %d, want 16", displayed)
	}
}

func TestReportFailureIsNonFatal(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{reportErrs: []error{nil, errors.New("collector hiccup")}}
	c := newTestController(provider, reporter)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	provider.onSample(geoloc.Sample{Lat: 48.3, Lng: 16.4, AccuracyM: 30})

	st := c.Status()
	if st.State != StateActive {
		t.Errorf("a failed steady-state report must not change state, got %s", st.State)
	}
	if st.ReportsFailed != 1 {
		t.Errorf("reports failed = %d, want 1", st.ReportsFailed)
	}
}

func TestWatchErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		kind      geoloc.Kind
		wantState State
	}{
		{"timeout swallowed", geoloc.KindTimeout, StateActive},
		{"unavailable non-fatal", geoloc.KindUnavailable, StateActive},
		{"permission denied fatal", geoloc.KindPermissionDenied, StateIdle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{}
			reporter := &fakeReporter{}
			c := newTestController(provider, reporter)
			if err := c.Start(t.Context()); err != nil {
				t.Fatalf("Start: %v", err)
			}

			provider.onError(&geoloc.Error{Kind: tc.kind})

			st := c.Status()
			if st.State != tc.wantState {
				t.Errorf("state = %s, want %s", st.State, tc.wantState)
			}
			if tc.wantState == StateIdle {
				if st.SessionID != "" {
					t.Errorf("session id must be cleared, got %q", st.SessionID)
				}
				if provider.cancelCount == 0 {
					t.Error("watch must be cancelled on permission failure")
				}
			}
		})
	}
}

func TestStopClearsSessionAndIsIdempotent(t *testing.T) {
	provider := &fakeProvider{}
	reporter := &fakeReporter{}
	c := newTestController(provider, reporter)

	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st := c.Status()
	if st.State != StateIdle || st.SessionID != "" || len(st.History) != 0 {
		t.Errorf("stop must clear session state, got %+v", st)
	}
	if provider.cancelCount != 1 {
		t.Errorf("cancel count = %d, want 1", provider.cancelCount)
	}
	if reporter.stops != 1 || reporter.stopped[0] != "sess-1" {
		t.Errorf("session-stop = %d (%v), want 1 for sess-1", reporter.stops, reporter.stopped)
	}

	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if reporter.stops != 1 {
		t.Errorf("second stop must be a no-op, stops = %d", reporter.stops)
	}
}

func TestStopPreemptsInflightStart(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{blockUntil: gate}
	reporter := &fakeReporter{}
	c := newTestController(provider, reporter)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	// Wait for the controller to enter Starting.
	deadline := time.After(time.Second)
	for c.Status().State != StateStarting {
		select {
		case <-deadline:
			t.Fatal("controller never reached starting")
		case <-time.After(time.Millisecond):
		}
	}

	if err := c.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(gate)

	if err := <-errCh; !errors.Is(err, ErrStartAborted) {
		t.Fatalf("Start = %v, want ErrStartAborted", err)
	}
	st := c.Status()
	if st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if reporter.starts != 0 {
		t.Errorf("no session may be opened after pre-emption, starts = %d", reporter.starts)
	}
}

func TestTestLocationDoesNotTouchSession(t *testing.T) {
	provider := &fakeProvider{accuracyM: 75}
	reporter := &fakeReporter{}
	c := newTestController(provider, reporter)

	s, tier, err := c.TestLocation(t.Context(), geoloc.StrategyHighAccuracy)
	if err != nil {
		t.Fatalf("TestLocation: %v", err)
	}
	if tier != TierGood {
		t.Errorf("tier = %s, want good", tier)
	}
	if s.AccuracyM != 75 {
		t.Errorf("accuracy = %f", s.AccuracyM)
	}
	if st := c.Status(); st.State != StateIdle || st.SamplesSeen != 0 {
		t.Errorf("test location must not touch session state: %+v", st)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		accM float64
		want Tier
	}{
		{10, TierExcellent},
		{50, TierExcellent},
		{51, TierGood},
		{100, TierGood},
		{400, TierFair},
		{900, TierPoor},
		{1500, TierVeryPoor},
	}
	for _, tc := range cases {
		if got := Classify(tc.accM); got != tc.want {
			t.Errorf("Classify(%.0f) = %s, want %s", tc.accM, got, tc.want)
		}
	}
}
