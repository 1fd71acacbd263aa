// Package track owns the tracking-session lifecycle: initial fix, session
// registration with the collector, the continuous watch, and fan-out of
// accepted samples to reporting, archive, and display.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldtrack/internal/geoloc"
	"fieldtrack/internal/sink"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

const (
	historyCap   = 10
	watchTimeout = 20 * time.Second
	watchMaxAge  = 10 * time.Second
)

// ErrStartAborted is returned by Start when Stop pre-empted it mid-flight.
var ErrStartAborted = errors.New("start aborted by stop request")

// Reporter delivers samples and session lifecycle events to the collector.
type Reporter interface {
	StartSession(ctx context.Context, routeType string) (string, error)
	StopSession(ctx context.Context, sessionID string) error
	Report(ctx context.Context, s geoloc.Sample, sessionID string) error
}

// DisplayFunc receives every accepted sample with its display tier.
type DisplayFunc func(geoloc.Sample, Tier)

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State         State           `json:"state"`
	SessionID     string          `json:"session_id,omitempty"`
	DeviceID      string          `json:"device_id"`
	History       []geoloc.Sample `json:"history,omitempty"`
	SamplesSeen   int             `json:"samples_seen"`
	ReportsSent   int             `json:"reports_sent"`
	ReportsFailed int             `json:"reports_failed"`
	LastTier      Tier            `json:"last_tier,omitempty"`
}

// Controller is the finite-state tracking session controller.
//
// Idle -> Starting -> Active -> Stopping -> Idle, with a direct
// Active -> Idle transition on fatal permission failure.
type Controller struct {
	source   *geoloc.Source
	provider geoloc.Provider
	reporter Reporter
	archive  sink.Writer
	display  DisplayFunc
	logger   *slog.Logger

	deviceID  string
	routeType string

	mu            sync.Mutex
	state         State
	sessionID     string
	history       []geoloc.Sample
	sub           geoloc.Subscription
	startCancel   context.CancelFunc
	samplesSeen   int
	reportsSent   int
	reportsFailed int
	lastTier      Tier
}

// Option customizes a Controller.
type Option func(*Controller)

// WithArchive fans accepted samples out to an archive writer.
func WithArchive(w sink.Writer) Option {
	return func(c *Controller) { c.archive = w }
}

// WithDisplay registers a display callback for accepted samples.
func WithDisplay(fn DisplayFunc) Option {
	return func(c *Controller) { c.display = fn }
}

// WithDeviceID sets the device identity attached to archived samples.
func WithDeviceID(id string) Option {
	return func(c *Controller) { c.deviceID = id }
}

// WithRouteType sets the route type sent on session start.
func WithRouteType(rt string) Option {
	return func(c *Controller) { c.routeType = rt }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSourceOptions forwards options to the acquisition source.
func WithSourceOptions(opts ...geoloc.SourceOption) Option {
	return func(c *Controller) { c.source = geoloc.NewSource(c.provider, opts...) }
}

func NewController(provider geoloc.Provider, reporter Reporter, opts ...Option) *Controller {
	c := &Controller{
		source:    geoloc.NewSource(provider),
		provider:  provider,
		reporter:  reporter,
		logger:    slog.Default(),
		deviceID:  "device-" + uuid.NewString()[:8],
		routeType: "standard",
		state:     StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start acquires an initial ultra-accuracy fix, registers a session with the
// collector, reports the fix, and opens the continuous watch. Only callable
// from Idle. Every failure path resolves back to Idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start while %s", state)
	}
	c.state = StateStarting
	startCtx, cancel := context.WithCancel(ctx)
	c.startCancel = cancel
	c.mu.Unlock()
	defer cancel()

	fix, err := c.source.Acquire(startCtx, geoloc.StrategyUltraAccuracy)
	if err != nil {
		c.resetToIdle()
		if startCtx.Err() != nil {
			return ErrStartAborted
		}
		return fmt.Errorf("initial fix: %w", err)
	}

	sessionID, err := c.reporter.StartSession(startCtx, c.routeType)
	if err != nil {
		c.resetToIdle()
		if startCtx.Err() != nil {
			return ErrStartAborted
		}
		return err
	}

	// The initial report must land before subscription callbacks are
	// accepted; a collector that cannot record the first fix has no
	// usable session.
	if err := c.reporter.Report(startCtx, fix, sessionID); err != nil {
		if stopErr := c.reporter.StopSession(context.Background(), sessionID); stopErr != nil {
			c.logger.Warn("closing rejected session failed", "session_id", sessionID, "error", stopErr)
		}
		c.resetToIdle()
		return fmt.Errorf("initial report: %w", err)
	}

	sub, err := c.provider.Watch(context.Background(), geoloc.Options{
		HighAccuracy: true,
		Timeout:      watchTimeout,
		MaxAge:       watchMaxAge,
	}, c.onSample, c.onWatchError)
	if err != nil {
		if stopErr := c.reporter.StopSession(context.Background(), sessionID); stopErr != nil {
			c.logger.Warn("closing unwatchable session failed", "session_id", sessionID, "error", stopErr)
		}
		c.resetToIdle()
		return fmt.Errorf("continuous watch: %w", err)
	}

	c.mu.Lock()
	if c.state != StateStarting {
		// Stop pre-empted the start while the session handshake ran.
		c.mu.Unlock()
		sub.Cancel()
		_ = c.reporter.StopSession(context.Background(), sessionID)
		return ErrStartAborted
	}
	c.state = StateActive
	c.sessionID = sessionID
	c.sub = sub
	c.startCancel = nil
	c.appendHistoryLocked(fix)
	c.samplesSeen++
	c.reportsSent++
	c.lastTier = Classify(fix.AccuracyM)
	c.mu.Unlock()

	c.fanOut(fix, sessionID)
	c.logger.Info("tracking session started",
		"session_id", sessionID,
		"accuracy_m", fix.AccuracyM,
		"tier", Classify(fix.AccuracyM))
	return nil
}

// Stop ends tracking. From Active it cancels the watch and notifies the
// collector best-effort; from Starting it pre-empts the in-flight Start
// (the start resolves as ErrStartAborted and any half-created session is
// closed). Idempotent from Idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateStopping:
		c.mu.Unlock()
		return nil
	case StateStarting:
		if c.startCancel != nil {
			c.startCancel()
		}
		c.state = StateIdle
		c.sessionID = ""
		c.history = nil
		c.mu.Unlock()
		return nil
	}

	c.state = StateStopping
	sub := c.sub
	c.sub = nil
	sessionID := c.sessionID
	c.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if sessionID != "" {
		if err := c.reporter.StopSession(ctx, sessionID); err != nil {
			// Best-effort: the local transition happens regardless.
			c.logger.Warn("session-stop delivery failed", "session_id", sessionID, "error", err)
		}
	}

	c.mu.Lock()
	c.state = StateIdle
	c.sessionID = ""
	c.history = nil
	c.mu.Unlock()
	c.logger.Info("tracking session stopped", "session_id", sessionID)
	return nil
}

// TestLocation acquires a single sample with the given strategy without
// touching session state. Backs the manual test-location controls.
func (c *Controller) TestLocation(ctx context.Context, strategy geoloc.Strategy) (geoloc.Sample, Tier, error) {
	s, err := c.source.Acquire(ctx, strategy)
	if err != nil {
		return geoloc.Sample{}, "", err
	}
	return s, Classify(s.AccuracyM), nil
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]geoloc.Sample, len(c.history))
	copy(history, c.history)
	return Status{
		State:         c.state,
		SessionID:     c.sessionID,
		DeviceID:      c.deviceID,
		History:       history,
		SamplesSeen:   c.samplesSeen,
		ReportsSent:   c.reportsSent,
		ReportsFailed: c.reportsFailed,
		LastTier:      c.lastTier,
	}
}

// onSample handles one delivered sample from the continuous watch.
func (c *Controller) onSample(s geoloc.Sample) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.appendHistoryLocked(s)
	c.samplesSeen++
	c.lastTier = Classify(s.AccuracyM)
	sessionID := c.sessionID
	c.mu.Unlock()

	if err := c.reporter.Report(context.Background(), s, sessionID); err != nil {
		// Best-effort under a live watch: one missed upload is better
		// than tearing down the whole session.
		c.logger.Warn("sample report failed", "session_id", sessionID, "error", err)
		c.mu.Lock()
		c.reportsFailed++
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.reportsSent++
		c.mu.Unlock()
	}

	c.fanOut(s, sessionID)
}

// onWatchError classifies continuous-watch failures. Only a permission
// revocation is fatal to the session.
func (c *Controller) onWatchError(err error) {
	switch geoloc.KindOf(err) {
	case geoloc.KindTimeout:
		// Expected under continuous tracking; the watch keeps trying.
	case geoloc.KindUnavailable:
		c.logger.Warn("position temporarily unavailable", "error", err)
	case geoloc.KindPermissionDenied:
		c.mu.Lock()
		if c.state != StateActive {
			c.mu.Unlock()
			return
		}
		sub := c.sub
		c.sub = nil
		sessionID := c.sessionID
		c.state = StateIdle
		c.sessionID = ""
		c.history = nil
		c.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		c.logger.Error("location permission revoked, session cleared", "session_id", sessionID)
	default:
		c.logger.Warn("watch error", "error", err)
	}
}

func (c *Controller) appendHistoryLocked(s geoloc.Sample) {
	c.history = append(c.history, s)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
}

// fanOut archives and displays an accepted sample. Neither effect may
// change controller state.
func (c *Controller) fanOut(s geoloc.Sample, sessionID string) {
	if c.archive != nil {
		rec := sink.Record{
			DeviceID:   c.deviceID,
			SessionID:  sessionID,
			Lat:        s.Lat,
			Lng:        s.Lng,
			AccuracyM:  s.AccuracyM,
			Tier:       string(Classify(s.AccuracyM)),
			CapturedAt: s.CapturedAt,
		}
		if err := c.archive.Write(rec); err != nil {
			c.logger.Warn("archive write failed", "error", err)
		}
	}
	if c.display != nil {
		c.display(s, Classify(s.AccuracyM))
	}
}

func (c *Controller) resetToIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.sessionID = ""
	c.history = nil
	c.startCancel = nil
	c.mu.Unlock()
}
