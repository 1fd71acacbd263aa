// Package alert maintains the deduplicated active-alert set derived from
// feed snapshots.
package alert

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"fieldtrack/internal/feed"
)

// Fixed policy constants. Not configurable on purpose: alert thresholds
// must mean the same thing on every dashboard.
const (
	// LowAccuracyThresholdM is the accuracy radius above which a
	// low-accuracy alert is raised.
	LowAccuracyThresholdM = 500.0
	// OfflineAfter is how long an entity must be silent before the feed
	// marks it offline; used here for the alert message only.
	OfflineAfter = 15 * time.Minute
)

// Kind identifies the alert category. Its value is the id prefix.
type Kind string

const (
	KindOffline     Kind = "offline"
	KindLowAccuracy Kind = "accuracy"
)

// Alert is one active alert. At most one alert per (kind, entity) exists.
type Alert struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	EntityID string    `json:"entity_id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// Engine holds the active alert set. Evaluate is a pure function of the
// snapshot plus this set; alerts never expire by time, only the
// online-transition rule clears them.
type Engine struct {
	mu     sync.Mutex
	active map[string]Alert
	now    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		active: make(map[string]Alert),
		now:    time.Now,
	}
}

func alertID(kind Kind, entityID string) string {
	return fmt.Sprintf("%s_%s", kind, entityID)
}

// Evaluate applies the alert rules to one snapshot.
func (e *Engine) Evaluate(entities []feed.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range entities {
		if ent.Status == feed.StatusOffline {
			e.raiseLocked(KindOffline, ent,
				"Tracker offline",
				fmt.Sprintf("%s has not reported for over %d minutes", displayName(ent), int(OfflineAfter.Minutes())))
		}
		if ent.AccuracyM > LowAccuracyThresholdM {
			e.raiseLocked(KindLowAccuracy, ent,
				"Low accuracy",
				fmt.Sprintf("%s is reporting %.0fm accuracy (limit %.0fm)", displayName(ent), ent.AccuracyM, LowAccuracyThresholdM))
		}
		if ent.Status == feed.StatusOnline {
			delete(e.active, alertID(KindOffline, ent.ID))
			delete(e.active, alertID(KindLowAccuracy, ent.ID))
		}
	}
}

func (e *Engine) raiseLocked(kind Kind, ent feed.Entity, title, message string) {
	id := alertID(kind, ent.ID)
	if _, exists := e.active[id]; exists {
		return
	}
	e.active[id] = Alert{
		ID:       id,
		Kind:     kind,
		EntityID: ent.ID,
		Title:    title,
		Message:  message,
		RaisedAt: e.now(),
	}
}

// Active returns the current alerts, oldest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	return out
}

// Count returns the number of active alerts (the badge count).
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func displayName(ent feed.Entity) string {
	if ent.Username != "" {
		return ent.Username
	}
	return ent.ID
}
