package alert

import (
	"testing"
	"time"

	"fieldtrack/internal/feed"
)

func entity(id string, status feed.Status, accM float64) feed.Entity {
	return feed.Entity{ID: id, Username: "user-" + id, Status: status, AccuracyM: accM}
}

func TestEvaluateRaisesOncePerKind(t *testing.T) {
	e := NewEngine()
	snapshot := []feed.Entity{entity("u1", feed.StatusOffline, 900)}

	// Repeated evaluation of the same snapshot must not duplicate alerts.
	for i := 0; i < 3; i++ {
		e.Evaluate(snapshot)
	}

	active := e.Active()
	if len(active) != 2 {
		t.Fatalf("active alerts = %d, want 2 (offline + accuracy)", len(active))
	}
	seen := map[string]bool{}
	for _, a := range active {
		if seen[a.ID] {
			t.Errorf("duplicate alert id %s", a.ID)
		}
		seen[a.ID] = true
	}
	if !seen["offline_u1"] || !seen["accuracy_u1"] {
		t.Errorf("unexpected alert ids: %v", seen)
	}
}

func TestOnlineTransitionClearsOwnAlertsOnly(t *testing.T) {
	e := NewEngine()
	e.Evaluate([]feed.Entity{
		entity("u1", feed.StatusOffline, 900),
		entity("u2", feed.StatusOffline, 100),
	})
	if e.Count() != 3 {
		t.Fatalf("setup alerts = %d, want 3", e.Count())
	}

	e.Evaluate([]feed.Entity{
		entity("u1", feed.StatusOnline, 20),
		entity("u2", feed.StatusOffline, 100),
	})

	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("active alerts = %d, want only u2's offline alert", len(active))
	}
	if active[0].ID != "offline_u2" {
		t.Errorf("remaining alert = %s, want offline_u2", active[0].ID)
	}
}

func TestLowAccuracyThresholdBoundary(t *testing.T) {
	e := NewEngine()
	e.Evaluate([]feed.Entity{entity("u1", feed.StatusRecent, 500)})
	if e.Count() != 0 {
		t.Errorf("500m is not above the threshold, got %d alerts", e.Count())
	}
	e.Evaluate([]feed.Entity{entity("u1", feed.StatusRecent, 500.5)})
	if e.Count() != 1 {
		t.Errorf("expected a low-accuracy alert above 500m, got %d", e.Count())
	}
}

func TestAlertsDoNotExpireByTime(t *testing.T) {
	e := NewEngine()
	base := time.Unix(0, 0)
	e.now = func() time.Time { return base }
	e.Evaluate([]feed.Entity{entity("u1", feed.StatusOffline, 0)})

	// Much later, the entity is still absent from further snapshots.
	e.now = func() time.Time { return base.Add(24 * time.Hour) }
	e.Evaluate([]feed.Entity{entity("u2", feed.StatusRecent, 10)})

	if e.Count() != 1 {
		t.Errorf("offline alert must persist until an online transition, got %d", e.Count())
	}
}

func TestActiveSortedOldestFirst(t *testing.T) {
	e := NewEngine()
	base := time.Unix(100, 0)
	calls := 0
	e.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	e.Evaluate([]feed.Entity{
		entity("b", feed.StatusOffline, 0),
		entity("a", feed.StatusOffline, 0),
	})

	active := e.Active()
	if len(active) != 2 {
		t.Fatalf("active = %d", len(active))
	}
	if active[0].EntityID != "b" {
		t.Errorf("oldest alert first, got %s", active[0].EntityID)
	}
}
