// Package feed consumes the collector's dashboard feed: point-in-time
// status snapshots for every tracked entity. The feed is read-only input;
// nothing here writes back to the collector.
package feed

import (
	"time"
)

// Status is an entity's freshness class, assigned by the feed.
type Status string

const (
	StatusOnline  Status = "online"
	StatusRecent  Status = "recent"
	StatusStale   Status = "stale"
	StatusOffline Status = "offline"
)

// Entity is one tracked subject's snapshot. Lat/Lng are pointers because
// the feed may list entities that have never produced a fix.
type Entity struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Status     Status    `json:"status"`
	AccuracyM  float64   `json:"accuracy"`
	Lat        *float64  `json:"lat"`
	Lng        *float64  `json:"lng"`
	LastUpdate time.Time `json:"last_update"`
}

// Summary aggregates one snapshot for the analytics surface.
type Summary struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"by_status"`
	MeanAccuracyM float64        `json:"mean_accuracy_m"`
	RefreshedAt   time.Time      `json:"refreshed_at"`
}

// Summarize computes snapshot analytics: counts per status tier and the
// mean accuracy over entities that have one.
func Summarize(entities []Entity, now time.Time) Summary {
	s := Summary{
		Total:       len(entities),
		ByStatus:    make(map[Status]int),
		RefreshedAt: now,
	}
	var accSum float64
	var accCount int
	for _, e := range entities {
		s.ByStatus[e.Status]++
		if e.AccuracyM > 0 {
			accSum += e.AccuracyM
			accCount++
		}
	}
	if accCount > 0 {
		s.MeanAccuracyM = accSum / float64(accCount)
	}
	return s
}
