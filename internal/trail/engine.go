// Package trail maintains bounded per-entity position histories and asks a
// renderer to redraw a polyline whenever an entity's latest point changes.
package trail

import (
	"sync"
	"time"

	"fieldtrack/internal/feed"
)

// capacity bounds each trail; the oldest point is evicted first.
const capacity = 20

// Point is one retained trail position.
type Point struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

// Renderer draws an entity's polyline, replacing any previous rendering
// for that entity. It is only ever called with two or more points.
type Renderer interface {
	Draw(entityID string, points []Point)
}

// Engine consumes feed snapshots and keeps trails current.
type Engine struct {
	mu       sync.Mutex
	trails   map[string][]Point
	renderer Renderer
	now      func() time.Time
}

func NewEngine(r Renderer) *Engine {
	return &Engine{
		trails:   make(map[string][]Point),
		renderer: r,
		now:      time.Now,
	}
}

// Update appends each entity's current position to its trail when it
// differs from the last retained point, and requests a redraw over the
// full retained history. Entities without coordinates are skipped.
func (e *Engine) Update(entities []feed.Entity) {
	type redraw struct {
		id     string
		points []Point
	}
	var redraws []redraw

	e.mu.Lock()
	for _, ent := range entities {
		if ent.Lat == nil || ent.Lng == nil {
			continue
		}
		pts := e.trails[ent.ID]
		if n := len(pts); n > 0 && pts[n-1].Lat == *ent.Lat && pts[n-1].Lng == *ent.Lng {
			continue
		}
		pts = append(pts, Point{Lat: *ent.Lat, Lng: *ent.Lng, At: e.now()})
		if len(pts) > capacity {
			pts = pts[len(pts)-capacity:]
		}
		e.trails[ent.ID] = pts
		if len(pts) >= 2 {
			cp := make([]Point, len(pts))
			copy(cp, pts)
			redraws = append(redraws, redraw{id: ent.ID, points: cp})
		}
	}
	e.mu.Unlock()

	if e.renderer == nil {
		return
	}
	for _, r := range redraws {
		e.renderer.Draw(r.id, r.points)
	}
}

// Trail returns a copy of an entity's retained trail.
func (e *Engine) Trail(entityID string) []Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	pts := e.trails[entityID]
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return cp
}
