package feed

import (
	"context"
	"log"
	"time"
)

// SnapshotFunc consumes one feed snapshot. Invocations are serialized by
// the polling cadence and never overlap.
type SnapshotFunc func([]Entity)

// Source is anything that can produce an entity snapshot.
type Source interface {
	Entities(ctx context.Context) ([]Entity, error)
}

// Poller drives snapshot consumers at a fixed cadence.
type Poller struct {
	source   Source
	interval time.Duration
	onSnap   SnapshotFunc
	onError  func(error)
}

func NewPoller(source Source, interval time.Duration, onSnap SnapshotFunc, onError func(error)) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if onError == nil {
		onError = func(err error) { log.Printf("[Poller] %v", err) }
	}
	return &Poller{source: source, interval: interval, onSnap: onSnap, onError: onError}
}

// Run polls immediately and then on every tick until ctx is done. Fetch
// failures are reported and the loop keeps going.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	entities, err := p.source.Entities(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.onError(err)
		}
		return
	}
	p.onSnap(entities)
}
