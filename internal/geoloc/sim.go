package geoloc

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimProvider emits positions from a random walk around a starting point.
// It stands in for a real receiver during development and demos.
type SimProvider struct {
	mu        sync.Mutex
	lat, lng  float64
	accuracyM float64
	rng       *rand.Rand

	// Interval between watch emissions.
	Interval time.Duration
	// ErrorRate is the probability a watch emission becomes a timeout
	// error instead of a sample, mimicking missed fixes.
	ErrorRate float64
}

func NewSimProvider(lat, lng float64) *SimProvider {
	return &SimProvider{
		lat:       lat,
		lng:       lng,
		accuracyM: 600, // cold receiver; refines as fixes are requested
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		Interval:  2 * time.Second,
	}
}

// Current returns the next simulated fix. High-accuracy requests warm the
// receiver toward a few meters; network requests stay coarse.
func (p *SimProvider) Current(_ context.Context, opts Options) (Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextLocked(opts.HighAccuracy), nil
}

// Watch emits a fix every Interval until cancelled.
func (p *SimProvider) Watch(ctx context.Context, opts Options, onSample func(Sample), onError func(error)) (Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	sub := &watchHandle{cancel: cancel}
	go func() {
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
				p.mu.Lock()
				miss := p.ErrorRate > 0 && p.rng.Float64() < p.ErrorRate
				var s Sample
				if !miss {
					s = p.nextLocked(opts.HighAccuracy)
				}
				p.mu.Unlock()
				if miss {
					onError(&Error{Kind: KindTimeout, Msg: "no fix within reading window"})
					continue
				}
				onSample(s)
			}
		}
	}()
	return sub, nil
}

func (p *SimProvider) nextLocked(highAccuracy bool) Sample {
	// Pedestrian-scale movement, same deg-per-meter conversion as a
	// flat-earth approximation at the current latitude.
	speed := 0.8 + p.rng.Float64()*1.2 // m/s
	heading := p.rng.Float64() * 2 * math.Pi
	p.lat += (speed * math.Cos(heading)) / 111000
	p.lng += (speed * math.Sin(heading)) / (111000 * math.Cos(p.lat*math.Pi/180))

	if highAccuracy {
		// Each high-accuracy request refines toward a GPS-quality fix.
		p.accuracyM *= 0.35
		if p.accuracyM < 5 {
			p.accuracyM = 5 + p.rng.Float64()*8
		}
	} else {
		p.accuracyM = 150 + p.rng.Float64()*650
	}

	return Sample{
		Lat:        p.lat,
		Lng:        p.lng,
		AccuracyM:  p.accuracyM,
		CapturedAt: time.Now().UTC(),
	}
}

// watchHandle cancels a watch goroutine. Safe to cancel repeatedly.
type watchHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (h *watchHandle) Cancel() {
	h.once.Do(h.cancel)
}
