package geoloc

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// NMEAProvider reads GGA sentences from a stream (typically a serial GPS
// receiver) and serves fixes from the latest sentence seen.
type NMEAProvider struct {
	mu      sync.Mutex
	latest  Sample
	haveFix bool
	closed  bool
	subs    map[int]*nmeaSub
	nextSub int

	stream io.ReadCloser
	done   chan struct{}
}

type nmeaSub struct {
	onSample func(Sample)
	opts     Options
	last     time.Time
}

// OpenNMEA opens a serial GPS receiver at path and starts reading it.
func OpenNMEA(path string, baud int) (*NMEAProvider, error) {
	if baud <= 0 {
		baud = 9600
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return NewNMEAProvider(port), nil
}

// NewNMEAProvider starts consuming NMEA sentences from stream. The stream
// is owned by the provider and closed on Close.
func NewNMEAProvider(stream io.ReadCloser) *NMEAProvider {
	p := &NMEAProvider{
		stream: stream,
		subs:   make(map[int]*nmeaSub),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *NMEAProvider) run() {
	defer close(p.done)
	scan := bufio.NewScanner(p.stream)
	for scan.Scan() {
		line := scan.Text()
		if !strings.Contains(line, "GGA") {
			continue
		}
		sample, ok, err := ParseGGA(line)
		if err != nil {
			log.Printf("[NMEAProvider] skipping sentence: %v", err)
			continue
		}
		if !ok {
			continue
		}
		p.deliver(sample)
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *NMEAProvider) deliver(s Sample) {
	p.mu.Lock()
	p.latest = s
	p.haveFix = true
	var fns []func(Sample)
	for _, sub := range p.subs {
		// Respect the per-reading cadence implied by MaxAge so a chatty
		// receiver does not flood subscribers.
		if sub.opts.MaxAge > 0 && s.CapturedAt.Sub(sub.last) < sub.opts.MaxAge/2 {
			continue
		}
		sub.last = s.CapturedAt
		fns = append(fns, sub.onSample)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// Current waits for a fix no older than opts.MaxAge, up to opts.Timeout.
func (p *NMEAProvider) Current(ctx context.Context, opts Options) (Sample, error) {
	start := time.Now()
	deadline := start.Add(opts.Timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		if p.haveFix {
			age := time.Since(p.latest.CapturedAt)
			fresh := opts.MaxAge > 0 && age <= opts.MaxAge
			if fresh || p.latest.CapturedAt.After(start) {
				s := p.latest
				p.mu.Unlock()
				return s, nil
			}
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return Sample{}, &Error{Kind: KindUnavailable, Msg: "receiver stream closed"}
		}
		select {
		case <-ctx.Done():
			return Sample{}, &Error{Kind: KindTimeout, Msg: ctx.Err().Error()}
		case <-ticker.C:
		}
		if opts.Timeout > 0 && time.Now().After(deadline) {
			return Sample{}, &Error{Kind: KindTimeout, Msg: "no fix before deadline"}
		}
	}
}

// Watch registers for every fresh fix until cancelled.
func (p *NMEAProvider) Watch(ctx context.Context, opts Options, onSample func(Sample), onError func(error)) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &Error{Kind: KindUnavailable, Msg: "receiver stream closed"}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = &nmeaSub{onSample: onSample, opts: opts}
	p.mu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-wctx.Done():
		case <-p.done:
			onError(&Error{Kind: KindUnavailable, Msg: "receiver stream closed"})
		}
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}()
	return &watchHandle{cancel: cancel}, nil
}

// Close stops reading and releases the stream.
func (p *NMEAProvider) Close() error {
	err := p.stream.Close()
	<-p.done
	return err
}
