// Package metrics records synthesis latency and usage instruments.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Recorder holds the synthesis instruments. A nil Recorder is valid and
// records nothing, so components can run unmetered in tests.
type Recorder struct {
	ttfb  metric.Float64Histogram
	chars metric.Int64Counter
	turns metric.Int64Counter

	mu        sync.Mutex
	ttfbStart time.Time
}

// New creates a Recorder on the global meter provider.
func New() (*Recorder, error) {
	meter := otel.GetMeterProvider().Meter("murfstream")

	ttfb, err := meter.Float64Histogram("tts.ttfb",
		metric.WithDescription("Time from synthesis request to first audio byte"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	chars, err := meter.Int64Counter("tts.characters",
		metric.WithDescription("Characters submitted for synthesis"),
	)
	if err != nil {
		return nil, err
	}
	turns, err := meter.Int64Counter("tts.turns",
		metric.WithDescription("Synthesis turns started"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{ttfb: ttfb, chars: chars, turns: turns}, nil
}

// StartTTFB starts the time-to-first-byte timer for a new turn.
func (r *Recorder) StartTTFB() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.ttfbStart = time.Now()
	r.mu.Unlock()
}

// StopTTFB records the time-to-first-byte measurement if the timer is
// running. Subsequent calls for the same turn are no-ops.
func (r *Recorder) StopTTFB(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	start := r.ttfbStart
	r.ttfbStart = time.Time{}
	r.mu.Unlock()

	if start.IsZero() {
		return
	}
	r.ttfb.Record(ctx, float64(time.Since(start))/float64(time.Millisecond))
}

// CancelTimers discards any running timers without recording.
func (r *Recorder) CancelTimers() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.ttfbStart = time.Time{}
	r.mu.Unlock()
}

// AddCharacters counts text submitted for synthesis.
func (r *Recorder) AddCharacters(ctx context.Context, n int) {
	if r == nil {
		return
	}
	r.chars.Add(ctx, int64(n))
}

// AddTurn counts one started synthesis turn.
func (r *Recorder) AddTurn(ctx context.Context) {
	if r == nil {
		return
	}
	r.turns.Add(ctx, 1)
}
