// Package metrics records auction and transport counters. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Common metric attribute keys.
const (
	AttrCommand = "command"
	AttrOutcome = "outcome"
	AttrStatus  = "status"
	AttrChannel = "channel"
	AttrMethod  = "method"
	AttrRoute   = "route"
)

// Snapshot is a copy of the in-memory totals, used by tests and /healthz.
type Snapshot struct {
	Commands     int
	Rejected     int
	Bids         int
	Resolutions  int
	Connections  int
	Dropped      int
	HTTPRequests int
}

type Recorder struct {
	mu    sync.Mutex
	stats Snapshot
	otel  *instruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *instruments) *Recorder {
	return &Recorder{otel: otel}
}

// RecordCommand counts one applied command. outcome is "ok" or an error class.
func (r *Recorder) RecordCommand(command, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Commands++
	if outcome != "ok" {
		r.stats.Rejected++
	}
	r.mu.Unlock()
	if r.otel != nil {
		attrs := []attribute.KeyValue{attribute.String(AttrCommand, command), attribute.String(AttrOutcome, outcome)}
		r.otel.add(r.otel.commands, attrs...)
		r.otel.record(r.otel.commandLatencyMs, d, attrs...)
	}
}

func (r *Recorder) RecordBid() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Bids++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.add(r.otel.bids)
	}
}

// RecordResolution counts an item closing as SOLD or UNSOLD.
func (r *Recorder) RecordResolution(status string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Resolutions++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.add(r.otel.resolutions, attribute.String(AttrStatus, status))
	}
}

// ConnectionOpened and ConnectionClosed track live sockets per channel
// ("events" or "feed").
func (r *Recorder) ConnectionOpened(channel string) { r.connection(channel, 1) }

func (r *Recorder) ConnectionClosed(channel string) { r.connection(channel, -1) }

func (r *Recorder) connection(channel string, delta int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Connections += delta
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.connections.Add(r.otel.ctx, int64(delta), metric.WithAttributes(attribute.String(AttrChannel, channel)))
	}
}

func (r *Recorder) RecordDropped(channel string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.Dropped++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.add(r.otel.dropped, attribute.String(AttrChannel, channel))
	}
}

func (r *Recorder) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.HTTPRequests++
	r.mu.Unlock()
	if r.otel == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.Int(AttrStatus, status),
	}
	r.otel.add(r.otel.requests, attrs...)
	r.otel.record(r.otel.requestLatencyMs, d, attrs...)
}

func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
