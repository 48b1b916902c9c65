package exporters

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/metrics"
)

// refreshEvery forces a snapshot of an unchanged stream every N ticks so a
// stalled transcoder still shows up with its uptime advancing.
const refreshEvery = 10

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter turns the metrics cache into StreamMetricsEvents on the bus.
// A camera is published when its values changed since the last tick, and
// at least every refreshEvery ticks.
type SSEExporter struct {
	bus      EventPublisher
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    map[string]metrics.StreamValues
	skipped map[string]int
}

// NewSSEExporter creates an exporter publishing once per second.
func NewSSEExporter(bus EventPublisher) *SSEExporter {
	return &SSEExporter{
		bus:      bus,
		interval: time.Second,
	}
}

// SetInterval changes the publish period. Must be called before Start.
func (s *SSEExporter) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Start launches the publish loop. Calling Start on a running exporter does
// nothing.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.last = make(map[string]metrics.StreamValues)
	s.skipped = make(map[string]int)
	go s.run(ctx, s.done)
}

// Stop ends the publish loop and waits for it. It is safe to call at any time
// and more than once; a stopped exporter can be started again.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *SSEExporter) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.publish(now)
		}
	}
}

func (s *SSEExporter) publish(now time.Time) {
	current := metrics.GetAllStreamValues()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.last {
		if _, ok := current[id]; !ok {
			delete(s.last, id)
			delete(s.skipped, id)
		}
	}

	for _, id := range ids {
		v := *current[id]
		if prev, seen := s.last[id]; seen && prev == v && s.skipped[id] < refreshEvery-1 {
			s.skipped[id]++
			continue
		}
		s.last[id] = v
		s.skipped[id] = 0

		s.bus.Publish(events.StreamMetricsEvent{
			EventType:     "stream_metrics",
			CameraID:      id,
			Frames:        v.Frames,
			FPS:           v.FPS,
			BitrateKbps:   v.BitrateKbps,
			Speed:         v.Speed,
			UptimeSeconds: now.Sub(v.StartedAt).Seconds(),
		})
	}
}

// EventTypes lists the SSE event names this exporter contributes.
func EventTypes() map[string]any {
	return map[string]any{
		"stream-metrics": events.StreamMetricsEvent{},
	}
}
