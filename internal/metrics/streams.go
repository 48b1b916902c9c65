// Package metrics provides Prometheus metrics for supervised camera streams.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/camnode/internal/ffmpeg"
)

const namespace = "camnode"

// Exit reasons used as the reason label of the exits counter.
const (
	ExitStopped  = "stopped"
	ExitEnded    = "ended"
	ExitSignaled = "signaled"
)

var (
	streamFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames",
		Help:      "Frames encoded by the current transcoder run",
	}, []string{"camera_id"})

	streamFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "fps",
		Help:      "Current transcoder encode rate",
	}, []string{"camera_id"})

	streamBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "bitrate_kbps",
		Help:      "Current transcoder output bitrate in kbit/s",
	}, []string{"camera_id"})

	streamSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "speed",
		Help:      "Transcoder speed relative to realtime",
	}, []string{"camera_id"})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "streams",
		Name:      "active",
		Help:      "Number of running transcoder processes",
	})

	streamStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "starts_total",
		Help:      "Transcoder processes spawned",
	}, []string{"camera_id"})

	streamExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "exits_total",
		Help:      "Transcoder runs that ended, by reason",
	}, []string{"camera_id", "reason"})

	segmentsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segments",
		Name:      "pruned_total",
		Help:      "HLS segments deleted by the retention sweeper",
	}, []string{"camera_id"})

	segmentPruneErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segments",
		Name:      "prune_errors_total",
		Help:      "HLS segments the retention sweeper failed to delete",
	}, []string{"camera_id"})

	// Local cache for SSE exporter access.
	streamCache   = make(map[string]*StreamValues)
	streamCacheMu sync.RWMutex
)

// StreamValues holds the current metric values of one running stream.
type StreamValues struct {
	Frames      int64
	FPS         float64
	BitrateKbps float64
	Speed       float64
	StartedAt   time.Time
}

// Recorder records supervisor activity into the package metrics.
// The zero value is ready to use.
type Recorder struct{}

// NewRecorder returns a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// StreamStarted counts a spawn and resets the per-camera values.
func (*Recorder) StreamStarted(cameraID string) {
	streamStarts.WithLabelValues(cameraID).Inc()

	streamCacheMu.Lock()
	streamCache[cameraID] = &StreamValues{StartedAt: time.Now()}
	streamCacheMu.Unlock()
}

// StreamExited counts an exit and drops the per-camera gauges.
func (*Recorder) StreamExited(cameraID, reason string) {
	streamExits.WithLabelValues(cameraID, reason).Inc()
	DeleteStreamMetrics(cameraID)
}

// SetActiveStreams sets the running process gauge.
func (*Recorder) SetActiveStreams(n int) {
	activeStreams.Set(float64(n))
}

// RecordProgress applies the fields present in a diagnostic line.
func (*Recorder) RecordProgress(cameraID string, d ffmpeg.Diagnostic) {
	if d.HasFrame {
		streamFrames.WithLabelValues(cameraID).Set(float64(d.Frame))
		streamFPS.WithLabelValues(cameraID).Set(d.FPS)
	}
	if d.HasBitrate {
		streamBitrate.WithLabelValues(cameraID).Set(d.BitrateKbps)
	}
	if d.Speed > 0 {
		streamSpeed.WithLabelValues(cameraID).Set(d.Speed)
	}

	updateCache(cameraID, func(v *StreamValues) {
		if d.HasFrame {
			v.Frames = d.Frame
			v.FPS = d.FPS
		}
		if d.HasBitrate {
			v.BitrateKbps = d.BitrateKbps
		}
		if d.Speed > 0 {
			v.Speed = d.Speed
		}
	})
}

// SegmentsPruned counts one sweep result for a camera.
func (*Recorder) SegmentsPruned(cameraID string, removed, failed int) {
	if removed > 0 {
		segmentsPruned.WithLabelValues(cameraID).Add(float64(removed))
	}
	if failed > 0 {
		segmentPruneErrors.WithLabelValues(cameraID).Add(float64(failed))
	}
}

// DeleteStreamMetrics removes the gauges and cached values of a camera.
func DeleteStreamMetrics(cameraID string) {
	streamFrames.DeleteLabelValues(cameraID)
	streamFPS.DeleteLabelValues(cameraID)
	streamBitrate.DeleteLabelValues(cameraID)
	streamSpeed.DeleteLabelValues(cameraID)

	streamCacheMu.Lock()
	delete(streamCache, cameraID)
	streamCacheMu.Unlock()
}

// GetStreamValues returns a copy of the current values of a camera, or nil.
func GetStreamValues(cameraID string) *StreamValues {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	if v, ok := streamCache[cameraID]; ok {
		dup := *v
		return &dup
	}
	return nil
}

// GetAllStreamValues returns copies of the values of every running stream.
func GetAllStreamValues() map[string]*StreamValues {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	result := make(map[string]*StreamValues, len(streamCache))
	for id, v := range streamCache {
		dup := *v
		result[id] = &dup
	}
	return result
}

func updateCache(cameraID string, update func(*StreamValues)) {
	streamCacheMu.Lock()
	defer streamCacheMu.Unlock()
	v, ok := streamCache[cameraID]
	if !ok {
		v = &StreamValues{StartedAt: time.Now()}
		streamCache[cameraID] = v
	}
	update(v)
}
