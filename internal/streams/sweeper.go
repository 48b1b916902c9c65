package streams

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/events"
)

// PruneResult is the outcome of one retention pass over a directory.
type PruneResult struct {
	Removed []string
	Kept    int
	Failed  []error
}

// PruneDir deletes the oldest segment files in dir so that at most limit
// remain. A limit below 1 is treated as 1: the newest segment may still be
// written by the transcoder and is never removed. The playlist and any other
// files are left alone. Per-file failures are collected in the result.
func PruneDir(dir string, limit int) (PruneResult, error) {
	var result PruneResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, fmt.Errorf("read output directory: %w", err)
	}

	var segments []string
	for _, e := range entries {
		if e.Type().IsRegular() && isSegment(e.Name()) {
			segments = append(segments, e.Name())
		}
	}

	// Shorter names first keeps numeric order once the counter outgrows its padding
	slices.SortFunc(segments, func(a, b string) int {
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	limit = max(limit, 1)
	if len(segments) <= limit {
		result.Kept = len(segments)
		return result, nil
	}

	excess := segments[:len(segments)-limit]
	result.Kept = limit
	for _, name := range excess {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result.Failed = append(result.Failed, err)
			continue
		}
		result.Removed = append(result.Removed, name)
	}
	return result, nil
}

// SweepTarget is one directory the sweeper keeps bounded.
type SweepTarget struct {
	CameraID string
	Dir      string
	Limit    int
}

// SweepSummary totals one sweep over all targets.
type SweepSummary struct {
	Directories int `json:"directories" example:"3" doc:"Output directories inspected"`
	Removed     int `json:"removed" example:"12" doc:"Segments deleted"`
	Failed      int `json:"failed" example:"0" doc:"Segments that could not be deleted"`
}

// Sweeper periodically prunes the output directories of active jobs.
type Sweeper struct {
	targets func() []SweepTarget
	events  EventPublisher
	metrics MetricsRecorder
	logger  *slog.Logger

	interval time.Duration
	resetCh  chan time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newSweeper(targets func() []SweepTarget, interval time.Duration, publisher EventPublisher, recorder MetricsRecorder, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSettings().SweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		targets:  targets,
		events:   publisher,
		metrics:  recorder,
		logger:   logger,
		interval: interval,
		resetCh:  make(chan time.Duration, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) start() {
	go s.run()
}

// SetInterval changes the period and restarts the ticker.
func (s *Sweeper) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	// Keep only the latest request
	select {
	case <-s.resetCh:
	default:
	}
	select {
	case s.resetCh <- d:
	default:
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case d := <-s.resetCh:
			s.logger.Info("Segment sweep interval changed", "interval", d)
			ticker.Reset(d)
		case <-ticker.C:
			s.SweepNow(s.ctx)
		}
	}
}

// SweepNow runs one pass over the current targets.
func (s *Sweeper) SweepNow(ctx context.Context) SweepSummary {
	var summary SweepSummary
	for _, target := range s.targets() {
		if ctx.Err() != nil {
			break
		}
		summary.Directories++

		result, err := PruneDir(target.Dir, target.Limit)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("Segment sweep failed", "camera_id", target.CameraID, "dir", target.Dir, "error", err)
			}
			continue
		}
		for _, ferr := range result.Failed {
			s.logger.Warn("Failed to delete segment", "camera_id", target.CameraID, "error", ferr)
		}

		removed, failed := len(result.Removed), len(result.Failed)
		summary.Removed += removed
		summary.Failed += failed
		if removed == 0 && failed == 0 {
			continue
		}

		s.logger.Debug("Pruned segments", "camera_id", target.CameraID, "removed", removed, "kept", result.Kept)
		if s.metrics != nil {
			s.metrics.SegmentsPruned(target.CameraID, removed, failed)
		}
		if s.events != nil {
			s.events.Publish(events.SegmentsPrunedEvent{
				CameraID:  target.CameraID,
				Removed:   removed,
				Failed:    failed,
				Kept:      result.Kept,
				Timestamp: events.Now(),
			})
		}
	}
	return summary
}
