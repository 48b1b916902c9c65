// Package streams supervises one transcoder subprocess per camera.
package streams

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/process"
)

// CameraStatusUpdater mirrors stream state onto camera records.
type CameraStatusUpdater interface {
	UpdateStatus(cameraID string, status cameras.Status) error
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// MetricsRecorder receives per-stream measurements.
type MetricsRecorder interface {
	StreamStarted(cameraID string)
	StreamExited(cameraID, reason string)
	SetActiveStreams(n int)
	RecordProgress(cameraID string, d ffmpeg.Diagnostic)
	SegmentsPruned(cameraID string, removed, failed int)
}

// SupervisorOptions contains options for creating a Supervisor.
type SupervisorOptions struct {
	Settings Settings            // unset fields take DefaultSettings values
	Cameras  CameraStatusUpdater // optional
	Events   EventPublisher      // optional
	Metrics  MetricsRecorder     // optional
	Parser   ffmpeg.LineParser   // defaults to ffmpeg.ProgressParser
	Logger   *slog.Logger        // optional
}

// job is one running transcoder. Identity fields are immutable after launch.
type job struct {
	cameraID  string
	runID     string
	sourceURL string
	overrides *ffmpeg.Overrides
	config    *ffmpeg.Config
	proc      *process.Process
	pid       int
	startedAt time.Time
	logger    *slog.Logger

	mu             sync.Mutex
	lastActivityAt time.Time
	lastError      string
	frames         int64
	fps            float64
	bitrateKbps    float64
	speed          float64
}

func (j *job) status() *StreamStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &StreamStatus{
		CameraID:       j.cameraID,
		RunID:          j.runID,
		SourceURL:      ffmpeg.RedactURL(j.sourceURL),
		Running:        true,
		State:          process.StateRunning,
		PID:            j.pid,
		StartedAt:      j.startedAt,
		UptimeSeconds:  time.Since(j.startedAt).Seconds(),
		LastActivityAt: j.lastActivityAt,
		LastError:      j.lastError,
		OutputDir:      j.config.OutputDir,
		PlaylistURL:    PlaylistURL(j.cameraID),
	}
}

func (j *job) metrics() *StreamMetrics {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &StreamMetrics{
		CameraID:       j.cameraID,
		UptimeSeconds:  time.Since(j.startedAt).Seconds(),
		Frames:         j.frames,
		FPS:            j.fps,
		BitrateKbps:    j.bitrateKbps,
		Speed:          j.speed,
		LastActivityAt: j.lastActivityAt,
	}
}

// jobOutput feeds a job's output lines back to the supervisor.
type jobOutput struct {
	s *Supervisor
	j *job
}

func (o jobOutput) HandleLine(_, line string) {
	o.s.handleLine(o.j, line)
}

// Supervisor owns every running transcoder. Operations on different cameras
// proceed in parallel; the map lock is never held across a spawn or a stop.
type Supervisor struct {
	mu         sync.RWMutex
	jobs       map[string]*job
	pending    map[string]struct{} // slots reserved by an in-flight Start
	tombstones map[string]tombstone
	settings   Settings
	closed     bool
	wg         sync.WaitGroup // exit watchers

	cameras CameraStatusUpdater
	events  EventPublisher
	metrics MetricsRecorder
	parser  ffmpeg.LineParser
	logger  *slog.Logger
	sweeper *Sweeper
}

// NewSupervisor creates a supervisor and starts its segment sweeper.
func NewSupervisor(opts *SupervisorOptions) *Supervisor {
	settings := opts.Settings.withDefaults()
	parser := opts.Parser
	if parser == nil {
		parser = ffmpeg.ProgressParser{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("streams")
	}
	if err := settings.Validate(); err != nil {
		logger.Warn("Stream settings out of range", "error", err)
	}

	s := &Supervisor{
		jobs:       make(map[string]*job),
		pending:    make(map[string]struct{}),
		tombstones: make(map[string]tombstone),
		settings:   settings.clone(),
		cameras:    opts.Cameras,
		events:     opts.Events,
		metrics:    opts.Metrics,
		parser:     parser,
		logger:     logger,
	}
	s.sweeper = newSweeper(s.sweepTargets, settings.SweepInterval, opts.Events, opts.Metrics, logger)
	s.sweeper.start()
	return s
}

// Start builds the transcode job for a camera and spawns it. It fails with
// ErrValidation, ErrAlreadyRunning, ErrCapacity or ErrSpawnFailed and leaves
// no process behind on any failure.
func (s *Supervisor) Start(ctx context.Context, cameraID, sourceURL string, overrides *ffmpeg.Overrides) (*StreamStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := s.Settings()
	cfg, err := ffmpeg.Build(cameraID, sourceURL, overrides, settings.Transcode)
	if err != nil {
		return nil, NewStreamError(ErrCodeValidation, "invalid stream request", err)
	}
	return s.launch(cameraID, sourceURL, overrides, cfg, settings.StopGrace)
}

// launch reserves the slot, spawns the process and publishes the job.
func (s *Supervisor) launch(cameraID, sourceURL string, overrides *ffmpeg.Overrides, cfg *ffmpeg.Config, grace time.Duration) (*StreamStatus, error) {
	if err := s.reserve(cameraID); err != nil {
		return nil, err
	}

	j := &job{
		cameraID:  cameraID,
		runID:     uuid.NewString(),
		sourceURL: sourceURL,
		overrides: overrides,
		config:    cfg,
	}
	j.logger = s.logger.With("camera_id", cameraID, "run_id", j.runID)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		s.release(cameraID)
		return nil, NewStreamError(ErrCodeSpawnFailed, "failed to create output directory", err)
	}

	proc := process.NewProcess(cameraID, cfg.Path, cfg.Args, j.logger)
	proc.SetTimeouts(grace, grace)
	proc.SetLogParser(logging.GetLogger("ffmpeg").With("camera_id", cameraID, "run_id", j.runID), ffmpeg.ParseLogLevel)
	proc.SetOutputHandler(jobOutput{s: s, j: j})
	j.proc = proc

	j.logger.Debug("Starting transcoder", "command", cfg.CommandLine())
	if err := proc.Start(); err != nil {
		s.release(cameraID)
		return nil, NewStreamError(ErrCodeSpawnFailed, "failed to start transcoder", err)
	}
	j.startedAt = time.Now()
	j.pid = proc.PID()

	s.mu.Lock()
	delete(s.pending, cameraID)
	if s.closed {
		s.mu.Unlock()
		proc.Stop()
		return nil, NewStreamError(ErrCodeShuttingDown, "supervisor is shutting down", nil)
	}
	s.jobs[cameraID] = j
	delete(s.tombstones, cameraID)
	active := len(s.jobs)
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.StreamStarted(cameraID)
		s.metrics.SetActiveStreams(active)
	}
	s.setCameraStatus(cameraID, cameras.StatusStreaming)
	s.publish(events.StreamStartedEvent{
		CameraID:  cameraID,
		RunID:     j.runID,
		PID:       j.pid,
		SourceURL: ffmpeg.RedactURL(sourceURL),
		OutputDir: cfg.OutputDir,
		Timestamp: events.Now(),
	})
	j.logger.Info("Stream started", "pid", j.pid, "output_dir", cfg.OutputDir)

	// Exit handling starts only after the start side effects so they are never
	// observed after the matching exit.
	go s.watchExit(j)

	return j.status(), nil
}

// reserve claims the slot for cameraID, checking uniqueness and the ceiling
// in one step.
func (s *Supervisor) reserve(cameraID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStreamError(ErrCodeShuttingDown, "supervisor is shutting down", nil)
	}
	if _, ok := s.jobs[cameraID]; ok {
		return NewStreamError(ErrCodeAlreadyRunning, "stream already running for "+cameraID, nil)
	}
	if _, ok := s.pending[cameraID]; ok {
		return NewStreamError(ErrCodeAlreadyRunning, "stream already starting for "+cameraID, nil)
	}
	if len(s.jobs)+len(s.pending) >= s.settings.MaxConcurrent {
		return NewStreamError(ErrCodeCapacity, "maximum concurrent streams reached", nil)
	}
	s.pending[cameraID] = struct{}{}
	return nil
}

func (s *Supervisor) release(cameraID string) {
	s.mu.Lock()
	delete(s.pending, cameraID)
	s.mu.Unlock()
}

func (s *Supervisor) watchExit(j *job) {
	defer s.wg.Done()
	<-j.proc.Done()
	s.handleExit(j)
}

// handleExit is the single transition for a process that has terminated.
// A job no longer in the map was stopped on request and only gets logged.
func (s *Supervisor) handleExit(j *job) {
	exit := j.proc.ExitStatus()

	s.mu.Lock()
	if s.jobs[j.cameraID] != j {
		s.mu.Unlock()
		j.logger.Debug("Stopped transcoder reaped", "exit", exit.String())
		return
	}
	delete(s.jobs, j.cameraID)
	endedAt := time.Now()
	s.tombstones[j.cameraID] = tombstone{
		runID:     j.runID,
		sourceURL: j.sourceURL,
		outputDir: j.config.OutputDir,
		startedAt: j.startedAt,
		endedAt:   endedAt,
		exit:      exit,
	}
	active := len(s.jobs)
	s.mu.Unlock()

	uptime := endedAt.Sub(j.startedAt)
	if exit.Success() {
		j.logger.Info("Transcoder exited", "uptime", uptime)
	} else {
		j.logger.Error("Transcoder exited abnormally", "exit_code", exit.Code, "signal", exit.Signal, "uptime", uptime)
	}

	if s.metrics != nil {
		reason := metrics.ExitEnded
		if exit.Signal != "" {
			reason = metrics.ExitSignaled
		}
		s.metrics.StreamExited(j.cameraID, reason)
		s.metrics.SetActiveStreams(active)
	}
	s.setCameraStatus(j.cameraID, cameras.StatusOffline)
	s.publish(events.StreamEndedEvent{
		CameraID:      j.cameraID,
		RunID:         j.runID,
		ExitCode:      exit.Code,
		Signal:        exit.Signal,
		Reason:        exit.String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     events.Now(),
	})
}

// handleLine applies one parsed output line to the job's live state.
// Error lines are recorded but never end the job.
func (s *Supervisor) handleLine(j *job, line string) {
	d, ok := s.parser.ParseLine(line)
	if !ok {
		return
	}

	now := time.Now()
	j.mu.Lock()
	if d.Error != "" {
		j.lastError = d.Error
	}
	if d.HasFrame {
		j.frames = d.Frame
		j.fps = d.FPS
		j.lastActivityAt = now
	}
	if d.HasBitrate {
		j.bitrateKbps = d.BitrateKbps
		j.lastActivityAt = now
	}
	if d.Speed > 0 {
		j.speed = d.Speed
	}
	j.mu.Unlock()

	if d.Error != "" {
		return
	}

	// Lines still draining from a stopped run must not resurrect its gauges
	s.mu.RLock()
	current := s.jobs[j.cameraID] == j
	s.mu.RUnlock()
	if !current {
		return
	}

	if s.metrics != nil {
		s.metrics.RecordProgress(j.cameraID, d)
	}
	ts := events.Now()
	if d.HasFrame {
		s.publish(events.StreamFrameUpdateEvent{CameraID: j.cameraID, Frames: d.Frame, FPS: d.FPS, Timestamp: ts})
	}
	if d.HasBitrate {
		s.publish(events.StreamBitrateUpdateEvent{CameraID: j.cameraID, BitrateKbps: d.BitrateKbps, Speed: d.Speed, Timestamp: ts})
	}
}

// Stop removes the camera's job and terminates its process, escalating to
// SIGKILL after the stop grace window. Stopping an absent camera is a no-op.
// If ctx ends first the process is still stopped in the background.
func (s *Supervisor) Stop(ctx context.Context, cameraID string) error {
	s.mu.Lock()
	delete(s.tombstones, cameraID)
	j, ok := s.jobs[cameraID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := s.stopJob(ctx, j)
	return err
}

// stopJob stops j only if it is still the camera's current job, and reports
// whether it was.
func (s *Supervisor) stopJob(ctx context.Context, j *job) (bool, error) {
	s.mu.Lock()
	if s.jobs[j.cameraID] != j {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.jobs, j.cameraID)
	active := len(s.jobs)
	s.mu.Unlock()

	j.logger.Info("Stopping stream")
	s.announceStopped(j, active)

	done := make(chan process.ExitStatus, 1)
	go func() {
		done <- j.proc.Stop()
	}()

	select {
	case exit := <-done:
		j.logger.Debug("Transcoder stopped", "exit", exit.String())
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// announceStopped applies the side effects of a requested stop.
func (s *Supervisor) announceStopped(j *job, active int) {
	if s.metrics != nil {
		s.metrics.StreamExited(j.cameraID, metrics.ExitStopped)
		s.metrics.SetActiveStreams(active)
	}
	s.setCameraStatus(j.cameraID, cameras.StatusOffline)
	s.publish(events.StreamStoppedEvent{
		CameraID:      j.cameraID,
		RunID:         j.runID,
		UptimeSeconds: time.Since(j.startedAt).Seconds(),
		Timestamp:     events.Now(),
	})
}

// Restart stops the camera's job, waits the restart delay and starts a new job
// with the same source and transcode configuration. A Start that lands before
// the stop or during the delay wins and Restart fails with ErrAlreadyRunning.
func (s *Supervisor) Restart(ctx context.Context, cameraID string) (*StreamStatus, error) {
	s.mu.RLock()
	j, ok := s.jobs[cameraID]
	delay := s.settings.RestartDelay
	grace := s.settings.StopGrace
	s.mu.RUnlock()
	if !ok {
		return nil, NewStreamError(ErrCodeNotFound, "no running stream for "+cameraID, nil)
	}

	stopped, err := s.stopJob(ctx, j)
	if err != nil {
		return nil, err
	}
	if !stopped {
		return nil, s.restartLost(cameraID)
	}
	time.Sleep(delay)

	j.logger.Info("Restarting stream")
	return s.launch(cameraID, j.sourceURL, j.overrides, j.config, grace)
}

// restartLost reports why a restart found its job already gone.
func (s *Supervisor) restartLost(cameraID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, running := s.jobs[cameraID]
	_, starting := s.pending[cameraID]
	if running || starting {
		return NewStreamError(ErrCodeAlreadyRunning, "stream was replaced during restart of "+cameraID, nil)
	}
	return NewStreamError(ErrCodeNotFound, "stream exited before restart of "+cameraID, nil)
}

// Status returns the running job of a camera, or the outcome of its last run
// when it exited on its own, or ErrNotFound.
func (s *Supervisor) Status(cameraID string) (*StreamStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[cameraID]; ok {
		return j.status(), nil
	}
	if t, ok := s.tombstones[cameraID]; ok {
		return t.status(cameraID), nil
	}
	return nil, NewStreamError(ErrCodeNotFound, "no stream for "+cameraID, nil)
}

// ListAll returns the status of every running job ordered by camera id.
func (s *Supervisor) ListAll() []StreamStatus {
	s.mu.RLock()
	out := make([]StreamStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j.status())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b StreamStatus) int {
		return strings.Compare(a.CameraID, b.CameraID)
	})
	return out
}

// Metrics returns live measurements of a running job.
func (s *Supervisor) Metrics(cameraID string) (*StreamMetrics, error) {
	s.mu.RLock()
	j, ok := s.jobs[cameraID]
	s.mu.RUnlock()
	if !ok {
		return nil, NewStreamError(ErrCodeNotFound, "no running stream for "+cameraID, nil)
	}

	m := j.metrics()
	m.LastSegmentAt = newestSegmentTime(j.config.OutputDir)
	return m, nil
}

// ActiveCount returns the number of running jobs.
func (s *Supervisor) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Settings returns a copy of the current tunables.
func (s *Supervisor) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.clone()
}

// UpdateSettings validates and applies a partial settings change. Running jobs
// keep their configuration; a lower ceiling only affects new starts.
func (s *Supervisor) UpdateSettings(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	next := patch.Apply(s.settings)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Settings{}, NewStreamError(ErrCodeValidation, "invalid settings", err)
	}
	intervalChanged := next.SweepInterval != s.settings.SweepInterval
	s.settings = next
	s.mu.Unlock()

	if intervalChanged {
		s.sweeper.SetInterval(next.SweepInterval)
	}
	s.logger.Info("Stream settings updated",
		"max_concurrent", next.MaxConcurrent,
		"sweep_interval", next.SweepInterval,
		"stop_grace", next.StopGrace,
		"restart_delay", next.RestartDelay,
		"max_segments", next.Transcode.MaxSegments)
	return next.clone(), nil
}

// SweepNow prunes every active job's output directory once.
func (s *Supervisor) SweepNow(ctx context.Context) SweepSummary {
	return s.sweeper.SweepNow(ctx)
}

func (s *Supervisor) sweepTargets() []SweepTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	targets := make([]SweepTarget, 0, len(s.jobs))
	for id, j := range s.jobs {
		targets = append(targets, SweepTarget{CameraID: id, Dir: j.config.OutputDir, Limit: j.config.MaxSegments})
	}
	return targets
}

// Shutdown stops every job in parallel, then the sweeper, and waits for the
// exit watchers. Individual stop failures are logged. Calling it again is a
// no-op; Start fails with ErrShuttingDown afterwards.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	jobs := make([]*job, 0, len(s.jobs))
	for id, j := range s.jobs {
		jobs = append(jobs, j)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if len(jobs) > 0 {
		s.logger.Info("Stopping all streams", "count", len(jobs))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, j := range jobs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.announceStopped(j, 0)
				if exit := j.proc.Stop(); exit.Err != nil {
					j.logger.Warn("Transcoder did not stop cleanly", "error", exit.Err)
				}
			}()
		}
		wg.Wait()
		s.sweeper.Stop()
		s.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("streams shutdown timed out"), ctx.Err())
	}
}

func (s *Supervisor) setCameraStatus(cameraID string, status cameras.Status) {
	if s.cameras == nil {
		return
	}
	if err := s.cameras.UpdateStatus(cameraID, status); err != nil {
		if errors.Is(err, cameras.ErrNotFound) {
			return
		}
		s.logger.Warn("Failed to update camera status", "camera_id", cameraID, "status", status, "error", err)
	}
}

func (s *Supervisor) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
