package streams

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/ffmpeg"
)

const (
	testSource = "rtsp://cam.local:554/stream1"

	// runForever exits on SIGTERM and otherwise never returns.
	runForever = `trap 'exit 0' TERM
while :; do sleep 0.05; done
`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript writes an executable fake transcoder and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testSettings(t *testing.T, script string) Settings {
	t.Helper()
	s := DefaultSettings()
	s.Transcode.FFmpegPath = script
	s.Transcode.OutputRoot = t.TempDir()
	s.MaxConcurrent = 4
	s.StopGrace = 500 * time.Millisecond
	s.RestartDelay = 10 * time.Millisecond
	return s
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(eventType uint32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type() == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(eventType uint32) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type() == eventType {
			return p.events[i]
		}
	}
	return nil
}

type fakeCameras struct {
	mu       sync.Mutex
	statuses map[string]cameras.Status
	err      error
}

func (f *fakeCameras) UpdateStatus(id string, status cameras.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]cameras.Status)
	}
	f.statuses[id] = status
	return f.err
}

func (f *fakeCameras) get(id string) cameras.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	exits    map[string]int
	progress int
	active   int
}

func (r *fakeRecorder) StreamStarted(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) StreamExited(_, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exits == nil {
		r.exits = make(map[string]int)
	}
	r.exits[reason]++
}

func (r *fakeRecorder) SetActiveStreams(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

func (r *fakeRecorder) RecordProgress(string, ffmpeg.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress++
}

func (r *fakeRecorder) SegmentsPruned(string, int, int) {}

type harness struct {
	sup     *Supervisor
	events  *recordingPublisher
	cameras *fakeCameras
	metrics *fakeRecorder
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		events:  &recordingPublisher{},
		cameras: &fakeCameras{},
		metrics: &fakeRecorder{},
	}
	h.sup = NewSupervisor(&SupervisorOptions{
		Settings: settings,
		Cameras:  h.cameras,
		Events:   h.events,
		Metrics:  h.metrics,
		Logger:   discardLogger(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.sup.Shutdown(ctx)
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartThenStatus(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	before := time.Now()
	started, err := h.sup.Start(ctx, "cam-1", testSource, nil)
	after := time.Now()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.PID == 0 {
		t.Error("expected a pid")
	}

	status, err := h.sup.Status("cam-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running || status.LastError != "" {
		t.Errorf("status = %+v", status)
	}
	if status.StartedAt.Before(before) || status.StartedAt.After(after) {
		t.Errorf("StartedAt %v outside [%v, %v]", status.StartedAt, before, after)
	}
	if status.PlaylistURL != "/streams/cam-1/playlist.m3u8" {
		t.Errorf("PlaylistURL = %q", status.PlaylistURL)
	}
	if _, err := os.Stat(status.OutputDir); err != nil {
		t.Errorf("output directory missing: %v", err)
	}

	if got := h.cameras.get("cam-1"); got != cameras.StatusStreaming {
		t.Errorf("camera status = %q, want streaming", got)
	}
	if h.events.count(events.TypeStreamStarted) != 1 {
		t.Error("expected one StreamStarted event")
	}
	if h.sup.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d", h.sup.ActiveCount())
	}
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	first, err := h.sup.Start(ctx, "cam-1", testSource, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}

	status, _ := h.sup.Status("cam-1")
	if !status.StartedAt.Equal(first.StartedAt) || status.RunID != first.RunID {
		t.Error("running job was replaced")
	}
}

func TestStartValidation(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	tests := []struct {
		name, id, url string
	}{
		{"traversal id", "../etc", testSource},
		{"empty id", "", testSource},
		{"http source", "cam-1", "http://cam.local/stream"},
		{"whitespace in url", "cam-1", "rtsp://cam.local/a b"},
		{"no host", "cam-1", "rtsp:///stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.sup.Start(ctx, tt.id, tt.url, nil)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			var verr *ffmpeg.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected wrapped ValidationError, got %v", err)
			}
		})
	}
	if h.sup.ActiveCount() != 0 {
		t.Error("rejected starts left jobs behind")
	}
}

func TestStartCapacity(t *testing.T) {
	settings := testSettings(t, writeScript(t, runForever))
	settings.MaxConcurrent = 2
	h := newHarness(t, settings)
	ctx := context.Background()

	for _, id := range []string{"cam-1", "cam-2"} {
		if _, err := h.sup.Start(ctx, id, testSource, nil); err != nil {
			t.Fatalf("Start %s: %v", id, err)
		}
	}
	if _, err := h.sup.Start(ctx, "cam-3", testSource, nil); !errors.Is(err, ErrCapacity) {
		t.Fatalf("err = %v, want ErrCapacity", err)
	}
	if n := len(h.sup.ListAll()); n != 2 {
		t.Errorf("ListAll has %d entries, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(settings.Transcode.OutputRoot, "cam-3")); !os.IsNotExist(err) {
		t.Error("rejected start created an output directory")
	}
}

func TestStartSpawnFailure(t *testing.T) {
	settings := testSettings(t, filepath.Join(t.TempDir(), "missing-ffmpeg"))
	h := newHarness(t, settings)

	_, err := h.sup.Start(context.Background(), "cam-1", testSource, nil)
	if !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("err = %v, want ErrSpawnFailed", err)
	}
	if h.sup.ActiveCount() != 0 {
		t.Error("failed spawn registered a job")
	}
	if _, err := h.sup.Status("cam-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status err = %v, want ErrNotFound", err)
	}

	// The reservation is released so the slot is usable again
	h.sup.mu.Lock()
	h.sup.settings.Transcode.FFmpegPath = writeScript(t, runForever)
	h.sup.mu.Unlock()
	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatalf("Start after failed spawn: %v", err)
	}
}

func TestConcurrentStartSameCamera(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "spawns")
	script := writeScript(t, "echo x >> "+counter+"\n"+runForever)
	h := newHarness(t, testSettings(t, script))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sup.Start(context.Background(), "cam-1", testSource, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyRunning):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d starts succeeded, want 1", succeeded)
	}

	waitFor(t, "spawn marker", func() bool {
		data, _ := os.ReadFile(counter)
		return len(data) > 0
	})
	time.Sleep(50 * time.Millisecond)
	data, _ := os.ReadFile(counter)
	if n := strings.Count(string(data), "x"); n != 1 {
		t.Errorf("%d processes spawned, want 1", n)
	}
}

func TestStopNonExistentIsNoop(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))

	if err := h.sup.Stop(context.Background(), "nobody"); err != nil {
		t.Fatalf("Stop err = %v", err)
	}
	if _, err := h.sup.Status("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status err = %v, want ErrNotFound", err)
	}
	if h.events.count(events.TypeStreamStopped) != 0 {
		t.Error("no-op stop published an event")
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.sup.Stop(ctx, "cam-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if _, err := h.sup.Status("cam-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status after stop err = %v, want ErrNotFound", err)
	}
	if h.cameras.get("cam-1") != cameras.StatusOffline {
		t.Errorf("camera status = %q, want offline", h.cameras.get("cam-1"))
	}
	if h.events.count(events.TypeStreamStopped) != 1 {
		t.Error("expected one StreamStopped event")
	}

	// The reaped process must not be reported as a natural exit
	time.Sleep(100 * time.Millisecond)
	if h.events.count(events.TypeStreamEnded) != 0 {
		t.Error("stopped job produced a StreamEnded event")
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	stubborn := `trap '' TERM
while :; do sleep 0.05; done
`
	settings := testSettings(t, writeScript(t, stubborn))
	settings.StopGrace = 200 * time.Millisecond
	h := newHarness(t, settings)
	ctx := context.Background()

	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := h.sup.Stop(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop took %v", elapsed)
	}
	if h.sup.ActiveCount() != 0 {
		t.Error("slot not freed")
	}
}

func TestNaturalExitLeavesTombstone(t *testing.T) {
	dir := t.TempDir()
	trigger := filepath.Join(dir, "exit")
	script := writeScript(t, `while [ ! -f "`+trigger+`" ]; do sleep 0.02; done
exit 1
`)
	h := newHarness(t, testSettings(t, script))

	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	status, _ := h.sup.Status("cam-1")
	if !status.Running || status.LastError != "" {
		t.Fatalf("status before exit = %+v", status)
	}

	if err := os.WriteFile(trigger, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "exit", func() bool { return h.sup.ActiveCount() == 0 })

	status, err := h.sup.Status("cam-1")
	if err != nil {
		t.Fatalf("Status after exit err = %v", err)
	}
	if status.Running {
		t.Error("Running after exit")
	}
	if status.LastError != "Process exited with code 1" {
		t.Errorf("LastError = %q", status.LastError)
	}
	if status.ExitCode == nil || *status.ExitCode != 1 {
		t.Errorf("ExitCode = %v", status.ExitCode)
	}
	if len(h.sup.ListAll()) != 0 {
		t.Error("exited job still listed")
	}

	waitFor(t, "StreamEnded event", func() bool { return h.events.count(events.TypeStreamEnded) == 1 })
	ended := h.events.last(events.TypeStreamEnded).(events.StreamEndedEvent)
	if ended.ExitCode != 1 || ended.CameraID != "cam-1" {
		t.Errorf("ended event = %+v", ended)
	}
	waitFor(t, "camera offline", func() bool { return h.cameras.get("cam-1") == cameras.StatusOffline })

	// A fresh start clears the tombstone
	if err := os.Remove(trigger); err != nil {
		t.Fatal(err)
	}
	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	status, _ = h.sup.Status("cam-1")
	if !status.Running || status.LastError != "" || status.ExitCode != nil {
		t.Errorf("status after restart = %+v", status)
	}
}

func TestRestartPreservesSource(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	overrides := &ffmpeg.Overrides{VideoBitrate: "1500k"}
	first, err := h.sup.Start(ctx, "cam-1", testSource, overrides)
	if err != nil {
		t.Fatal(err)
	}

	second, err := h.sup.Restart(ctx, "cam-1")
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if second.SourceURL != first.SourceURL {
		t.Errorf("SourceURL = %q, want %q", second.SourceURL, first.SourceURL)
	}
	if !second.StartedAt.After(first.StartedAt) {
		t.Errorf("StartedAt %v not after %v", second.StartedAt, first.StartedAt)
	}
	if second.RunID == first.RunID || second.PID == first.PID {
		t.Error("restart did not create a new run")
	}

	h.sup.mu.RLock()
	j := h.sup.jobs["cam-1"]
	h.sup.mu.RUnlock()
	if j.config.VideoBitrate != "1500k" {
		t.Errorf("restarted job lost overrides: %q", j.config.VideoBitrate)
	}
}

func TestRestartNotFound(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	if _, err := h.sup.Restart(context.Background(), "cam-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartDuringRestartDelayWins(t *testing.T) {
	settings := testSettings(t, writeScript(t, runForever))
	settings.RestartDelay = 300 * time.Millisecond
	h := newHarness(t, settings)
	ctx := context.Background()

	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}

	restartErr := make(chan error, 1)
	go func() {
		_, err := h.sup.Restart(ctx, "cam-1")
		restartErr <- err
	}()

	waitFor(t, "stop phase of restart", func() bool { return h.sup.ActiveCount() == 0 })
	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatalf("Start during settle window failed: %v", err)
	}

	if err := <-restartErr; !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Restart err = %v, want ErrAlreadyRunning", err)
	}
	if h.sup.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d", h.sup.ActiveCount())
	}
}

func TestOutputParsing(t *testing.T) {
	script := writeScript(t, `echo "frame=  250 fps= 25 q=28.0 size=  512kB time=00:00:10.00 bitrate= 812.4kbits/s speed=1.01x" >&2
echo "[error] Connection timed out" >&2
`+runForever)
	h := newHarness(t, testSettings(t, script))

	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "progress", func() bool {
		m, err := h.sup.Metrics("cam-1")
		return err == nil && m.Frames == 250
	})
	m, _ := h.sup.Metrics("cam-1")
	if m.FPS != 25 || m.BitrateKbps != 812.4 || m.Speed != 1.01 {
		t.Errorf("metrics = %+v", m)
	}
	if m.LastActivityAt.IsZero() {
		t.Error("LastActivityAt not set")
	}

	waitFor(t, "error line", func() bool {
		s, _ := h.sup.Status("cam-1")
		return s.LastError != ""
	})
	status, _ := h.sup.Status("cam-1")
	if !status.Running {
		t.Error("error line ended the job")
	}
	if !strings.Contains(status.LastError, "Connection timed out") {
		t.Errorf("LastError = %q", status.LastError)
	}

	if h.events.count(events.TypeStreamFrameUpdate) == 0 || h.events.count(events.TypeStreamBitrateUpdate) == 0 {
		t.Error("expected frame and bitrate events")
	}
}

func TestMetricsNotFound(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	if _, err := h.sup.Metrics("cam-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMetricsLastSegment(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	status, err := h.sup.Start(context.Background(), "cam-1", testSource, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(status.OutputDir, "segment000000000.ts"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := h.sup.Metrics("cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.LastSegmentAt.IsZero() {
		t.Error("LastSegmentAt not set")
	}
}

func TestListAllSorted(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	for _, id := range []string{"cam-c", "cam-a", "cam-b"} {
		if _, err := h.sup.Start(context.Background(), id, testSource, nil); err != nil {
			t.Fatal(err)
		}
	}

	var ids []string
	for _, s := range h.sup.ListAll() {
		ids = append(ids, s.CameraID)
	}
	if got := strings.Join(ids, ","); got != "cam-a,cam-b,cam-c" {
		t.Errorf("ListAll order = %s", got)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	for _, id := range []string{"cam-1", "cam-2"} {
		if _, err := h.sup.Start(ctx, id, testSource, nil); err != nil {
			t.Fatal(err)
		}
	}

	for i := range 2 {
		if err := h.sup.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown #%d: %v", i+1, err)
		}
		if h.sup.ActiveCount() != 0 {
			t.Fatalf("ActiveCount after shutdown #%d = %d", i+1, h.sup.ActiveCount())
		}
	}

	if _, err := h.sup.Start(ctx, "cam-3", testSource, nil); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Start after shutdown err = %v, want ErrShuttingDown", err)
	}
	if h.events.count(events.TypeStreamStopped) != 2 {
		t.Errorf("StreamStopped events = %d, want 2", h.events.count(events.TypeStreamStopped))
	}
}

func TestCameraUpdateFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	h.cameras.err = errors.New("disk full")

	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.sup.Stop(context.Background(), "cam-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestMetricsRecorderCalls(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.sup.Stop(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}

	h.metrics.mu.Lock()
	defer h.metrics.mu.Unlock()
	if h.metrics.started != 1 {
		t.Errorf("started = %d", h.metrics.started)
	}
	if h.metrics.exits["stopped"] != 1 {
		t.Errorf("exits = %v", h.metrics.exits)
	}
	if h.metrics.active != 0 {
		t.Errorf("active = %d", h.metrics.active)
	}
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))

	limit := 1
	segments := 10
	updated, err := h.sup.UpdateSettings(SettingsPatch{MaxConcurrent: &limit, MaxSegments: &segments})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if updated.MaxConcurrent != 1 || updated.Transcode.MaxSegments != 10 {
		t.Errorf("updated = %+v", updated)
	}
	if h.sup.Settings().MaxConcurrent != 1 {
		t.Error("settings not stored")
	}

	zero := 0
	if _, err := h.sup.UpdateSettings(SettingsPatch{MaxConcurrent: &zero}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if h.sup.Settings().MaxConcurrent != 1 {
		t.Error("invalid patch was applied")
	}

	ctx := context.Background()
	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := h.sup.Start(ctx, "cam-2", testSource, nil); !errors.Is(err, ErrCapacity) {
		t.Errorf("err = %v, want ErrCapacity under lowered ceiling", err)
	}
}

func TestNewSupervisorFillsUnsetSettings(t *testing.T) {
	settings := testSettings(t, writeScript(t, runForever))
	settings.SweepInterval = 0
	settings.StopGrace = 0
	settings.RestartDelay = -time.Second
	h := newHarness(t, settings)

	def := DefaultSettings()
	got := h.sup.Settings()
	if got.SweepInterval != def.SweepInterval || got.StopGrace != def.StopGrace || got.RestartDelay != def.RestartDelay {
		t.Errorf("unset fields not defaulted: %+v", got)
	}
	if got.MaxConcurrent != 4 || got.Transcode.FFmpegPath != settings.Transcode.FFmpegPath {
		t.Errorf("set fields overwritten: %+v", got)
	}

	if _, err := h.sup.Start(context.Background(), "cam-1", testSource, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestNewSupervisorPartialSettings(t *testing.T) {
	sup := NewSupervisor(&SupervisorOptions{Settings: Settings{MaxConcurrent: 2}, Logger: discardLogger()})
	defer sup.Shutdown(context.Background())

	got := sup.Settings()
	if got.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", got.MaxConcurrent)
	}
	if got.Transcode.FFmpegPath != "ffmpeg" || got.SweepInterval != DefaultSettings().SweepInterval {
		t.Errorf("defaults not applied: %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("effective settings invalid: %v", err)
	}
}

func TestStopJobIgnoresReplacedJob(t *testing.T) {
	h := newHarness(t, testSettings(t, writeScript(t, runForever)))
	ctx := context.Background()

	if _, err := h.sup.Start(ctx, "cam-1", testSource, nil); err != nil {
		t.Fatal(err)
	}
	h.sup.mu.RLock()
	stale := h.sup.jobs["cam-1"]
	h.sup.mu.RUnlock()

	if err := h.sup.Stop(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}
	current, err := h.sup.Start(ctx, "cam-1", testSource, nil)
	if err != nil {
		t.Fatal(err)
	}

	stopped, err := h.sup.stopJob(ctx, stale)
	if err != nil || stopped {
		t.Fatalf("stopJob(stale) = %v, %v; want false, nil", stopped, err)
	}
	status, err := h.sup.Status("cam-1")
	if err != nil || !status.Running || status.RunID != current.RunID {
		t.Errorf("replacement job disturbed: %+v, %v", status, err)
	}

	if err := h.sup.restartLost("cam-1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("restartLost with a running job = %v, want ErrAlreadyRunning", err)
	}
	if err := h.sup.restartLost("cam-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("restartLost without a job = %v, want ErrNotFound", err)
	}
}
