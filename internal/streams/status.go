package streams

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/process"
)

// StreamStatus is a snapshot of one camera slot.
type StreamStatus struct {
	CameraID       string        `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	RunID          string        `json:"run_id,omitempty" doc:"Identifier of the current or last run"`
	SourceURL      string        `json:"source_url,omitempty" doc:"Source URL with credentials redacted"`
	Running        bool          `json:"running" doc:"Whether a transcoder is running"`
	State          process.State `json:"state" example:"running" doc:"Slot state: running, stopping or exited"`
	PID            int           `json:"pid,omitempty" example:"4242" doc:"Transcoder process id"`
	StartedAt      time.Time     `json:"started_at,omitzero" doc:"Start time of the run"`
	UptimeSeconds  float64       `json:"uptime_seconds" example:"3600" doc:"Run duration in seconds"`
	LastActivityAt time.Time     `json:"last_activity_at,omitzero" doc:"Last progress line seen"`
	LastError      string        `json:"last_error,omitempty" example:"Process exited with code 1" doc:"Last error seen"`
	ExitCode       *int          `json:"exit_code,omitempty" doc:"Exit code of the last run, once it has exited"`
	OutputDir      string        `json:"output_dir,omitempty" example:"public/streams/front-door" doc:"HLS output directory"`
	PlaylistURL    string        `json:"playlist_url" example:"/streams/front-door/playlist.m3u8" doc:"Playlist URL"`
}

// StreamMetrics is the live metrics snapshot of one running stream.
type StreamMetrics struct {
	CameraID       string    `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	UptimeSeconds  float64   `json:"uptime_seconds" example:"3600" doc:"Run duration in seconds"`
	Frames         int64     `json:"frames" example:"90000" doc:"Frames encoded by this run"`
	FPS            float64   `json:"fps" example:"25" doc:"Current encode rate"`
	BitrateKbps    float64   `json:"bitrate_kbps" example:"812.4" doc:"Current output bitrate in kbit/s"`
	Speed          float64   `json:"speed" example:"1.01" doc:"Encode speed relative to realtime"`
	LastActivityAt time.Time `json:"last_activity_at,omitzero" doc:"Last progress line seen"`
	LastSegmentAt  time.Time `json:"last_segment_at,omitzero" doc:"Modification time of the newest segment"`
}

// PlaylistURL returns the URL path the playlist of a camera is served at.
func PlaylistURL(cameraID string) string {
	return path.Join("/streams", cameraID, ffmpeg.PlaylistName)
}

// tombstone records how the last run of a camera ended on its own.
type tombstone struct {
	runID     string
	sourceURL string
	outputDir string
	startedAt time.Time
	endedAt   time.Time
	exit      process.ExitStatus
}

func (t tombstone) status(cameraID string) *StreamStatus {
	code := t.exit.Code
	return &StreamStatus{
		CameraID:      cameraID,
		RunID:         t.runID,
		SourceURL:     ffmpeg.RedactURL(t.sourceURL),
		State:         process.StateExited,
		StartedAt:     t.startedAt,
		UptimeSeconds: t.endedAt.Sub(t.startedAt).Seconds(),
		LastError:     t.exit.String(),
		ExitCode:      &code,
		OutputDir:     t.outputDir,
		PlaylistURL:   PlaylistURL(cameraID),
	}
}

// newestSegmentTime returns the modification time of the newest segment in
// dir, or the zero time.
func newestSegmentTime(dir string) time.Time {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}
	}
	var newest time.Time
	for _, e := range entries {
		if e.IsDir() || !isSegment(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}

func isSegment(name string) bool {
	return strings.HasPrefix(name, ffmpeg.SegmentPrefix) && strings.HasSuffix(name, ffmpeg.SegmentSuffix)
}
