package events

// Event type constants for kelindar/event.
const (
	TypeCameraCreated uint32 = iota + 1
	TypeCameraUpdated
	TypeCameraDeleted
	TypeStreamStarted
	TypeStreamStopped
	TypeStreamEnded
	TypeStreamFrameUpdate
	TypeStreamBitrateUpdate
	TypeSegmentsPruned
	TypeStreamMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraInfo is the camera payload carried by camera events. The RTSP URL
// is always redacted.
type CameraInfo struct {
	ID      string `json:"id" example:"front-door" doc:"Camera identifier"`
	Name    string `json:"name" example:"Front door" doc:"Display name"`
	RTSPURL string `json:"rtsp_url" example:"rtsp://cam.local:554/stream1" doc:"Source URL with credentials redacted"`
	Status  string `json:"status" example:"offline" doc:"Camera status: online, offline, streaming"`
}

// CameraCreatedEvent is published after a camera record is stored.
type CameraCreatedEvent struct {
	Camera    CameraInfo `json:"camera" doc:"Created camera"`
	Timestamp string     `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraCreatedEvent.
func (e CameraCreatedEvent) Type() uint32 { return TypeCameraCreated }

// CameraUpdatedEvent is published after a camera record changes.
type CameraUpdatedEvent struct {
	Camera    CameraInfo `json:"camera" doc:"Updated camera"`
	Timestamp string     `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraUpdatedEvent.
func (e CameraUpdatedEvent) Type() uint32 { return TypeCameraUpdated }

// CameraDeletedEvent is published after a camera record is removed.
type CameraDeletedEvent struct {
	CameraID  string `json:"camera_id" example:"front-door" doc:"Deleted camera identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraDeletedEvent.
func (e CameraDeletedEvent) Type() uint32 { return TypeCameraDeleted }

// StreamStartedEvent is published once a transcoder has been spawned.
type StreamStartedEvent struct {
	CameraID  string `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	RunID     string `json:"run_id" doc:"Identifier of this transcoder run"`
	PID       int    `json:"pid" example:"4242" doc:"Transcoder process id"`
	SourceURL string `json:"source_url" doc:"Source URL with credentials redacted"`
	OutputDir string `json:"output_dir" example:"public/streams/front-door" doc:"HLS output directory"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published when a stream is stopped on request.
type StreamStoppedEvent struct {
	CameraID      string  `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	RunID         string  `json:"run_id" doc:"Identifier of the stopped run"`
	UptimeSeconds float64 `json:"uptime_seconds" example:"3600" doc:"Run duration in seconds"`
	Timestamp     string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// StreamEndedEvent is published when a transcoder exits on its own.
type StreamEndedEvent struct {
	CameraID      string  `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	RunID         string  `json:"run_id" doc:"Identifier of the ended run"`
	ExitCode      int     `json:"exit_code" example:"1" doc:"Process exit code, 128+N when killed by signal N"`
	Signal        string  `json:"signal,omitempty" example:"killed" doc:"Terminating signal, if any"`
	Reason        string  `json:"reason" example:"Process exited with code 1" doc:"Human readable exit reason"`
	UptimeSeconds float64 `json:"uptime_seconds" example:"12.5" doc:"Run duration in seconds"`
	Timestamp     string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamEndedEvent.
func (e StreamEndedEvent) Type() uint32 { return TypeStreamEnded }

// StreamFrameUpdateEvent carries the latest frame counter of a running stream.
type StreamFrameUpdateEvent struct {
	CameraID  string  `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	Frames    int64   `json:"frames" example:"1500" doc:"Frames encoded so far"`
	FPS       float64 `json:"fps" example:"25" doc:"Current encode rate"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamFrameUpdateEvent.
func (e StreamFrameUpdateEvent) Type() uint32 { return TypeStreamFrameUpdate }

// StreamBitrateUpdateEvent carries the latest output bitrate of a running stream.
type StreamBitrateUpdateEvent struct {
	CameraID    string  `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	BitrateKbps float64 `json:"bitrate_kbps" example:"812.4" doc:"Output bitrate in kbit/s"`
	Speed       float64 `json:"speed" example:"1.01" doc:"Encode speed relative to realtime"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamBitrateUpdateEvent.
func (e StreamBitrateUpdateEvent) Type() uint32 { return TypeStreamBitrateUpdate }

// SegmentsPrunedEvent reports one retention pass over a stream's output directory.
type SegmentsPrunedEvent struct {
	CameraID  string `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	Removed   int    `json:"removed" example:"3" doc:"Segments deleted"`
	Failed    int    `json:"failed" example:"0" doc:"Segments that could not be deleted"`
	Kept      int    `json:"kept" example:"6" doc:"Segments retained"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SegmentsPrunedEvent.
func (e SegmentsPrunedEvent) Type() uint32 { return TypeSegmentsPruned }

// StreamMetricsEvent is a periodic metrics snapshot of one running stream.
type StreamMetricsEvent struct {
	EventType     string  `json:"type"`
	CameraID      string  `json:"camera_id"`
	Frames        int64   `json:"frames"`
	FPS           float64 `json:"fps"`
	BitrateKbps   float64 `json:"bitrate_kbps"`
	Speed         float64 `json:"speed"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Type returns the event type identifier for StreamMetricsEvent.
func (e StreamMetricsEvent) Type() uint32 { return TypeStreamMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
