package models

import (
	"time"

	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/streams"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string    `json:"version" example:"1.0.0" doc:"Application version"`
	Commit    string    `json:"commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string    `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string    `json:"go_version" example:"go1.24.0" doc:"Go runtime version"`
	Platform  string    `json:"platform" example:"linux/amd64" doc:"OS and architecture"`
	StartedAt time.Time `json:"started_at" doc:"Process start time"`
	Uptime    string    `json:"uptime" example:"3h12m5s" doc:"Time since process start"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraData struct {
	ID        string    `json:"id" example:"front-door" doc:"Camera identifier"`
	Name      string    `json:"name" example:"Front door" doc:"Display name"`
	RTSPURL   string    `json:"rtsp_url,omitempty" example:"rtsp://cam.local:554/stream1" doc:"Source URL with credentials redacted"`
	Status    string    `json:"status" example:"offline" doc:"Camera status: online, offline, streaming"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last modification time"`
}

type CameraListRequest struct {
	Status    string `query:"status" enum:"online,offline,streaming" doc:"Only cameras with this status"`
	SortBy    string `query:"sort_by" enum:"created_at,updated_at,name,id" doc:"Sort field, created_at by default"`
	SortOrder string `query:"sort_order" enum:"asc,desc" doc:"Sort direction, desc by default"`
	Page      int    `query:"page" minimum:"0" doc:"1-based page number, 0 disables paging"`
	Limit     int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Cameras on this page"`
	Total   int          `json:"total" example:"12" doc:"Cameras matching the filter"`
	Page    int          `json:"page,omitempty" example:"1" doc:"Page number"`
	Limit   int          `json:"limit,omitempty" example:"20" doc:"Page size"`
}

type CameraListResponse struct {
	Body CameraListData
}

type CameraResponse struct {
	Body CameraData
}

type CameraIDInput struct {
	CameraID string `path:"camera_id" example:"front-door" doc:"Camera identifier"`
}

type CameraCreateData struct {
	ID      string `json:"id,omitempty" example:"front-door" doc:"Camera identifier, generated when empty"`
	Name    string `json:"name" minLength:"1" maxLength:"100" example:"Front door" doc:"Display name"`
	RTSPURL string `json:"rtsp_url,omitempty" example:"rtsp://cam.local:554/stream1" doc:"RTSP source URL"`
}

type CameraCreateRequest struct {
	Body CameraCreateData
}

type CameraUpdateData struct {
	Name    *string `json:"name,omitempty" example:"Back door" doc:"New display name"`
	RTSPURL *string `json:"rtsp_url,omitempty" example:"rtsp://cam.local:554/stream2" doc:"New RTSP source URL"`
}

type CameraUpdateRequest struct {
	CameraID string `path:"camera_id" example:"front-door" doc:"Camera identifier"`
	Body     CameraUpdateData
}

// Stream models
type StreamStartData struct {
	SourceURL string            `json:"source_url,omitempty" example:"rtsp://cam.local:554/stream1" doc:"Source URL, defaults to the camera's stored URL"`
	Overrides *ffmpeg.Overrides `json:"overrides,omitempty" doc:"Per-stream transcode overrides"`
}

type StreamStartRequest struct {
	CameraID string          `path:"camera_id" example:"front-door" doc:"Camera identifier"`
	Body     StreamStartData `required:"false"`
}

type StreamResponse struct {
	Body streams.StreamStatus
}

type StreamStopData struct {
	CameraID string `json:"camera_id" example:"front-door" doc:"Camera identifier"`
	Message  string `json:"message" example:"Stream stopped" doc:"Result message"`
}

type StreamStopResponse struct {
	Body StreamStopData
}

type StreamListData struct {
	Streams       []streams.StreamStatus `json:"streams" doc:"Running streams ordered by camera id"`
	Active        int                    `json:"active" example:"2" doc:"Number of running streams"`
	MaxConcurrent int                    `json:"max_concurrent" example:"16" doc:"Concurrency ceiling"`
}

type StreamListResponse struct {
	Body StreamListData
}

type StreamMetricsResponse struct {
	Body streams.StreamMetrics
}

type StreamSettingsData struct {
	MaxConcurrent int             `json:"max_concurrent" example:"16" doc:"Maximum simultaneous streams"`
	SweepInterval string          `json:"sweep_interval" example:"5m0s" doc:"Segment sweep period"`
	StopGrace     string          `json:"stop_grace" example:"5s" doc:"Wait after SIGTERM before SIGKILL"`
	RestartDelay  string          `json:"restart_delay" example:"2s" doc:"Settle delay between stop and start on restart"`
	Transcode     ffmpeg.Settings `json:"transcode" doc:"Transcode defaults for new streams"`
}

type StreamSettingsResponse struct {
	Body StreamSettingsData
}

type StreamSettingsPatchData struct {
	MaxConcurrent  *int    `json:"max_concurrent,omitempty" minimum:"1" example:"8" doc:"Maximum simultaneous streams"`
	SweepInterval  *string `json:"sweep_interval,omitempty" example:"1m" doc:"Segment sweep period"`
	StopGrace      *string `json:"stop_grace,omitempty" example:"5s" doc:"Wait after SIGTERM before SIGKILL"`
	RestartDelay   *string `json:"restart_delay,omitempty" example:"2s" doc:"Settle delay on restart"`
	SegmentSeconds *int    `json:"segment_seconds,omitempty" minimum:"1" example:"4" doc:"Target segment duration"`
	MaxSegments    *int    `json:"max_segments,omitempty" minimum:"1" example:"6" doc:"Segments kept per stream"`
	PlaylistType   *string `json:"playlist_type,omitempty" enum:"live,event" doc:"Playlist type"`
	VideoBitrate   *string `json:"video_bitrate,omitempty" example:"800k" doc:"Default video bitrate"`
	AudioBitrate   *string `json:"audio_bitrate,omitempty" example:"64k" doc:"Default audio bitrate"`
	Preset         *string `json:"preset,omitempty" example:"ultrafast" doc:"Default encoder preset"`
}

type StreamSettingsPatchRequest struct {
	Body StreamSettingsPatchData
}

type SweepResponse struct {
	Body streams.SweepSummary
}

// SSE models
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Greeting"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Connection time"`
}
