package ffmpeg

import "path/filepath"

// File naming shared by the transcoder, the segment sweeper and the HLS handler.
const (
	PlaylistName  = "playlist.m3u8"
	SegmentPrefix = "segment"
	SegmentSuffix = ".ts"

	// segmentDigits pads the segment counter so lexicographic order is numeric order.
	segmentDigits = 9
)

// Playlist types accepted by -hls_playlist_type.
const (
	PlaylistLive  = "live"
	PlaylistEvent = "event"
)

// Settings are the tunables applied to every transcode job unless overridden.
type Settings struct {
	FFmpegPath     string   `toml:"ffmpeg_path" json:"ffmpeg_path" doc:"Transcoder executable"`
	OutputRoot     string   `toml:"output_root" json:"output_root" doc:"Base directory for per-camera HLS output"`
	SegmentSeconds int      `toml:"segment_seconds" json:"segment_seconds" doc:"Target HLS segment duration"`
	MaxSegments    int      `toml:"max_segments" json:"max_segments" doc:"Segments kept in the playlist and on disk"`
	PlaylistType   string   `toml:"playlist_type" json:"playlist_type" doc:"live or event"`
	VideoCodec     string   `toml:"video_codec" json:"video_codec"`
	AudioCodec     string   `toml:"audio_codec" json:"audio_codec"`
	Preset         string   `toml:"preset" json:"preset"`
	Tune           string   `toml:"tune" json:"tune"`
	RTSPTransport  string   `toml:"rtsp_transport" json:"rtsp_transport" doc:"tcp or udp"`
	VideoBitrate   string   `toml:"video_bitrate" json:"video_bitrate"`
	AudioBitrate   string   `toml:"audio_bitrate" json:"audio_bitrate"`
	AllowedSchemes []string `toml:"allowed_schemes" json:"allowed_schemes"`
}

// DefaultSettings returns the stock transcode tunables.
func DefaultSettings() Settings {
	return Settings{
		FFmpegPath:     "ffmpeg",
		OutputRoot:     filepath.Join("public", "streams"),
		SegmentSeconds: 4,
		MaxSegments:    6,
		PlaylistType:   PlaylistLive,
		VideoCodec:     "libx264",
		AudioCodec:     "aac",
		Preset:         "ultrafast",
		Tune:           "zerolatency",
		RTSPTransport:  "tcp",
		VideoBitrate:   "800k",
		AudioBitrate:   "64k",
		AllowedSchemes: []string{"rtsp", "rtsps"},
	}
}

// Overrides are optional per-job replacements for Settings.
// Zero values mean "use the default".
type Overrides struct {
	VideoBitrate string `json:"video_bitrate,omitempty" toml:"video_bitrate,omitempty" example:"1500k" doc:"Video bitrate"`
	Resolution   string `json:"resolution,omitempty" toml:"resolution,omitempty" example:"1280x720" doc:"Output resolution WxH"`
	FPS          int    `json:"fps,omitempty" toml:"fps,omitempty" example:"15" doc:"Output frame rate"`
	VideoCodec   string `json:"video_codec,omitempty" toml:"video_codec,omitempty" example:"libx264" doc:"Video encoder"`
	AudioCodec   string `json:"audio_codec,omitempty" toml:"audio_codec,omitempty" example:"aac" doc:"Audio encoder"`
	Preset       string `json:"preset,omitempty" toml:"preset,omitempty" example:"veryfast" doc:"Encoder preset"`
}

// Params is the resolved parameter set for one camera.
type Params struct {
	CameraID       string
	SourceURL      string
	VideoCodec     string
	AudioCodec     string
	Preset         string
	Tune           string
	RTSPTransport  string
	VideoBitrate   string
	AudioBitrate   string
	Resolution     string // empty keeps the source size
	FPS            int    // 0 keeps the source rate
	SegmentSeconds int
	MaxSegments    int
	PlaylistType   string
}

// Config is a ready-to-execute transcode job description.
type Config struct {
	Params

	Path           string // transcoder executable
	Args           []string
	OutputDir      string
	PlaylistPath   string
	SegmentPattern string
}

// OutputDir returns the output directory for a camera under root.
// cameraID must already be validated.
func OutputDir(root, cameraID string) string {
	return filepath.Join(root, cameraID)
}
