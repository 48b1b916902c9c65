package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Build validates the camera id, source URL and overrides, and expands them
// with settings into a complete transcode job. It has no side effects.
func Build(cameraID, sourceURL string, overrides *Overrides, settings Settings) (*Config, error) {
	if err := ValidateCameraID(cameraID); err != nil {
		return nil, err
	}
	if err := ValidateSourceURL(sourceURL, settings.AllowedSchemes); err != nil {
		return nil, err
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("transcode settings: %w", err)
	}

	p := resolveParams(cameraID, sourceURL, overrides, settings)

	outputDir := OutputDir(settings.OutputRoot, cameraID)
	cfg := &Config{
		Params:         p,
		Path:           settings.FFmpegPath,
		OutputDir:      outputDir,
		PlaylistPath:   filepath.Join(outputDir, PlaylistName),
		SegmentPattern: filepath.Join(outputDir, fmt.Sprintf("%s%%0%dd%s", SegmentPrefix, segmentDigits, SegmentSuffix)),
	}
	cfg.Args = BuildArgs(cfg)
	return cfg, nil
}

// resolveParams merges overrides over settings.
func resolveParams(cameraID, sourceURL string, o *Overrides, s Settings) Params {
	p := Params{
		CameraID:       cameraID,
		SourceURL:      sourceURL,
		VideoCodec:     s.VideoCodec,
		AudioCodec:     s.AudioCodec,
		Preset:         s.Preset,
		Tune:           s.Tune,
		RTSPTransport:  s.RTSPTransport,
		VideoBitrate:   s.VideoBitrate,
		AudioBitrate:   s.AudioBitrate,
		SegmentSeconds: s.SegmentSeconds,
		MaxSegments:    s.MaxSegments,
		PlaylistType:   s.PlaylistType,
	}
	if o == nil {
		return p
	}
	if o.VideoBitrate != "" {
		p.VideoBitrate = o.VideoBitrate
	}
	if o.Resolution != "" {
		p.Resolution = o.Resolution
	}
	if o.FPS > 0 {
		p.FPS = o.FPS
	}
	if o.VideoCodec != "" {
		p.VideoCodec = o.VideoCodec
	}
	if o.AudioCodec != "" {
		p.AudioCodec = o.AudioCodec
	}
	if o.Preset != "" {
		p.Preset = o.Preset
	}
	return p
}

// BuildArgs renders the argument vector (without the executable) for cfg.
func BuildArgs(cfg *Config) []string {
	p := cfg.Params

	args := []string{
		"-hide_banner",
		"-loglevel", "level+info",
		"-rtsp_transport", p.RTSPTransport,
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-strict", "experimental",
		"-i", p.SourceURL,
	}

	// Video: baseline H.264 with a short fixed GOP so segments cut cleanly
	args = append(args, "-c:v", p.VideoCodec, "-preset", p.Preset)
	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}
	args = append(args,
		"-profile:v", "baseline",
		"-level", "3.0",
		"-g", "15",
		"-keyint_min", "15",
		"-sc_threshold", "0",
		"-b:v", p.VideoBitrate,
		"-maxrate", p.VideoBitrate,
		"-bufsize", p.VideoBitrate,
	)
	if p.Resolution != "" {
		args = append(args, "-s", p.Resolution)
	}
	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}

	args = append(args,
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-ar", "44100",
	)

	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(p.MaxSegments),
		"-hls_flags", "delete_segments+omit_endlist",
	)
	if p.PlaylistType == PlaylistEvent {
		args = append(args, "-hls_playlist_type", PlaylistEvent)
	}
	args = append(args,
		"-hls_segment_filename", cfg.SegmentPattern,
		"-start_number", "0",
		cfg.PlaylistPath,
	)

	return args
}

// CommandLine renders the full command for display, with credentials redacted.
func (c *Config) CommandLine() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	for _, arg := range c.Args {
		if arg == c.SourceURL {
			arg = RedactURL(arg)
		}
		if strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
