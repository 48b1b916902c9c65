package ffmpeg

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	cameraIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)
	sourceURLPattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^\s/]+(?:/\S*)?$`)
	bitratePattern    = regexp.MustCompile(`^\d+(\.\d+)?[kKmM]?$`)
	resolutionPattern = regexp.MustCompile(`^(\d{2,5})x(\d{2,5})$`)
	tokenPattern      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,31}$`)
)

const maxFPS = 120

// ValidationError reports a malformed caller-supplied value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ValidateCameraID checks the identifier charset. Valid ids are safe to use
// as a single path element.
func ValidateCameraID(id string) error {
	if !cameraIDPattern.MatchString(id) {
		return &ValidationError{
			Field:  "camera_id",
			Value:  id,
			Reason: "must be 1-50 letters, digits, underscores or hyphens",
		}
	}
	return nil
}

// ValidateSourceURL checks scheme://host[:port][/path] with no whitespace.
// An empty schemes list accepts any scheme.
func ValidateSourceURL(raw string, schemes []string) error {
	redacted := RedactURL(raw)
	if !sourceURLPattern.MatchString(raw) {
		return &ValidationError{Field: "source_url", Value: redacted, Reason: "must look like scheme://host[:port][/path]"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "source_url", Value: redacted, Reason: err.Error()}
	}
	if len(schemes) > 0 && !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
		return &ValidationError{
			Field:  "source_url",
			Value:  redacted,
			Reason: "scheme must be one of " + strings.Join(schemes, ", "),
		}
	}
	if u.Hostname() == "" {
		return &ValidationError{Field: "source_url", Value: redacted, Reason: "host is empty"}
	}
	if p := u.Port(); p != "" {
		if n, convErr := strconv.Atoi(p); convErr != nil || n < 1 || n > 65535 {
			return &ValidationError{Field: "source_url", Value: redacted, Reason: "port out of range"}
		}
	}
	return nil
}

// RedactURL masks any password embedded in a source URL for logs and errors.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// Validate range-checks the supplied override fields.
func (o *Overrides) Validate() error {
	if o == nil {
		return nil
	}
	if o.VideoBitrate != "" && !bitratePattern.MatchString(o.VideoBitrate) {
		return &ValidationError{Field: "video_bitrate", Value: o.VideoBitrate, Reason: "expected a number with optional k or M suffix"}
	}
	if o.Resolution != "" && !resolutionPattern.MatchString(o.Resolution) {
		return &ValidationError{Field: "resolution", Value: o.Resolution, Reason: "expected WIDTHxHEIGHT"}
	}
	if o.FPS < 0 || o.FPS > maxFPS {
		return &ValidationError{Field: "fps", Value: strconv.Itoa(o.FPS), Reason: fmt.Sprintf("must be between 1 and %d", maxFPS)}
	}
	for field, v := range map[string]string{
		"video_codec": o.VideoCodec,
		"audio_codec": o.AudioCodec,
		"preset":      o.Preset,
	} {
		if v != "" && !tokenPattern.MatchString(v) {
			return &ValidationError{Field: field, Value: v, Reason: "unsupported characters"}
		}
	}
	return nil
}

// Validate checks that the settings can produce a runnable command.
func (s *Settings) Validate() error {
	switch {
	case s.FFmpegPath == "":
		return &ValidationError{Field: "ffmpeg_path", Reason: "required"}
	case s.OutputRoot == "":
		return &ValidationError{Field: "output_root", Reason: "required"}
	case s.SegmentSeconds < 1:
		return &ValidationError{Field: "segment_seconds", Value: strconv.Itoa(s.SegmentSeconds), Reason: "must be at least 1"}
	case s.MaxSegments < 1:
		return &ValidationError{Field: "max_segments", Value: strconv.Itoa(s.MaxSegments), Reason: "must be at least 1"}
	case s.PlaylistType != PlaylistLive && s.PlaylistType != PlaylistEvent:
		return &ValidationError{Field: "playlist_type", Value: s.PlaylistType, Reason: "must be live or event"}
	case s.RTSPTransport != "tcp" && s.RTSPTransport != "udp":
		return &ValidationError{Field: "rtsp_transport", Value: s.RTSPTransport, Reason: "must be tcp or udp"}
	}
	if !bitratePattern.MatchString(s.VideoBitrate) {
		return &ValidationError{Field: "video_bitrate", Value: s.VideoBitrate, Reason: "expected a number with optional k or M suffix"}
	}
	if !bitratePattern.MatchString(s.AudioBitrate) {
		return &ValidationError{Field: "audio_bitrate", Value: s.AudioBitrate, Reason: "expected a number with optional k or M suffix"}
	}
	for field, v := range map[string]string{
		"video_codec": s.VideoCodec,
		"audio_codec": s.AudioCodec,
		"preset":      s.Preset,
	} {
		if !tokenPattern.MatchString(v) {
			return &ValidationError{Field: field, Value: v, Reason: "unsupported characters"}
		}
	}
	// tune is optional
	if s.Tune != "" && !tokenPattern.MatchString(s.Tune) {
		return &ValidationError{Field: "tune", Value: s.Tune, Reason: "unsupported characters"}
	}
	return nil
}
