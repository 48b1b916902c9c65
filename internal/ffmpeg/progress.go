package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	frameRe   = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+)kbits/s`)
	speedRe   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Diagnostic is the structured signal extracted from one line of transcoder output.
type Diagnostic struct {
	Frame       int64
	HasFrame    bool
	FPS         float64
	BitrateKbps float64
	HasBitrate  bool
	Speed       float64
	Error       string // non-empty when the line carries an error marker
}

// LineParser turns a raw output line into a Diagnostic.
// ok is false when the line carries nothing of interest.
type LineParser interface {
	ParseLine(line string) (d Diagnostic, ok bool)
}

// ProgressParser understands ffmpeg's stderr progress and level-prefixed log lines.
type ProgressParser struct{}

// ParseLine implements LineParser.
func (ProgressParser) ParseLine(line string) (Diagnostic, bool) {
	var d Diagnostic
	found := false

	level, msg := ParseLogLevel(line)
	switch {
	case level == "error" || level == "fatal" || level == "panic":
		d.Error = msg
		return d, true
	case strings.Contains(line, "error") || strings.Contains(line, "Error"):
		d.Error = msg
		return d, true
	}

	if m := frameRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			d.Frame = n
			d.HasFrame = true
			found = true
		}
	}
	if m := bitrateRe.FindStringSubmatch(line); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			d.BitrateKbps = f
			d.HasBitrate = true
			found = true
		}
	}
	if !found {
		return d, false
	}

	if m := fpsRe.FindStringSubmatch(line); m != nil {
		d.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		d.Speed, _ = strconv.ParseFloat(m[1], 64)
	}
	return d, true
}
