package streams

import (
	"fmt"
	"slices"
	"time"

	"github.com/smazurov/camnode/internal/ffmpeg"
)

// Settings are the supervisor tunables. Transcode settings apply to jobs
// started after a change; running jobs keep the configuration they started with.
type Settings struct {
	Transcode     ffmpeg.Settings
	MaxConcurrent int
	SweepInterval time.Duration
	StopGrace     time.Duration
	RestartDelay  time.Duration
}

// DefaultSettings returns the stock supervisor tunables.
func DefaultSettings() Settings {
	return Settings{
		Transcode:     ffmpeg.DefaultSettings(),
		MaxConcurrent: 16,
		SweepInterval: 5 * time.Minute,
		StopGrace:     5 * time.Second,
		RestartDelay:  2 * time.Second,
	}
}

// Validate checks the tunables.
func (s Settings) Validate() error {
	if s.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", s.MaxConcurrent)
	}
	if s.SweepInterval < time.Second {
		return fmt.Errorf("sweep_interval must be at least 1s, got %s", s.SweepInterval)
	}
	if s.StopGrace <= 0 {
		return fmt.Errorf("stop_grace must be positive, got %s", s.StopGrace)
	}
	if s.RestartDelay < 0 {
		return fmt.Errorf("restart_delay must not be negative, got %s", s.RestartDelay)
	}
	return s.Transcode.Validate()
}

// withDefaults fills every unset tunable from DefaultSettings. The transcode
// block counts as unset when it names no executable.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Transcode.FFmpegPath == "" {
		s.Transcode = def.Transcode
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = def.MaxConcurrent
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = def.SweepInterval
	}
	if s.StopGrace <= 0 {
		s.StopGrace = def.StopGrace
	}
	if s.RestartDelay < 0 {
		s.RestartDelay = def.RestartDelay
	}
	return s
}

func (s Settings) clone() Settings {
	s.Transcode.AllowedSchemes = slices.Clone(s.Transcode.AllowedSchemes)
	return s
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	MaxConcurrent  *int
	SweepInterval  *time.Duration
	StopGrace      *time.Duration
	RestartDelay   *time.Duration
	SegmentSeconds *int
	MaxSegments    *int
	PlaylistType   *string
	VideoBitrate   *string
	AudioBitrate   *string
	Preset         *string
}

// Apply returns s with the non-nil fields of p applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	s = s.clone()
	if p.MaxConcurrent != nil {
		s.MaxConcurrent = *p.MaxConcurrent
	}
	if p.SweepInterval != nil {
		s.SweepInterval = *p.SweepInterval
	}
	if p.StopGrace != nil {
		s.StopGrace = *p.StopGrace
	}
	if p.RestartDelay != nil {
		s.RestartDelay = *p.RestartDelay
	}
	if p.SegmentSeconds != nil {
		s.Transcode.SegmentSeconds = *p.SegmentSeconds
	}
	if p.MaxSegments != nil {
		s.Transcode.MaxSegments = *p.MaxSegments
	}
	if p.PlaylistType != nil {
		s.Transcode.PlaylistType = *p.PlaylistType
	}
	if p.VideoBitrate != nil {
		s.Transcode.VideoBitrate = *p.VideoBitrate
	}
	if p.AudioBitrate != nil {
		s.Transcode.AudioBitrate = *p.AudioBitrate
	}
	if p.Preset != nil {
		s.Transcode.Preset = *p.Preset
	}
	return s
}
