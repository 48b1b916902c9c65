package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/streams"
)

// Duration is a time.Duration read from a TOML string such as "5m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StreamsSection is the [streams] table of the config file. Nil fields were
// absent from the file and leave the running value unchanged.
type StreamsSection struct {
	MaxConcurrent  *int      `toml:"max_concurrent"`
	SweepInterval  *Duration `toml:"sweep_interval"`
	StopGrace      *Duration `toml:"stop_grace"`
	RestartDelay   *Duration `toml:"restart_delay"`
	SegmentSeconds *int      `toml:"segment_seconds"`
	MaxSegments    *int      `toml:"max_segments"`
	PlaylistType   *string   `toml:"playlist_type"`
	VideoBitrate   *string   `toml:"video_bitrate"`
	AudioBitrate   *string   `toml:"audio_bitrate"`
	Preset         *string   `toml:"preset"`
}

// Patch converts the section into a supervisor settings change.
func (s StreamsSection) Patch() streams.SettingsPatch {
	return streams.SettingsPatch{
		MaxConcurrent:  s.MaxConcurrent,
		SweepInterval:  s.SweepInterval.ptr(),
		StopGrace:      s.StopGrace.ptr(),
		RestartDelay:   s.RestartDelay.ptr(),
		SegmentSeconds: s.SegmentSeconds,
		MaxSegments:    s.MaxSegments,
		PlaylistType:   s.PlaylistType,
		VideoBitrate:   s.VideoBitrate,
		AudioBitrate:   s.AudioBitrate,
		Preset:         s.Preset,
	}
}

func (d *Duration) ptr() *time.Duration {
	if d == nil {
		return nil
	}
	v := d.Std()
	return &v
}

// Reloadable holds the parts of the config file applied at runtime by the
// config watcher without a restart.
type Reloadable struct {
	Logging logging.Config
	Streams StreamsSection
}

// LoadReloadable reads the config file for the hot reload path. Read and
// parse errors are returned so a broken edit never reaches the running system.
func LoadReloadable(path string) (Reloadable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reloadable{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Logging map[string]string `toml:"logging"`
		Streams StreamsSection    `toml:"streams"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Reloadable{}, fmt.Errorf("parse config: %w", err)
	}

	return Reloadable{
		Logging: loggingFromTable(raw.Logging),
		Streams: raw.Streams,
	}, nil
}

// loggingFromTable splits the [logging] table into the global level, the
// format, and per-module levels.
func loggingFromTable(table map[string]string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string, len(table)),
	}
	for key, value := range table {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
