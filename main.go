package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/smazurov/camnode/cmd"
	"github.com/smazurov/camnode/internal/api"
	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/cameras/store"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/metrics/exporters"
	"github.com/smazurov/camnode/internal/streams"
	"github.com/smazurov/camnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Cameras settings
	CamerasFile string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.file" env:"CAMERAS_FILE"`

	// Streams settings
	StreamsFFmpegPath     string `help:"Transcoder executable" default:"ffmpeg" toml:"streams.ffmpeg_path" env:"STREAMS_FFMPEG_PATH"`
	StreamsOutputRoot     string `help:"Directory for per-camera HLS output" default:"public/streams" toml:"streams.output_root" env:"STREAMS_OUTPUT_ROOT"`
	StreamsMaxConcurrent  int    `help:"Maximum simultaneous streams" default:"16" toml:"streams.max_concurrent" env:"STREAMS_MAX_CONCURRENT"`
	StreamsSweepInterval  string `help:"Segment sweep period" default:"5m" toml:"streams.sweep_interval" env:"STREAMS_SWEEP_INTERVAL"`
	StreamsStopGrace      string `help:"Wait after SIGTERM before SIGKILL" default:"5s" toml:"streams.stop_grace" env:"STREAMS_STOP_GRACE"`
	StreamsRestartDelay   string `help:"Settle delay between stop and start on restart" default:"2s" toml:"streams.restart_delay" env:"STREAMS_RESTART_DELAY"`
	StreamsSegmentSeconds int    `help:"HLS segment duration in seconds" default:"4" toml:"streams.segment_seconds" env:"STREAMS_SEGMENT_SECONDS"`
	StreamsMaxSegments    int    `help:"Segments kept per stream" default:"6" toml:"streams.max_segments" env:"STREAMS_MAX_SEGMENTS"`
	StreamsPlaylistType   string `help:"HLS playlist type (live, event)" default:"live" toml:"streams.playlist_type" env:"STREAMS_PLAYLIST_TYPE"`
	StreamsVideoBitrate   string `help:"Default video bitrate" default:"800k" toml:"streams.video_bitrate" env:"STREAMS_VIDEO_BITRATE"`
	StreamsAudioBitrate   string `help:"Default audio bitrate" default:"64k" toml:"streams.audio_bitrate" env:"STREAMS_AUDIO_BITRATE"`
	StreamsPreset         string `help:"Default encoder preset" default:"ultrafast" toml:"streams.preset" env:"STREAMS_PRESET"`
	StreamsRTSPTransport  string `help:"RTSP transport (tcp, udp)" default:"tcp" toml:"streams.rtsp_transport" env:"STREAMS_RTSP_TRANSPORT"`

	// Metrics settings
	MetricsPrometheusEnabled bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool   `help:"Publish stream metrics on the event stream" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`
	MetricsSSEInterval       string `help:"Stream metrics publish period" default:"1s" toml:"metrics.sse_interval" env:"METRICS_SSE_INTERVAL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP access log level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingCameras string `help:"Cameras logging level" default:"info" toml:"logging.cameras" env:"LOGGING_CAMERAS"`
	LoggingStreams string `help:"Streams logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingFFmpeg  string `help:"Transcoder output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingConfig  string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

// streamSettings resolves the supervisor settings from the options.
func (o *Options) streamSettings() (streams.Settings, error) {
	s := streams.DefaultSettings()
	s.MaxConcurrent = o.StreamsMaxConcurrent
	s.Transcode.FFmpegPath = o.StreamsFFmpegPath
	s.Transcode.OutputRoot = filepath.Clean(o.StreamsOutputRoot)
	s.Transcode.SegmentSeconds = o.StreamsSegmentSeconds
	s.Transcode.MaxSegments = o.StreamsMaxSegments
	s.Transcode.PlaylistType = o.StreamsPlaylistType
	s.Transcode.VideoBitrate = o.StreamsVideoBitrate
	s.Transcode.AudioBitrate = o.StreamsAudioBitrate
	s.Transcode.Preset = o.StreamsPreset
	s.Transcode.RTSPTransport = o.StreamsRTSPTransport

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"streams.sweep_interval", o.StreamsSweepInterval, &s.SweepInterval},
		{"streams.stop_grace", o.StreamsStopGrace, &s.StopGrace},
		{"streams.restart_delay", o.StreamsRestartDelay, &s.RestartDelay},
	} {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return s, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"api":     o.LoggingAPI,
			"http":    o.LoggingHTTP,
			"cameras": o.LoggingCameras,
			"streams": o.LoggingStreams,
			"ffmpeg":  o.LoggingFFmpeg,
			"config":  o.LoggingConfig,
		},
	}
}

func main() {
	// A missing .env is fine; real environment variables always win
	_ = godotenv.Load()

	var env cmd.Env
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		settings, err := opts.streamSettings()
		if err != nil {
			logger.Error("Invalid stream settings", "error", err)
			os.Exit(1)
		}
		env = cmd.Env{ConfigFile: opts.Config, CamerasFile: opts.CamerasFile, Settings: settings}

		var (
			server      *api.Server
			supervisor  *streams.Supervisor
			sseExporter *exporters.SSEExporter
			watcher     *config.Watcher[config.Reloadable]
		)

		hooks.OnStart(func() {
			eventBus := events.New()
			logging.SetLogCallback(api.NewLogForwarder(eventBus))

			repo := store.NewTOML(opts.CamerasFile)
			if loadErr := repo.Load(); loadErr != nil {
				logger.Error("Failed to load cameras", "error", loadErr, "path", repo.Path())
				os.Exit(1)
			}

			cameraService := cameras.NewService(&cameras.ServiceOptions{
				Repository:     repo,
				Events:         eventBus,
				AllowedSchemes: settings.Transcode.AllowedSchemes,
			})

			supervisor = streams.NewSupervisor(&streams.SupervisorOptions{
				Settings: settings,
				Cameras:  cameraService,
				Events:   eventBus,
				Metrics:  metrics.NewRecorder(),
				Parser:   ffmpeg.ProgressParser{},
			})
			cameraService.SetStreamStopper(supervisor)

			apiOpts := &api.Options{
				Cameras:    cameraService,
				Streams:    supervisor,
				EventBus:   eventBus,
				CORSOrigin: opts.CORSOrigin,
			}
			if opts.MetricsPrometheusEnabled {
				apiOpts.PrometheusHandler = exporters.HTTPHandler()
			}
			server = api.NewServer(apiOpts)

			if opts.MetricsSSEEnabled {
				sseExporter = exporters.NewSSEExporter(eventBus)
				if interval, parseErr := time.ParseDuration(opts.MetricsSSEInterval); parseErr == nil {
					sseExporter.SetInterval(interval)
				} else {
					logger.Warn("Invalid metrics.sse_interval, using default", "error", parseErr)
				}
				sseExporter.Start(context.Background())
			}

			watcher = config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"))
			watcher.OnReload(func(r config.Reloadable) {
				logging.SetLevels(r.Logging)
				if _, updateErr := supervisor.UpdateSettings(r.Streams.Patch()); updateErr != nil {
					logger.Warn("Ignoring invalid [streams] settings from config", "error", updateErr)
				}
			})
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			logger.Info("Starting HTTP server", "version", version.Version, "port", opts.Port, "cameras", repo.Path(), "output_root", settings.Transcode.OutputRoot)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if watcher != nil {
				_ = watcher.Stop()
			}
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}

			// Stop all transcoders after the HTTP server stops accepting requests
			if supervisor != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*settings.StopGrace+5*time.Second)
				if shutdownErr := supervisor.Shutdown(ctx); shutdownErr != nil {
					logger.Error("Error stopping streams", "error", shutdownErr)
				}
				cancel()
			}

			if sseExporter != nil {
				sseExporter.Stop()
			}
			logging.SetLogCallback(nil)
		})
	})

	cli.Root().Use = "camnode"
	cli.Root().Version = version.String()

	envFunc := func() cmd.Env { return env }
	cli.Root().AddCommand(cmd.CreateStreamCmd(envFunc))
	cli.Root().AddCommand(cmd.CreateValidateCmd(envFunc))
	cli.Root().AddCommand(cmd.CreatePruneCmd(envFunc))

	cli.Run()
}
