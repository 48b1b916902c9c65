package cmd

import (
	"context"
	"os"
	"time"

	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/cameras/store"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/process"
	"github.com/smazurov/camnode/internal/streams"
	"github.com/spf13/cobra"
)

// CreateStreamCmd creates the stream command.
func CreateStreamCmd(env EnvFunc) *cobra.Command {
	var sourceOverride string

	cmd := &cobra.Command{
		Use:   "stream [camera-id]",
		Short: "Run one camera's transcoder in the foreground",
		Long: `Runs the HLS transcoder of a single camera from the cameras file until interrupted. ` +
			`The transcoder is restarted when the camera's RTSP URL changes and stopped when the camera is removed.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cameraID := args[0]
			e := env()
			logger := logging.GetLogger("stream").With("camera_id", cameraID)

			logger.Info("Starting stream command", "cameras", e.CamerasFile)

			repo := store.NewTOML(e.CamerasFile)
			if err := repo.Load(); err != nil {
				logger.Error("Failed to load cameras", "error", err, "cameras", e.CamerasFile)
				os.Exit(1)
			}
			camera, err := repo.Get(cameraID)
			if err != nil {
				logger.Error("Camera not found")
				os.Exit(1)
			}

			source := camera.RTSPURL
			if sourceOverride != "" {
				source = sourceOverride
			}
			if source == "" {
				logger.Error("Camera has no RTSP URL, pass --source")
				os.Exit(1)
			}

			cfg, err := ffmpeg.Build(cameraID, source, nil, e.Settings.Transcode)
			if err != nil {
				logger.Error("Failed to build transcoder command", "error", err)
				os.Exit(1)
			}
			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				logger.Error("Failed to create output directory", "error", err)
				os.Exit(1)
			}
			logger.Info("Generated command", "command", cfg.CommandLine())

			proc := process.NewProcess(cameraID, cfg.Path, cfg.Args, logger)
			proc.SetLogParser(logging.GetLogger("ffmpeg").With("camera_id", cameraID), ffmpeg.ParseLogLevel)
			proc.SetTimeouts(e.Settings.StopGrace, 0)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go pruneLoop(ctx, cfg.OutputDir, cfg.MaxSegments, e.Settings.SweepInterval, logger)

			loader := func(path string) (map[string]cameras.Camera, error) {
				s := store.NewTOML(path)
				if err := s.Load(); err != nil {
					return nil, err
				}
				list, err := s.List()
				if err != nil {
					return nil, err
				}
				byID := make(map[string]cameras.Camera, len(list))
				for _, c := range list {
					byID[c.ID] = c
				}
				return byID, nil
			}

			watcher := config.NewConfigWatcher(
				e.CamerasFile,
				loader,
				logger,
				config.WithDebounce[map[string]cameras.Camera](1500*time.Millisecond),
			)

			current := cfg
			watcher.OnReload(func(all map[string]cameras.Camera) {
				updated, ok := all[cameraID]
				if !ok {
					logger.Warn("Camera removed, shutting down")
					proc.Shutdown()
					return
				}
				if sourceOverride != "" || updated.RTSPURL == "" {
					return
				}

				next, err := ffmpeg.Build(cameraID, updated.RTSPURL, nil, e.Settings.Transcode)
				if err != nil {
					logger.Warn("Failed to rebuild command", "error", err)
					return
				}
				if next.CommandLine() != current.CommandLine() || next.SourceURL != current.SourceURL {
					logger.Info("Source changed, requesting restart", "source_url", ffmpeg.RedactURL(next.SourceURL))
					current = next
					proc.RequestRestart(next.Args)
				} else {
					logger.Debug("Cameras reloaded, command unchanged")
				}
			})

			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start cameras watcher, hot-reload disabled", "error", err)
			}

			exitCode := proc.RunWithRestart()

			logger.Info("Stream command exiting", "exit_code", exitCode)
			// os.Exit skips deferred calls
			cancel()
			_ = watcher.Stop()
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&sourceOverride, "source", "", "Source URL to use instead of the camera's stored RTSP URL")

	return cmd
}

// pruneLoop keeps the output directory bounded while the foreground
// transcoder runs.
func pruneLoop(ctx context.Context, dir string, keep int, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := streams.PruneDir(dir, keep)
			if err != nil {
				logger.Warn("Segment sweep failed", "error", err)
				continue
			}
			if len(result.Removed) > 0 || len(result.Failed) > 0 {
				logger.Debug("Pruned segments", "removed", len(result.Removed), "failed", len(result.Failed))
			}
		}
	}
}
