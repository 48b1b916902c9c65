package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/cameras/store"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/spf13/cobra"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd(env EnvFunc) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate cameras and print their transcoder commands",
		Long: `Checks every camera in the cameras file and prints the ffmpeg command line each one would run with ` +
			`the current settings. Credentials in source URLs are redacted. Exits non-zero if any camera is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			e := env()
			repo := store.NewTOML(e.CamerasFile)
			if err := repo.Load(); err != nil {
				return fmt.Errorf("load cameras: %w", err)
			}
			list, err := repo.List()
			if err != nil {
				return err
			}
			slices.SortFunc(list, func(a, b cameras.Camera) int { return strings.Compare(a.ID, b.ID) })

			if err := e.Settings.Validate(); err != nil {
				return fmt.Errorf("stream settings: %w", err)
			}

			failed := ValidateCameras(c.OutOrStdout(), list, only, e.Settings.Transcode)
			if failed > 0 {
				fmt.Fprintf(c.ErrOrStderr(), "%d camera(s) failed validation\n", failed)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "camera", "", "Only validate this camera id")

	return cmd
}

// ValidateCameras writes one report block per camera and returns the number
// of cameras that failed.
func ValidateCameras(w io.Writer, list []cameras.Camera, only string, settings ffmpeg.Settings) int {
	failed := 0
	for _, camera := range list {
		if only != "" && camera.ID != only {
			continue
		}
		if err := cameras.Validate(camera, settings.AllowedSchemes); err != nil {
			fmt.Fprintf(w, "%s: INVALID: %v\n", camera.ID, err)
			failed++
			continue
		}
		if camera.RTSPURL == "" {
			fmt.Fprintf(w, "%s: ok (no rtsp_url, needs a source at start)\n", camera.ID)
			continue
		}
		cfg, err := ffmpeg.Build(camera.ID, camera.RTSPURL, nil, settings)
		if err != nil {
			fmt.Fprintf(w, "%s: INVALID: %v\n", camera.ID, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: ok\n  %s\n", camera.ID, cfg.CommandLine())
	}
	return failed
}
