package cmd

import (
	"fmt"

	"github.com/smazurov/camnode/internal/streams"
	"github.com/spf13/cobra"
)

// CreatePruneCmd creates the prune command.
func CreatePruneCmd(env EnvFunc) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune [dir]",
		Short: "Delete old HLS segments from an output directory",
		Long: `Runs one retention pass over a stream output directory, keeping the newest segments. ` +
			`The playlist and other files are never touched. --keep defaults to streams.max_segments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if !c.Flags().Changed("keep") {
				keep = env().Settings.Transcode.MaxSegments
			}

			result, err := streams.PruneDir(args[0], keep)
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			for _, name := range result.Removed {
				fmt.Fprintf(out, "removed %s\n", name)
			}
			for _, ferr := range result.Failed {
				fmt.Fprintf(c.ErrOrStderr(), "failed: %v\n", ferr)
			}
			fmt.Fprintf(out, "%d removed, %d kept, %d failed\n", len(result.Removed), result.Kept, len(result.Failed))
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d segment(s) could not be removed", len(result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 6, "Segments to keep")

	return cmd
}
