package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var (
	runOnce     bool
	runInterval time.Duration
	runPause    time.Duration
)

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "process every record once and exit")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "repeat the run at this interval (overrides ENRICH_INTERVAL)")
	runCmd.Flags().DurationVar(&runPause, "pause", 0, "pause between records (overrides ENRICH_PAUSE)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--once] [--interval <dur>] [--pause <dur>]",
	Short: "Enrich every record in the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("interval") {
			cfg.Interval = runInterval
		}
		if cmd.Flags().Changed("pause") {
			cfg.Pause = runPause
		}
		if runOnce {
			cfg.Interval = 0
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Interval > 0 {
			return a.Driver.Run(ctx)
		}
		rep, err := a.Driver.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			RunID     string `json:"run_id"`
			Total     int    `json:"total"`
			Updated   int    `json:"updated"`
			Unchanged int    `json:"unchanged"`
			Skipped   int    `json:"skipped"`
			Failed    int    `json:"failed"`
		}{rep.RunID, rep.Total, rep.Updated, rep.Unchanged, rep.Skipped, rep.Failed})
	},
}
