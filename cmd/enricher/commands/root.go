package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/vacants-enricher/internal/app"
	"github.com/yourorg/vacants-enricher/internal/config"
	"github.com/yourorg/vacants-enricher/internal/logger"
)

var (
	verbose bool
	cfg     config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "enricher fills coordinates, parcel geometry and tax status on vacant-property records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Verbose = true
		}
		log, err = logger.New(cfg.Verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
