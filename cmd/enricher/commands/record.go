package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recordCmd, planCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <id>",
	Short: "Enrich one record and print the result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.Driver.RunRecord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <id>",
	Short: "Show which sources a record would be sent to, without calling them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.Driver.Preview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"record_id": args[0],
			"sources":   p.Names(),
			"skipped":   p.Skipped,
		})
	},
}
