package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Saberlve/LLM-Kit-sub000/internal/repl"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [pass-id]",
	Short: "Browse the output of a recorded pass",
	Long: `Open an interactive inspector over a recorded dedup pass. Without a pass
id the most recent pass is opened.

Inside the inspector, type 'help' for the list of commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}

		passID := ""
		if len(args) > 0 {
			passID = args[0]
		}
		r, err := repl.New(ctx, &repl.Config{Store: s, PassID: passID})
		if err != nil {
			return fmt.Errorf("failed to start inspector: %w", err)
		}
		return r.Run()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
