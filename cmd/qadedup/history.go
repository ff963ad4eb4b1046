package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded dedup passes",
	Long:  `Show the most recent dedup passes with their mode, status and counts, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}

		passes, err := s.ListPasses(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list passes: %w", err)
		}
		printHistory(os.Stdout, passes)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of passes to show")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(w io.Writer, passes []*types.PassRecord) {
	if len(passes) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "\n%s No passes recorded yet. Run 'qadedup run' first.\n\n", yellow("ℹ"))
		return
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan(fmt.Sprintf("Recent Passes (%d)", len(passes))))
	for _, p := range passes {
		icon, status := green("✓"), green(string(p.Status))
		switch p.Status {
		case types.PassProcessing:
			icon, status = yellow("●"), yellow(fmt.Sprintf("%s %d%%", p.Status, p.Progress))
		case types.PassFailed:
			icon, status = red("✗"), red(string(p.Status))
		}

		fmt.Fprintf(w, "%s %s  %s\n", icon, p.ID, gray(p.CreatedAt.Local().Format("2006-01-02 15:04:05")))
		fmt.Fprintf(w, "    %-11s threshold %.2f  %s\n", p.Mode, p.Threshold, status)
		fmt.Fprintf(w, "    %d -> %d records (%d removed)\n", p.OriginalCount, p.KeptCount, p.RemovedCount())
		if p.ErrorMessage != "" {
			fmt.Fprintf(w, "    %s %s\n", red("Error:"), p.ErrorMessage)
		}
	}
	fmt.Fprintln(w)
}
