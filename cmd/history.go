package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/ghwatch/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent monitor runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openStores(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if s.history == nil {
		ui.Warning("Run history is disabled (history.enabled: false)")
		return nil
	}

	runs, err := s.history.ListRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	table := ui.Table([]string{"Started", "Status", "Fetched", "Notified", "Saved", "Error"})
	for _, r := range runs {
		saved := output.Yellow("no")
		if r.StateSaved {
			saved = output.Green("yes")
		}
		errText := r.Error
		if errText != "" {
			errText = output.Red(fmt.Sprintf("%.60s", errText))
		}
		_ = table.Append([]string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			output.RunStatusColor(string(r.Status)),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Notified),
			saved,
			errText,
		})
	}
	return table.Render()
}
