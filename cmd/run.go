package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/ghwatch/internal/models"
	"github.com/joescharf/ghwatch/internal/monitor"
	"github.com/joescharf/ghwatch/internal/notify"
	"github.com/joescharf/ghwatch/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch new activity once and send notifications",
	Long: `Run one monitoring pass: load the saved watermarks, fetch activity
newer than them from every configured repository, notify the configured
webhooks and advance the watermarks.

The watermarks only advance once every notification was delivered, so a
failed delivery is retried by the next run. With --dry-run nothing is
sent and no state is written; the items that would be sent are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStores(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	m, err := newMonitor(ctx, cfg, s)
	if err != nil {
		return err
	}
	m.DryRun = dryRun

	for _, r := range cfg.Repos {
		ui.VerboseLog("watching %s: %v", r.Name, r.MonitorTypes)
	}

	res := m.Run(ctx)
	printRunResult(res)
	return nil
}

// printRunResult reports a run on the UI. Run failures are reported, not
// returned: the saved state already reflects what was delivered.
func printRunResult(res monitor.Result) {
	run := res.Run

	switch run.Status {
	case models.RunStatusNoActivity:
		ui.Info("No new activity")
	case models.RunStatusDryRun:
		ui.DryRunMsg("Would notify %d of %d new activities", len(res.Items), run.Fetched)
		printItems(res.Items)
	case models.RunStatusNotified:
		ui.Success("Notified %d of %d new activities", run.Notified, run.Fetched)
		if !run.StateSaved {
			ui.Warning("State was not saved; the next run may repeat these notifications")
		}
	default:
		ui.Error("Run %s: %v", output.RunStatusColor(string(run.Status)), res.Err)
	}
	ui.VerboseLog("run %s finished in %s", run.ID, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

func printItems(items []models.ActivityItem) {
	if len(items) == 0 {
		return
	}
	table := ui.Table([]string{"Created", "Repo", "Type", "Title", "Author"})
	for _, it := range items {
		_ = table.Append([]string{
			it.CreatedAt.UTC().Format("2006-01-02 15:04"),
			it.Repo,
			notify.SourceLabel(it.SourceType),
			fmt.Sprintf("%.60s", it.Title),
			it.Author,
		})
	}
	_ = table.Render()
}
