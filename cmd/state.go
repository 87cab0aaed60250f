package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/ghwatch/internal/models"
	"github.com/joescharf/ghwatch/internal/output"
)

var (
	stateRepo      string
	stateResetType string
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show or reset saved watermarks",
	Long: `Show or reset the saved watermarks.

A watermark is the creation time of the newest activity already notified
for one repository and activity type. Running bare 'ghwatch state' is the
same as 'ghwatch state show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stateShowRun(cmd.Context())
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List watermarks per repository and activity type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stateShowRun(cmd.Context())
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <owner/repo>",
	Short: "Forget a repository's watermarks",
	Long: `Remove the watermarks of a repository, or of one activity type with
--type. The next run treats the removed entries as never seen and notifies
the newest activity again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return stateResetRun(cmd.Context(), args[0])
	},
}

func init() {
	stateCmd.PersistentFlags().StringVar(&stateRepo, "repo", "", "Only show this repository (owner/name)")
	stateResetCmd.Flags().StringVar(&stateResetType, "type", "", "Only reset this activity type")
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
	rootCmd.AddCommand(stateCmd)
}

func stateShowRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openStores(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	state, err := s.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	repos := make([]string, 0, len(state))
	for name := range state {
		if stateRepo == "" || name == stateRepo {
			repos = append(repos, name)
		}
	}
	if len(repos) == 0 {
		ui.Info("No watermarks saved yet")
		return nil
	}
	sort.Strings(repos)

	now := time.Now()
	table := ui.Table([]string{"Repo", "Type", "Last Activity", "Age"})
	for _, name := range repos {
		rs := state[name]
		types := make([]models.SourceType, 0, len(rs))
		for t := range rs {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		for _, t := range types {
			ts := rs[t].LastTimestamp
			_ = table.Append([]string{
				output.Cyan(name),
				string(t),
				ts.UTC().Format(time.RFC3339),
				output.Age(now.Sub(ts)),
			})
		}
	}
	return table.Render()
}

func stateResetRun(ctx context.Context, repo string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var only models.SourceType
	if stateResetType != "" {
		only = models.SourceType(stateResetType)
		if !only.Valid() {
			return fmt.Errorf("unknown activity type: %s", stateResetType)
		}
	}

	s, err := openStores(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	state, err := s.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	next, removed := resetWatermarks(state, repo, only)
	if removed == 0 {
		ui.Info("No watermarks to reset for %s", repo)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would remove %d watermark(s) for %s", removed, repo)
		return nil
	}

	if err := s.state.Save(ctx, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	ui.Success("Removed %d watermark(s) for %s", removed, repo)
	return nil
}

// resetWatermarks returns a copy of state without repo's watermarks, or
// only its watermark for type only when set, and how many were removed.
func resetWatermarks(state models.State, repo string, only models.SourceType) (models.State, int) {
	next := state.Clone()
	rs, ok := next[repo]
	if !ok {
		return next, 0
	}

	if only == "" {
		delete(next, repo)
		return next, len(rs)
	}
	if _, ok := rs[only]; !ok {
		return next, 0
	}
	delete(rs, only)
	if len(rs) == 0 {
		delete(next, repo)
	}
	return next, 1
}
