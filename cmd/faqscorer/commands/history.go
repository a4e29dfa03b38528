package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

var historyFlags struct {
	limit      int
	allBackend bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded action runs and score snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !rt.cfg.HistoryEnabled {
			return errors.New("history is disabled")
		}
		ctx := cmd.Context()
		h, err := rt.openHistory(ctx)
		if err != nil {
			return err
		}
		url := rt.cfg.BackendURL
		if historyFlags.allBackend {
			url = ""
		}
		runs, err := h.ListActions(ctx, url, historyFlags.limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Action runs")
		if len(runs) == 0 {
			fmt.Fprintln(out, "(none yet)")
		} else {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("When", "Backend", "Action", "Force", "Created", "Updated", "Skipped", "Errors", "Took", "Result")
			for _, r := range runs {
				result := "ok"
				if !r.OK() {
					result = text.ShortText(r.ErrorText, 40)
				}
				t.Row(r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.BackendURL, string(r.Action), fmt.Sprint(r.Force),
					fmt.Sprint(r.Result.Created), fmt.Sprint(r.Result.Updated), fmt.Sprint(r.Result.Skipped),
					fmt.Sprint(r.Result.Errors), r.Duration().Round(time.Millisecond).String(), result)
			}
			fmt.Fprintln(out, t.Render())
		}

		if historyFlags.allBackend {
			return nil
		}
		snaps, err := h.Snapshots(ctx, rt.cfg.BackendURL, historyFlags.limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nScore snapshots")
		if len(snaps) == 0 {
			fmt.Fprintln(out, "(none yet)")
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Fetched", "Items", "Scored")
		for _, s := range snaps {
			t.Row(s.FetchedAt.Local().Format("2006-01-02 15:04:05"), fmt.Sprint(s.ItemCount), fmt.Sprint(s.ScoredCount))
		}
		fmt.Fprintln(out, t.Render())
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back history database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := store.Open(ctx, rt.cfg.HistoryDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := store.NewMigrator(db)
		switch args[0] {
		case "up":
			err = migrator.Up(ctx)
		case "down":
			err = migrator.Down(ctx)
		}
		if err != nil && err != store.ErrNoChange {
			return fmt.Errorf("migrate %s: %w", args[0], err)
		}
		version, dirty, err := migrator.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations %s applied to %s (version %d, dirty=%v)\n", args[0], db.Dialect(), version, dirty)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Rows per table")
	historyCmd.Flags().BoolVar(&historyFlags.allBackend, "all", false, "List action runs of every backend")
}
