package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/faq"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

// faqSort is the ordering requested from the backend; the view re-sorts locally.
const faqSort = "score"

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend and print the pipeline counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := rt.client(rt.cfg.BackendURL).Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("backend unavailable at %s: %w", rt.cfg.BackendURL, err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend OK (%s)\n", rt.cfg.BackendURL)
		fmt.Fprintf(out, "Raw: %d  Clean: %d  Scored: %d\n", h.Count("raw"), h.Count("clean"), h.Count("scored"))
		if h.TimeUTC != "" {
			fmt.Fprintf(out, "Backend time: %s\n", h.TimeUTC)
		}
		return nil
	},
}

var viewFlags struct {
	query string
	min   int
	max   int
	all   bool
	sort  string
	limit int
}

func addViewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&viewFlags.query, "query", "q", "", "Case-insensitive search in title, summary, strengths, weaknesses, content and URL")
	f.IntVar(&viewFlags.min, "min", faq.MinScore, "Minimum score")
	f.IntVar(&viewFlags.max, "max", faq.MaxScore, "Maximum score")
	f.BoolVar(&viewFlags.all, "all", false, "Include items that are not scored yet")
	f.StringVar(&viewFlags.sort, "sort", string(faq.SortScoreDesc), "Sort: score_desc, score_asc, title_asc, title_desc")
}

func currentView() (faq.View, error) {
	mode, err := faq.ParseSortMode(viewFlags.sort)
	if err != nil {
		return faq.View{}, err
	}
	return faq.View{
		Query:      viewFlags.query,
		MinScore:   viewFlags.min,
		MaxScore:   viewFlags.max,
		OnlyScored: !viewFlags.all,
		Sort:       mode,
	}.Clamp(), nil
}

// loadFAQ fetches the list, records a snapshot and returns the filtered view.
func loadFAQ(cmd *cobra.Command) (all, shown []api.FAQItem, err error) {
	v, err := currentView()
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	list, err := rt.client(rt.cfg.BackendURL).FAQ(ctx, faqSort)
	if err != nil {
		return nil, nil, fmt.Errorf("could not fetch FAQ data from the backend: %w", err)
	}
	if _, _, err := rt.history(ctx).RecordSnapshot(ctx, rt.cfg.BackendURL, list.Items); err != nil {
		rt.log.WithError(err).Warn("record snapshot failed")
	}
	return list.Items, v.Apply(list.Items), nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the filtered FAQ list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		all, shown, err := loadFAQ(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "No FAQ data yet. Run scrape, clean and analyze first.")
			return nil
		}
		if viewFlags.limit > 0 && len(shown) > viewFlags.limit {
			shown = shown[:viewFlags.limit]
		}
		printItems(out, shown)
		st := faq.Summarize(all)
		fmt.Fprintf(out, "Shown: %d / %d (scored %d, mean %.1f)\n", len(shown), st.Total, st.Scored, st.Mean)
		return nil
	},
}

func printItems(w io.Writer, items []api.FAQItem) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Score", "Title", "Summary", "URL")
	for _, it := range items {
		_, label := text.ItemBadge(it)
		t.Row(label, text.ShortText(text.Title(it), 50), text.ShortText(text.StripHTML(it.Summary()), 60), it.URL)
	}
	fmt.Fprintln(w, t.Render())
}

var forceFlag bool

func actionCmds() []*cobra.Command {
	short := map[api.Action]string{
		api.ActionScrape:  "Scrape the help center into raw pages",
		api.ActionClean:   "Clean raw pages into indexable text",
		api.ActionAnalyze: "Score cleaned pages with the analysis model",
	}
	cmds := make([]*cobra.Command, 0, len(api.Actions))
	for _, a := range api.Actions {
		action := a
		c := &cobra.Command{
			Use:   string(action),
			Short: short[action],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAction(cmd, action, action == api.ActionAnalyze && forceFlag)
			},
		}
		if action == api.ActionAnalyze {
			c.Flags().BoolVar(&forceFlag, "force", false, "Re-analyze pages that are already scored")
		}
		cmds = append(cmds, c)
	}
	return cmds
}

func runAction(cmd *cobra.Command, action api.Action, force bool) error {
	ctx := cmd.Context()
	log := rt.log.WithFields(logrus.Fields{"action": action, "force": force, "backend": rt.cfg.BackendURL})
	started := time.Now()
	res, err := rt.client(rt.cfg.BackendURL).Run(ctx, action, force)

	run := store.ActionRun{
		BackendURL: rt.cfg.BackendURL,
		Action:     action,
		Force:      force,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if res != nil {
		run.Result = *res
	}
	if err != nil {
		run.ErrorText = err.Error()
	}
	if _, herr := rt.history(ctx).RecordAction(ctx, run); herr != nil {
		log.WithError(herr).Warn("record action failed")
	}
	// a shared Redis cache may still hold pre-action responses
	if c, cerr := rt.cache(ctx); cerr != nil {
		log.WithError(cerr).Warn("cache not cleared")
	} else {
		c.Clear(ctx)
	}

	if err != nil {
		log.WithError(err).Error("action failed")
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Details != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Details:\n%s\n", apiErr.DetailsText())
		}
		return fmt.Errorf("%s failed: %w", action, err)
	}
	log.WithField("took", run.Duration().Round(time.Millisecond)).Info("action finished")
	fmt.Fprintln(cmd.OutOrStdout(), res.Summary(action))
	if res.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}

var exportFlags struct {
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered FAQ list as JSON or CSV",
	Long: `export applies the same filters as list and writes faq_filtered.json or
faq_filtered.csv into --out. Use --out - to write to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := faq.ParseFormat(exportFlags.format)
		if err != nil {
			return err
		}
		_, shown, err := loadFAQ(cmd)
		if err != nil {
			return err
		}
		if exportFlags.out == "-" {
			data, err := faq.Encode(shown, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		path, err := faq.WriteFile(exportFlags.out, shown, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(shown), path)
		return nil
	},
}

func init() {
	addViewFlags(listCmd)
	listCmd.Flags().IntVarP(&viewFlags.limit, "limit", "n", 0, "Print at most n items")
	addViewFlags(exportCmd)
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", string(faq.FormatJSON), "Export format: json or csv")
	exportCmd.Flags().StringVarP(&exportFlags.out, "out", "o", ".", "Output directory, or - for stdout")
}
