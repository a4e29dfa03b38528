package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/faq"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
)

// faqSort is the server-side order requested; local sorting refines it.
const faqSort = "score"

type healthMsg struct {
	url    string
	health *api.Health
	err    error
}

type faqMsg struct {
	url  string
	list *api.FAQList
	err  error
	prev map[string]int
}

type actionDoneMsg struct {
	action api.Action
	result *api.RunResult
	err    error
	at     time.Time
}

type cacheClearedMsg struct{}

type exportDoneMsg struct {
	path  string
	count int
	err   error
}

type historyMsg struct {
	runs      []store.ActionRun
	snapshots []store.Snapshot
	err       error
}

func (m model) fetchHealth() tea.Cmd {
	ctx, c, backend := m.ctx, m.deps.Cache, m.backend
	return func() tea.Msg {
		h, err := c.Health(ctx, backend)
		return healthMsg{url: backend.BaseURL(), health: h, err: err}
	}
}

// fetchFAQ loads the list, records a history snapshot and returns the
// scores the list is compared against.
func (m model) fetchFAQ() tea.Cmd {
	ctx, c, backend, hist, log := m.ctx, m.deps.Cache, m.backend, m.deps.History, m.log
	return func() tea.Msg {
		url := backend.BaseURL()
		list, err := c.FAQ(ctx, backend, faqSort)
		if err != nil {
			return faqMsg{url: url, err: err}
		}
		if _, _, err := hist.RecordSnapshot(ctx, url, list.Items); err != nil {
			log.WithError(err).Warn("snapshot not recorded")
			return faqMsg{url: url, list: list}
		}
		prev, err := hist.PreviousScores(ctx, url)
		if err != nil {
			log.WithError(err).Warn("previous scores unavailable")
		}
		return faqMsg{url: url, list: list, prev: prev}
	}
}

// runAction calls the backend, drops cached responses and logs the run.
func (m model) runAction(a api.Action, force bool) tea.Cmd {
	ctx, c, backend, hist, log := m.ctx, m.deps.Cache, m.backend, m.deps.History, m.log
	return func() tea.Msg {
		started := time.Now()
		res, err := backend.Run(ctx, a, force)
		finished := time.Now()
		c.Clear(ctx)

		run := store.ActionRun{
			BackendURL: backend.BaseURL(),
			Action:     a,
			Force:      force,
			StartedAt:  started,
			FinishedAt: finished,
		}
		if res != nil {
			run.Result = *res
		}
		if err != nil {
			run.ErrorText = err.Error()
		}
		if _, herr := hist.RecordAction(ctx, run); herr != nil {
			log.WithError(herr).Warn("action run not recorded")
		}
		entry := log.WithField("action", a).WithField("force", force).WithField("took", finished.Sub(started).Round(time.Millisecond))
		if err != nil {
			entry.WithError(err).Error("action failed")
		} else {
			entry.Info(res.Summary(a))
		}
		return actionDoneMsg{action: a, result: res, err: err, at: finished}
	}
}

func (m model) clearCache() tea.Cmd {
	ctx, c := m.ctx, m.deps.Cache
	return func() tea.Msg {
		c.Clear(ctx)
		return cacheClearedMsg{}
	}
}

func (m model) export(f faq.Format) tea.Cmd {
	items := append([]api.FAQItem(nil), m.filtered...)
	dir, log := m.deps.ExportDir, m.log
	return func() tea.Msg {
		path, err := faq.WriteFile(dir, items, f)
		if err == nil {
			log.WithField("path", path).WithField("items", len(items)).Info("export written")
		}
		return exportDoneMsg{path: path, count: len(items), err: err}
	}
}

func (m model) loadHistory() tea.Cmd {
	ctx, hist, url := m.ctx, m.deps.History, m.backendURL
	return func() tea.Msg {
		runs, err := hist.ListActions(ctx, url, historyLimit)
		if err != nil {
			return historyMsg{err: err}
		}
		snaps, err := hist.Snapshots(ctx, url, historyLimit)
		return historyMsg{runs: runs, snapshots: snaps, err: err}
	}
}
