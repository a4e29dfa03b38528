package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/faq"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

const (
	appTitle    = "FAQ Scorer"
	appSubtitle = "Scrape, clean and score a help center with an LLM"
	emptyState  = "No FAQ data yet. Run Scrape (S), then Clean (C), then Analyze (A); the list refreshes after each step."
	noSummary   = "Summary unavailable (not scored yet or analysis missing)."
	listHint    = "Tip: combine search (/) with the score range ([ ] { }) to isolate the weakest pages."

	// minWidth keeps layout arithmetic positive on tiny terminals.
	minWidth = 24
)

func (m model) View() string {
	w := m.contentWidth()
	var b strings.Builder
	b.WriteString(m.renderBanner(w) + "\n")
	b.WriteString(m.renderMetrics() + "\n")
	b.WriteString(m.renderControls() + "\n")
	if s := m.renderStatus(w); s != "" {
		b.WriteString(s + "\n")
	}
	b.WriteString("\n")
	switch m.view {
	case viewDetail, viewHelp, viewDebug, viewHistory:
		b.WriteString(m.renderViewportTitle() + "\n")
		b.WriteString(m.viewport.View() + "\n")
	default:
		b.WriteString(m.renderBody(w) + "\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m model) contentWidth() int {
	if m.width <= 0 {
		return 100
	}
	return max(m.width, minWidth)
}

func (m model) bodyHeight() int {
	h := m.height - 10
	if m.height <= 0 {
		h = 24
	}
	if h < 4 {
		h = 4
	}
	return h
}

func (m model) cardHeight() int {
	if m.compact {
		return 1
	}
	return 4
}

func (m model) pageSize() int {
	n := (m.bodyHeight() - 2) / m.cardHeight()
	if n < 1 {
		n = 1
	}
	return n
}

func (m model) renderBanner(w int) string {
	left := m.styles.title.Render(appTitle) + "  " + m.styles.subtitle.Render(appSubtitle)
	state := m.styles.ok.Render("● Backend OK")
	if m.healthErr != nil || (m.health == nil && !m.loading) {
		state = m.styles.errText.Render("● Backend unavailable")
	} else if m.health == nil {
		state = m.styles.muted.Render(m.spinner.View() + " connecting")
	}
	right := m.styles.muted.Render("Backend ") + m.styles.accent.Render(m.backendURL) + "  " + state
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		return left + "\n" + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m model) renderMetrics() string {
	metric := func(label string, n int) string {
		return m.styles.muted.Render(label+" ") + m.styles.metric.Render(fmt.Sprint(n))
	}
	refresh := "-"
	if !m.lastRefresh.IsZero() {
		refresh = m.lastRefresh.Format("15:04:05")
	}
	var h api.Health
	if m.health != nil {
		h = *m.health
	}
	parts := []string{
		metric("Raw", h.Count("raw")),
		metric("Clean", h.Count("clean")),
		metric("Scored", h.Count("scored")),
		m.styles.muted.Render("Last refresh (client): " + refresh),
	}
	if st := faq.Summarize(m.items()); st.Scored > 0 {
		parts = append(parts, m.styles.muted.Render(fmt.Sprintf("Mean score %.1f", st.Mean)))
	}
	return strings.Join(parts, "   ")
}

func (m model) renderControls() string {
	on := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	if m.mode != inputNone {
		label := "Search"
		if m.mode == inputBackend {
			label = "Backend URL"
		}
		return m.styles.accent.Render(label+" ") + m.input.View() + m.styles.muted.Render("  (enter apply, esc cancel)")
	}
	query := m.filter.Query
	if query == "" {
		query = "-"
	}
	parts := []string{
		"Search: " + text.ShortText(query, 30),
		fmt.Sprintf("Score %d-%d", m.filter.MinScore, m.filter.MaxScore),
		"Only scored: " + on(m.filter.OnlyScored),
		"Sort: " + m.filter.Sort.Label(),
		"Force analyze: " + on(m.force),
		"Compact: " + on(m.compact),
		"Weaknesses: " + on(m.showWeaknesses),
		"Full content: " + on(m.showFullContent),
	}
	return m.styles.muted.Render(strings.Join(parts, " | "))
}

func (m model) renderStatus(w int) string {
	var line string
	switch {
	case m.running != "":
		line = m.styles.accent.Render(m.spinner.View() + " Running " + string(m.running) + "...")
	case m.status == "":
		return ""
	case m.statusKind == statusErr:
		line = m.styles.errText.Render("✗ " + m.status)
	case m.statusKind == statusOK:
		line = m.styles.ok.Render("✓ " + m.status)
	default:
		line = m.styles.muted.Render(m.status)
	}
	if m.running == "" && m.statusDetails != "" {
		line += "\n" + m.styles.muted.Render("  Details: "+text.ShortText(strings.Join(strings.Fields(m.statusDetails), " "), max(w-12, 20)))
	}
	return line
}

func (m model) renderBody(w int) string {
	switch {
	case m.faqErr != nil:
		return m.renderFAQError(w)
	case m.faq == nil:
		return m.styles.muted.Render(m.spinner.View() + " Loading FAQ from " + m.backendURL + "...")
	case len(m.faq.Items) == 0:
		return m.styles.panel.Width(w - 4).Render(emptyState)
	}
	var b strings.Builder
	b.WriteString(m.styles.metric.Render(fmt.Sprintf("Shown: %d / %d", len(m.filtered), len(m.faq.Items))))
	b.WriteString("   " + m.styles.muted.Render(listHint) + "\n\n")
	if len(m.filtered) == 0 {
		b.WriteString(m.styles.muted.Render("No item matches the current filters."))
		return b.String()
	}
	start, end := m.window()
	for i := start; i < end; i++ {
		b.WriteString(m.renderCard(m.filtered[i], i == m.cursor, w))
	}
	if end < len(m.filtered) || start > 0 {
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("%d-%d of %d", start+1, end, len(m.filtered))))
	}
	return strings.TrimRight(b.String(), "\n")
}

// window returns the visible slice bounds keeping the cursor in view.
func (m model) window() (int, int) {
	size := m.pageSize()
	start := 0
	if m.cursor >= size {
		start = m.cursor - size + 1
	}
	end := start + size
	if end > len(m.filtered) {
		end = len(m.filtered)
	}
	return start, end
}

func (m model) renderCard(it api.FAQItem, selected bool, w int) string {
	cursor := "  "
	titleStyle := m.styles.metric
	if selected {
		cursor = m.styles.accent.Render("▸ ")
		titleStyle = m.styles.selected
	}
	badge := m.styles.badge(text.ItemBadge(it)) + m.delta(it)
	title := titleStyle.Render(text.ShortText(text.Title(it), max(w-30, 20)))
	if m.compact {
		return cursor + badge + " " + title + "\n"
	}
	var b strings.Builder
	b.WriteString(cursor + title + "  " + badge + "\n")
	b.WriteString("  " + m.styles.muted.Render(it.URL) + "\n")
	if s := text.StripHTML(it.Summary()); strings.TrimSpace(s) != "" {
		b.WriteString("  " + text.ShortText(strings.Join(strings.Fields(s), " "), max(w-4, 20)) + "\n")
	} else {
		b.WriteString("  " + m.styles.subtitle.Render(noSummary) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

// delta renders the change against the previous recorded score.
func (m model) delta(it api.FAQItem) string {
	d, ok := faq.ScoreDelta(m.prevScores, it)
	switch {
	case !ok:
		return ""
	case d > 0:
		return m.styles.ok.Render(fmt.Sprintf(" ▲+%d", d))
	default:
		return m.styles.errText.Render(fmt.Sprintf(" ▼%d", d))
	}
}

func (m model) renderFAQError(w int) string {
	var b strings.Builder
	b.WriteString(m.styles.errText.Render("Could not fetch FAQ data from the backend.") + "\n\n")
	b.WriteString(m.styles.title.Render("Technical details") + "\n")
	b.WriteString(m.faqErr.Error() + "\n")
	if apiErr, ok := m.faqErr.(*api.APIError); ok {
		if d := apiErr.DetailsText(); d != "" {
			b.WriteString(text.ShortText(d, 600) + "\n")
		}
	}
	lines := m.deps.Ring.Lines()
	if len(lines) > 0 {
		if len(lines) > 8 {
			lines = lines[len(lines)-8:]
		}
		b.WriteString("\n" + m.styles.title.Render("Debug log") + "\n")
		b.WriteString(m.styles.muted.Render(strings.Join(lines, "\n")) + "\n")
	}
	b.WriteString("\n" + m.styles.muted.Render("r retry  u change backend URL  d full debug log"))
	return m.styles.panel.Width(w - 4).Render(b.String())
}

func (m model) renderViewportTitle() string {
	switch m.view {
	case viewDetail:
		it, _ := m.selected()
		tabs := make([]string, len(tabNames))
		for i, name := range tabNames {
			label := fmt.Sprintf("%d %s", i+1, name)
			if i == m.detailTab {
				tabs[i] = m.styles.tabOn.Render(label)
			} else {
				tabs[i] = m.styles.tab.Render(label)
			}
		}
		return m.styles.title.Render(text.Title(it)) + "  " + m.styles.badge(text.ItemBadge(it)) + m.delta(it) + "\n" +
			lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	case viewHelp:
		return m.styles.title.Render("Keys")
	case viewDebug:
		return m.styles.title.Render("Debug")
	case viewHistory:
		return m.styles.title.Render("History for " + m.backendURL)
	}
	return ""
}

// refreshViewport re-renders the content of the scrollable views.
func (m *model) refreshViewport() {
	var content string
	switch m.view {
	case viewDetail:
		content = m.detailContent()
	case viewHelp:
		content = m.helpContent()
	case viewDebug:
		content = m.debugContent()
	case viewHistory:
		content = m.historyContent()
	default:
		return
	}
	m.viewport.SetContent(content)
}

func (m model) detailContent() string {
	it, ok := m.selected()
	if !ok {
		return "No item selected."
	}
	opts := m.detailOptions()
	var md string
	switch m.detailTab {
	case tabContent:
		md = metadataMarkdown(it) + "\n" + text.ContentText(it, opts)
		if !opts.ShowFullContent {
			md += "\n\n_Preview. Press x for the full content._"
		}
	case tabStrengths:
		md = orDash(text.StripHTML(it.Strengths()))
	case tabWeaknesses:
		if !opts.ShowWeaknesses {
			return m.styles.muted.Render("Weaknesses are hidden (w to show).")
		}
		md = orDash(text.StripHTML(it.Weaknesses()))
	case tabRaw:
		return rawJSON(it)
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func metadataMarkdown(it api.FAQItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**ID:** %s  \n", orDash(it.ID))
	if it.WordCount != nil {
		fmt.Fprintf(&b, "**Words:** %d  \n", *it.WordCount)
	}
	fmt.Fprintf(&b, "**URL:** %s\n", orDash(it.URL))
	if s := text.StripHTML(it.Summary()); strings.TrimSpace(s) != "" {
		fmt.Fprintf(&b, "\n> %s\n", strings.Join(strings.Fields(s), " "))
	}
	return b.String()
}

func rawJSON(it api.FAQItem) string {
	data, err := json.Marshal(it)
	if err != nil {
		return err.Error()
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return string(data)
	}
	return out.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (m model) debugContent() string {
	var b strings.Builder
	b.WriteString("Health (raw):\n")
	if m.health != nil {
		data, _ := json.MarshalIndent(m.health, "", "  ")
		b.Write(data)
	} else if m.healthErr != nil {
		b.WriteString(m.healthErr.Error())
	} else {
		b.WriteString("{}")
	}
	b.WriteString("\n\nLog:\n")
	lines := m.deps.Ring.Lines()
	if len(lines) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	return b.String()
}

func (m model) historyContent() string {
	if !m.deps.History.Enabled() {
		return "History is disabled (--no-history)."
	}
	var b strings.Builder
	b.WriteString("Action runs\n")
	if len(m.runs) == 0 {
		b.WriteString(m.styles.muted.Render("(none yet)") + "\n")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(paletteFor(m.theme).Border)).
			Headers("When", "Action", "Force", "Created", "Updated", "Skipped", "Errors", "Result")
		for _, r := range m.runs {
			result := "ok"
			if !r.OK() {
				result = text.ShortText(r.ErrorText, 40)
			}
			t.Row(r.StartedAt.Local().Format("01-02 15:04:05"), string(r.Action), fmt.Sprint(r.Force),
				fmt.Sprint(r.Result.Created), fmt.Sprint(r.Result.Updated), fmt.Sprint(r.Result.Skipped),
				fmt.Sprint(r.Result.Errors), result)
		}
		b.WriteString(t.Render() + "\n")
	}
	b.WriteString("\nScore snapshots\n")
	if len(m.snapshots) == 0 {
		b.WriteString(m.styles.muted.Render("(none yet)") + "\n")
		return b.String()
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(paletteFor(m.theme).Border)).
		Headers("Fetched", "Items", "Scored")
	for _, s := range m.snapshots {
		t.Row(s.FetchedAt.Local().Format("01-02 15:04:05"), fmt.Sprint(s.ItemCount), fmt.Sprint(s.ScoredCount))
	}
	b.WriteString(t.Render() + "\n")
	return b.String()
}

func (m model) renderFooter() string {
	var keys string
	switch {
	case m.mode != inputNone:
		keys = "enter apply  esc cancel"
	case m.view == viewDetail:
		keys = "tab/1-4 tabs  n/p next/prev  w weaknesses  x full content  ↑/↓ scroll  esc back  q quit"
	case m.view != viewList:
		keys = "↑/↓ scroll  esc back  q quit"
	default:
		keys = "↑/↓ move  enter details  / search  S scrape  C clean  A analyze  f force  r refresh  e/E export  u backend  ? help  q quit"
	}
	return m.styles.muted.Render(keys)
}

func (m model) helpContent() string {
	version := m.deps.Version
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("faqscorer %s\n\n%s", version, helpText)
}

const helpText = `Navigation
  up/down j/k     move selection
  pgup/pgdown     page
  g/G             first / last item
  enter           open details (tabs: content, strengths, weaknesses, raw)
  esc             back / clear search

Backend
  S               scrape the help center
  C               clean scraped pages
  A               analyze (score) clean pages
  f               toggle force re-analyze
  r               drop cached responses and refetch
  u               change the backend URL

Filters
  /               search title, summary, strengths, weaknesses, content and url
  [ ]             lower / raise the minimum score
  { }             lower / raise the maximum score
  o               only scored items
  s               cycle sort: Score ↓, Score ↑, Title A→Z, Title Z→A

Display
  v               compact mode
  w               show weaknesses
  x               full content instead of a preview
  T               cycle theme
  e / E           export the filtered list as JSON / CSV
  h               action and snapshot history
  d               debug panel
  ?               this help
  q               quit`
