package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/cache"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/faq"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/logs"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/util"
)

const (
	viewList    = "list"
	viewDetail  = "detail"
	viewHelp    = "help"
	viewDebug   = "debug"
	viewHistory = "history"
)

// Detail tabs, in display order.
const (
	tabContent = iota
	tabStrengths
	tabWeaknesses
	tabRaw
)

var tabNames = []string{"Content", "Strengths", "Weaknesses", "Raw"}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputBackend
)

const (
	scoreStep    = 5
	historyLimit = 20
)

// Backend is the subset of the API client the UI drives.
type Backend interface {
	cache.Source
	Run(ctx context.Context, action api.Action, force bool) (*api.RunResult, error)
}

// Deps wires the UI to its collaborators.
type Deps struct {
	Config     util.Config
	NewBackend func(baseURL string) Backend
	Cache      *cache.Cache
	History    *store.History
	Log        logrus.FieldLogger
	Ring       *logs.Ring
	ExportDir  string
	Version    string
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusErr
)

type model struct {
	ctx  context.Context
	deps Deps
	log  logrus.FieldLogger

	backend    Backend
	backendURL string

	theme    string
	styles   styles
	renderer text.Renderer

	health    *api.Health
	healthErr error
	faq       *api.FAQList
	faqErr    error
	loading   bool
	running   api.Action
	force     bool

	filter          faq.View
	compact         bool
	showWeaknesses  bool
	showFullContent bool
	lastRefresh     time.Time
	prevScores      map[string]int

	filtered  []api.FAQItem
	cursor    int
	detailTab int

	status        string
	statusKind    statusKind
	statusDetails string

	mode     inputMode
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	view   string
	width  int
	height int

	runs      []store.ActionRun
	snapshots []store.Snapshot
}

func initialModel(ctx context.Context, deps Deps) model {
	if deps.Log == nil {
		deps.Log = logs.Discard()
	}
	if deps.ExportDir == "" {
		deps.ExportDir = "."
	}
	in := textinput.New()
	in.CharLimit = 512
	in.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := model{
		ctx:            ctx,
		deps:           deps,
		log:            deps.Log,
		theme:          deps.Config.Theme,
		renderer:       text.NewPlainRenderer(),
		filter:         faq.DefaultView(),
		showWeaknesses: true,
		prevScores:     map[string]int{},
		input:          in,
		viewport:       vp,
		spinner:        sp,
		view:           viewList,
		loading:        true,
	}
	m.setBackend(util.NormalizeBackendURL(deps.Config.BackendURL))
	m.applyTheme(m.theme)
	return m
}

func (m *model) setBackend(url string) {
	m.backendURL = url
	m.backend = m.deps.NewBackend(url)
	m.health, m.healthErr = nil, nil
	m.faq, m.faqErr = nil, nil
	m.prevScores = map[string]int{}
	m.refilter()
}

func (m *model) applyTheme(name string) {
	if _, ok := palettes[name]; !ok {
		name = "catppuccin"
	}
	m.theme = name
	m.styles = newStyles(paletteFor(name))
	m.spinner.Style = m.styles.accent
}

func (m *model) setStatus(kind statusKind, msg string) {
	m.status, m.statusKind, m.statusDetails = msg, kind, ""
}

func (m *model) setError(msg string, err error) {
	m.setStatus(statusErr, msg+": "+err.Error())
	if apiErr, ok := err.(*api.APIError); ok {
		m.statusDetails = apiErr.DetailsText()
	}
}

// items is the full backend list, empty when not loaded.
func (m model) items() []api.FAQItem {
	if m.faq == nil {
		return nil
	}
	return m.faq.Items
}

func (m *model) refilter() {
	m.filter = m.filter.Clamp()
	m.filtered = m.filter.Apply(m.items())
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (api.FAQItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return api.FAQItem{}, false
	}
	return m.filtered[m.cursor], true
}

func (m model) detailOptions() text.DetailOptions {
	return text.DetailOptions{ShowWeaknesses: m.showWeaknesses, ShowFullContent: m.showFullContent}
}

// tea.Model implementation ---------------------------------------------------
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchHealth(), m.fetchFAQ())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case healthMsg:
		if msg.url != m.backendURL {
			return m, nil
		}
		m.health, m.healthErr = msg.health, msg.err
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("health fetch failed")
		}
		return m, nil
	case faqMsg:
		if msg.url != m.backendURL {
			return m, nil
		}
		m.loading = false
		m.faq, m.faqErr = msg.list, msg.err
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("faq fetch failed")
		}
		if msg.prev != nil {
			m.prevScores = msg.prev
		}
		m.refilter()
		if m.view == viewDetail {
			m.refreshViewport()
		}
		return m, nil
	case actionDoneMsg:
		m.running = ""
		m.lastRefresh = msg.at
		if msg.err != nil {
			m.setError(string(msg.action)+" failed", msg.err)
			return m, nil
		}
		m.setStatus(statusOK, msg.result.Summary(msg.action))
		if msg.result.Message != "" {
			m.statusDetails = msg.result.Message
		}
		m.loading = true
		return m, tea.Batch(m.fetchHealth(), m.fetchFAQ())
	case cacheClearedMsg:
		m.loading = true
		return m, tea.Batch(m.fetchHealth(), m.fetchFAQ())
	case exportDoneMsg:
		if msg.err != nil {
			m.setError("Export failed", msg.err)
		} else {
			m.setStatus(statusOK, fmt.Sprintf("Exported %d items to %s", msg.count, msg.path))
		}
		return m, nil
	case historyMsg:
		if msg.err != nil {
			m.setError("History unavailable", msg.err)
		}
		m.runs, m.snapshots = msg.runs, msg.snapshots
		if m.view == viewHistory {
			m.refreshViewport()
		}
		return m, nil
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	if m.view != viewList {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.mode == inputSearch {
			m.filter.Query = ""
			m.refilter()
		}
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case "enter":
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		if mode == inputBackend {
			return m.commitBackendURL(m.input.Value())
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.filter.Query = m.input.Value()
		m.cursor = 0
		m.refilter()
	}
	return m, cmd
}

func (m model) commitBackendURL(raw string) (tea.Model, tea.Cmd) {
	url := util.NormalizeBackendURL(raw)
	if url == m.backendURL {
		return m, nil
	}
	if err := util.ValidateBackendURL(url); err != nil {
		m.setError("Backend URL rejected", err)
		return m, nil
	}
	m.log.WithFields(logrus.Fields{"from": m.backendURL, "to": url}).Info("backend url changed")
	m.setBackend(url)
	m.loading = true
	m.setStatus(statusInfo, "Backend switched to "+url)
	return m, m.clearCache()
}

func (m model) startInput(mode inputMode, value, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.SetValue(value)
	m.input.Placeholder = placeholder
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		return m.toggleView(viewHelp), nil
	case "d":
		return m.toggleView(viewDebug), nil
	case "h":
		m = m.toggleView(viewHistory)
		if m.view == viewHistory {
			return m, m.loadHistory()
		}
		return m, nil
	case "T":
		m.applyTheme(nextThemeName(m.theme, 1))
		m.setStatus(statusInfo, "Theme: "+m.theme)
		m.refreshViewport()
		return m, nil
	case "w":
		m.showWeaknesses = !m.showWeaknesses
		m.refreshViewport()
		return m, nil
	case "x":
		m.showFullContent = !m.showFullContent
		m.refreshViewport()
		return m, nil
	case "r":
		m.setStatus(statusInfo, "Refreshing...")
		return m, m.clearCache()
	case "S":
		return m.startAction(api.ActionScrape)
	case "C":
		return m.startAction(api.ActionClean)
	case "A":
		return m.startAction(api.ActionAnalyze)
	case "f":
		m.force = !m.force
		return m, nil
	case "u":
		return m.startInput(inputBackend, m.backendURL, "http://localhost:8000")
	}
	switch m.view {
	case viewDetail:
		return m.updateDetail(k, msg)
	case viewList:
		return m.updateList(k)
	default:
		if k == "esc" {
			m.view = viewList
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

func (m model) toggleView(v string) model {
	if m.view == v {
		m.view = viewList
		return m
	}
	m.view = v
	m.viewport.GotoTop()
	m.refreshViewport()
	return m
}

func (m model) updateList(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "down", "j":
		m.move(1)
	case "up", "k":
		m.move(-1)
	case "pgdown", "ctrl+f":
		m.move(m.pageSize())
	case "pgup", "ctrl+b":
		m.move(-m.pageSize())
	case "home", "g":
		m.move(-len(m.filtered))
	case "end", "G":
		m.move(len(m.filtered))
	case "enter":
		if _, ok := m.selected(); !ok {
			return m, nil
		}
		if m.compact {
			m.setStatus(statusInfo, "Details are hidden in compact mode (v to toggle)")
			return m, nil
		}
		m.view = viewDetail
		m.detailTab = tabContent
		m.viewport.GotoTop()
		m.refreshViewport()
	case "/":
		return m.startInput(inputSearch, m.filter.Query, "keywords (title, summary, content...)")
	case "esc":
		if m.filter.Query != "" {
			m.filter.Query = ""
			m.refilter()
		}
	case "[":
		m.filter.MinScore -= scoreStep
		m.refilter()
	case "]":
		m.filter.MinScore += scoreStep
		m.refilter()
	case "{":
		m.filter.MaxScore -= scoreStep
		m.refilter()
	case "}":
		m.filter.MaxScore += scoreStep
		m.refilter()
	case "o":
		m.filter.OnlyScored = !m.filter.OnlyScored
		m.refilter()
	case "s":
		m.filter.Sort = m.filter.Sort.Next()
		m.refilter()
	case "v":
		m.compact = !m.compact
	case "e":
		return m, m.export(faq.FormatJSON)
	case "E":
		return m, m.export(faq.FormatCSV)
	}
	return m, nil
}

func (m model) updateDetail(k string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k {
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "tab", "right", "l":
		m.detailTab = (m.detailTab + 1) % len(tabNames)
	case "shift+tab", "left":
		m.detailTab = (m.detailTab + len(tabNames) - 1) % len(tabNames)
	case "1", "2", "3", "4":
		m.detailTab = int(k[0] - '1')
	case "n":
		m.move(1)
	case "p":
		m.move(-1)
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.viewport.GotoTop()
	m.refreshViewport()
	return m, nil
}

func (m *model) move(delta int) {
	if len(m.filtered) == 0 {
		m.cursor = 0
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
}

func (m model) startAction(a api.Action) (tea.Model, tea.Cmd) {
	if m.running != "" {
		m.setStatus(statusInfo, string(m.running)+" is still running")
		return m, nil
	}
	force := a == api.ActionAnalyze && m.force
	m.running = a
	m.setStatus(statusInfo, "Running "+string(a)+"...")
	return m, tea.Batch(m.spinner.Tick, m.runAction(a, force))
}

func (m *model) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	m.viewport.Width, m.viewport.Height = w, h
	m.input.Width = w - 4
	if r, err := text.NewGlamourRenderer(w - 2); err == nil {
		m.renderer = text.WithFallback(r, text.NewPlainRenderer())
	} else {
		m.log.WithError(err).Debug("markdown renderer unavailable")
		m.renderer = text.NewPlainRenderer()
	}
	m.refreshViewport()
}
