package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/faq"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

const faqSort = "score"

type Handler struct {
	deps Deps
	log  logrus.FieldLogger
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

type itemView struct {
	ID         string
	Title      string
	URL        string
	Summary    string
	Strengths  string
	Weaknesses string
	Content    string
	Badge      string
	Level      string
	Delta      string
	WordCount  *int
	Raw        string
}

func newItemView(it api.FAQItem, prev map[string]int, opts text.DetailOptions) itemView {
	level, label := text.ItemBadge(it)
	v := itemView{
		ID:         it.ID,
		Title:      text.Title(it),
		URL:        it.URL,
		Summary:    text.StripHTML(it.Summary()),
		Strengths:  text.StripHTML(it.Strengths()),
		Weaknesses: text.StripHTML(it.Weaknesses()),
		Content:    text.ContentText(it, opts),
		Badge:      label,
		Level:      string(level),
		WordCount:  it.WordCount,
	}
	if d, ok := faq.ScoreDelta(prev, it); ok {
		v.Delta = fmt.Sprintf("%+d", d)
	}
	if data, err := json.Marshal(it); err == nil {
		var out bytes.Buffer
		if json.Indent(&out, data, "", "  ") == nil {
			v.Raw = out.String()
		} else {
			v.Raw = string(data)
		}
	}
	return v
}

// parseView reads filters from the query string. Invalid values fall back to
// the defaults.
func parseView(c *gin.Context) faq.View {
	v := faq.DefaultView()
	v.Query = c.Query("q")
	if n, err := strconv.Atoi(c.Query("min")); err == nil {
		v.MinScore = n
	}
	if n, err := strconv.Atoi(c.Query("max")); err == nil {
		v.MaxScore = n
	}
	switch c.Query("only") {
	case "0", "false", "no", "off":
		v.OnlyScored = false
	}
	if mode, err := faq.ParseSortMode(c.Query("sort")); err == nil {
		v.Sort = mode
	}
	return v.Clamp()
}

func parseOptions(c *gin.Context) text.DetailOptions {
	return text.DetailOptions{
		ShowWeaknesses:  c.DefaultQuery("weak", "1") != "0",
		ShowFullContent: c.Query("full") == "1",
	}
}

// load fetches the list and the scores it is compared against.
func (h *Handler) load(c *gin.Context) (*api.FAQList, map[string]int, error) {
	ctx := c.Request.Context()
	list, err := h.deps.Cache.FAQ(ctx, h.deps.Backend, faqSort)
	if err != nil {
		return nil, nil, err
	}
	url := h.deps.Backend.BaseURL()
	if _, _, err := h.deps.History.RecordSnapshot(ctx, url, list.Items); err != nil {
		h.log.WithError(err).Warn("snapshot not recorded")
	}
	prev, err := h.deps.History.PreviousScores(ctx, url)
	if err != nil {
		h.log.WithError(err).Warn("previous scores unavailable")
	}
	return list, prev, nil
}

func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	view := parseView(c)
	opts := parseOptions(c)
	data := gin.H{
		"Backend": h.deps.Backend.BaseURL(),
		"View":    view,
		"Sorts":   sortOptions(view.Sort),
		"Opts":    opts,
		"Compact": c.Query("compact") == "1",
		"Flash":   c.Query("msg"),
		"FlashOK": c.Query("ok") == "1",
		"Details": c.Query("details"),
		"Version": h.deps.Version,
		"Query":   c.Request.URL.RawQuery,
	}

	health, err := h.deps.Cache.Health(ctx, h.deps.Backend)
	if err != nil {
		h.log.WithError(err).Warn("health fetch failed")
		data["HealthErr"] = err.Error()
	} else {
		data["Health"] = health
	}

	list, prev, err := h.load(c)
	if err != nil {
		h.log.WithError(err).Warn("faq fetch failed")
		data["FAQErr"] = err.Error()
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			data["FAQErrDetails"] = apiErr.DetailsText()
		}
		c.HTML(http.StatusBadGateway, "index.html", data)
		return
	}
	filtered := view.Apply(list.Items)
	items := make([]itemView, len(filtered))
	for i, it := range filtered {
		items[i] = newItemView(it, prev, opts)
	}
	data["Items"] = items
	data["Shown"] = len(filtered)
	data["Total"] = len(list.Items)
	data["Stats"] = faq.Summarize(list.Items)
	c.HTML(http.StatusOK, "index.html", data)
}

func (h *Handler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	opts := parseOptions(c)

	var (
		found *api.FAQItem
		prev  map[string]int
	)
	if list, p, err := h.load(c); err == nil {
		prev = p
		for i := range list.Items {
			if list.Items[i].ID == id {
				found = &list.Items[i]
				break
			}
		}
	}
	if found == nil {
		it, err := h.deps.Backend.FAQByID(ctx, id)
		if err != nil {
			status := http.StatusBadGateway
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				status = http.StatusNotFound
			}
			c.HTML(status, "detail.html", gin.H{"Backend": h.deps.Backend.BaseURL(), "Err": err.Error()})
			return
		}
		found = it
	}
	c.HTML(http.StatusOK, "detail.html", gin.H{
		"Backend": h.deps.Backend.BaseURL(),
		"Item":    newItemView(*found, prev, opts),
		"Opts":    opts,
	})
}

func (h *Handler) Action(c *gin.Context) {
	ctx := c.Request.Context()
	action, err := api.ParseAction(c.Param("action"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	force := action == api.ActionAnalyze && isOn(c.PostForm("force"))

	started := time.Now()
	res, err := h.deps.Backend.Run(ctx, action, force)
	run := store.ActionRun{
		BackendURL: h.deps.Backend.BaseURL(),
		Action:     action,
		Force:      force,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	h.deps.Cache.Clear(ctx)

	q := url.Values{}
	if err != nil {
		run.ErrorText = err.Error()
		h.log.WithError(err).WithField("action", action).Error("action failed")
		q.Set("msg", fmt.Sprintf("%s failed: %v", action, err))
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			q.Set("details", text.ShortText(apiErr.DetailsText(), 1000))
		}
	} else {
		run.Result = *res
		h.log.WithField("action", action).WithField("force", force).Info(res.Summary(action))
		q.Set("msg", res.Summary(action))
		q.Set("ok", "1")
	}
	if _, herr := h.deps.History.RecordAction(ctx, run); herr != nil {
		h.log.WithError(herr).Warn("action run not recorded")
	}
	c.Redirect(http.StatusSeeOther, "/?"+q.Encode())
}

func (h *Handler) Export(c *gin.Context) {
	format := faq.FormatJSON
	if strings.HasSuffix(c.Request.URL.Path, ".csv") {
		format = faq.FormatCSV
	}
	list, _, err := h.load(c)
	if err != nil {
		c.String(http.StatusBadGateway, err.Error())
		return
	}
	items := parseView(c).Apply(list.Items)
	data, err := faq.Encode(items, format)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "export failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName()))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *Handler) Healthz(c *gin.Context) {
	out := gin.H{"status": "ok", "backend": h.deps.Backend.BaseURL()}
	if health, err := h.deps.Cache.Health(c.Request.Context(), h.deps.Backend); err != nil {
		out["backend_ok"] = false
		out["backend_error"] = err.Error()
	} else {
		out["backend_ok"] = true
		out["counts"] = health.Counts
	}
	c.JSON(http.StatusOK, out)
}

type historyRun struct {
	ID         string        `json:"id"`
	Action     api.Action    `json:"action"`
	Force      bool          `json:"force"`
	Result     api.RunResult `json:"result"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

type historySnapshot struct {
	ID          string    `json:"id"`
	FetchedAt   time.Time `json:"fetched_at"`
	ItemCount   int       `json:"item_count"`
	ScoredCount int       `json:"scored_count"`
}

func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	limit := 20
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	backend := h.deps.Backend.BaseURL()
	runs, err := h.deps.History.ListActions(ctx, backend, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	snaps, err := h.deps.History.Snapshots(ctx, backend, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	outRuns := make([]historyRun, 0, len(runs))
	for _, r := range runs {
		outRuns = append(outRuns, historyRun{
			ID: r.ID.String(), Action: r.Action, Force: r.Force, Result: r.Result,
			Error: r.ErrorText, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
		})
	}
	outSnaps := make([]historySnapshot, 0, len(snaps))
	for _, s := range snaps {
		outSnaps = append(outSnaps, historySnapshot{
			ID: s.ID.String(), FetchedAt: s.FetchedAt, ItemCount: s.ItemCount, ScoredCount: s.ScoredCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":   h.deps.History.Enabled(),
		"backend":   backend,
		"runs":      outRuns,
		"snapshots": outSnaps,
	})
}

type sortOption struct {
	Value    string
	Label    string
	Selected bool
}

func sortOptions(current faq.SortMode) []sortOption {
	out := make([]sortOption, len(faq.SortModes))
	for i, m := range faq.SortModes {
		out[i] = sortOption{Value: string(m), Label: m.Label(), Selected: m == current}
	}
	return out
}

func isOn(v string) bool {
	switch strings.ToLower(v) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
