package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Health is the payload of GET /health.
type Health struct {
	Status  string         `json:"status"`
	BaseURL string         `json:"base_url"`
	Counts  map[string]int `json:"counts"`
	TimeUTC string         `json:"time_utc"`
}

// Count returns the named pipeline counter (raw, clean, scored).
func (h *Health) Count(name string) int {
	if h == nil {
		return 0
	}
	return h.Counts[name]
}

// Score is an analysis score. Only JSON numbers and numeric strings are
// considered valid; anything else reads as "not scored".
type Score struct {
	Value int
	Valid bool
}

// NewScore returns a valid score.
func NewScore(v int) Score { return Score{Value: v, Valid: true} }

func (s *Score) UnmarshalJSON(b []byte) error {
	*s = Score{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			*s = NewScore(v)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*s = NewScore(int(f))
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

func (s Score) String() string {
	if !s.Valid {
		return ""
	}
	return strconv.Itoa(s.Value)
}

// Text accepts either a string or a list of strings; lists are rendered as
// "- item" lines.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '[':
		var list []any
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		lines := make([]string, 0, len(list))
		for _, v := range list {
			lines = append(lines, "- "+fmt.Sprint(v))
		}
		*t = Text(strings.Join(lines, "\n"))
	default:
		*t = Text(b)
	}
	return nil
}

// Analysis is the LLM assessment attached to scored items.
type Analysis struct {
	Summary    Text  `json:"summary"`
	Strengths  Text  `json:"strengths"`
	Weaknesses Text  `json:"weaknesses"`
	Score      Score `json:"score"`
}

// FAQItem is one entry of GET /faq. Depending on how far the backend
// pipeline got it is a raw, clean or scored page.
type FAQItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	HTML      string    `json:"html,omitempty"`
	WordCount *int      `json:"word_count,omitempty"`
	ScrapedAt string    `json:"scraped_at,omitempty"`
	Analysis  *Analysis `json:"analysis,omitempty"`

	// Raw is the item exactly as the backend sent it.
	Raw json.RawMessage `json:"-"`
}

func (it *FAQItem) UnmarshalJSON(b []byte) error {
	type plain FAQItem
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*it = FAQItem(p)
	it.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON re-emits the backend payload untouched when available.
func (it FAQItem) MarshalJSON() ([]byte, error) {
	if len(it.Raw) > 0 {
		return it.Raw, nil
	}
	type plain FAQItem
	return json.Marshal(plain(it))
}

// Score returns the item score and whether it is present.
func (it FAQItem) Score() (int, bool) {
	if it.Analysis == nil || !it.Analysis.Score.Valid {
		return 0, false
	}
	return it.Analysis.Score.Value, true
}

func (it FAQItem) Summary() string {
	if it.Analysis == nil {
		return ""
	}
	return string(it.Analysis.Summary)
}

func (it FAQItem) Strengths() string {
	if it.Analysis == nil {
		return ""
	}
	return string(it.Analysis.Strengths)
}

func (it FAQItem) Weaknesses() string {
	if it.Analysis == nil {
		return ""
	}
	return string(it.Analysis.Weaknesses)
}

// Body returns the cleaned content, or the scraped text for raw items.
func (it FAQItem) Body() string {
	if it.Content != "" {
		return it.Content
	}
	return it.HTML
}

// FAQList is the payload of GET /faq.
type FAQList struct {
	Items   []FAQItem `json:"items"`
	Count   int       `json:"count"`
	TimeUTC string    `json:"time_utc"`
}

// RunResult is returned by the pipeline actions.
type RunResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

// Summary formats the counters the way the UI reports them.
func (r RunResult) Summary(action Action) string {
	return fmt.Sprintf("%s OK - created=%d updated=%d skipped=%d errors=%d",
		strings.ToUpper(string(action)), r.Created, r.Updated, r.Skipped, r.Errors)
}

// Action is a backend pipeline step.
type Action string

const (
	ActionScrape  Action = "scrape"
	ActionClean   Action = "clean"
	ActionAnalyze Action = "analyze"
)

// Actions lists the pipeline steps in execution order.
var Actions = []Action{ActionScrape, ActionClean, ActionAnalyze}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %s", s)
}
