// Package faq holds the client-side view logic applied to backend results:
// filtering, ordering and export.
package faq

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

// SortMode orders the filtered list.
type SortMode string

const (
	SortScoreDesc SortMode = "score_desc"
	SortScoreAsc  SortMode = "score_asc"
	SortTitleAsc  SortMode = "title_asc"
	SortTitleDesc SortMode = "title_desc"
)

// SortModes lists the modes in cycling order.
var SortModes = []SortMode{SortScoreDesc, SortScoreAsc, SortTitleAsc, SortTitleDesc}

// Label returns the human-readable name.
func (m SortMode) Label() string {
	switch m {
	case SortScoreDesc:
		return "Score ↓"
	case SortScoreAsc:
		return "Score ↑"
	case SortTitleAsc:
		return "Title A→Z"
	case SortTitleDesc:
		return "Title Z→A"
	}
	return string(m)
}

// Next cycles to the following mode.
func (m SortMode) Next() SortMode {
	for i, mode := range SortModes {
		if mode == m {
			return SortModes[(i+1)%len(SortModes)]
		}
	}
	return SortScoreDesc
}

// ParseSortMode accepts mode names; empty selects the default.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return SortScoreDesc, nil
	}
	for _, mode := range SortModes {
		if string(mode) == s {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown sort mode %q (want one of score_desc, score_asc, title_asc, title_desc)", s)
}

const (
	MinScore = 0
	MaxScore = 100
)

// View is the filter and sort state applied locally.
type View struct {
	Query      string
	MinScore   int
	MaxScore   int
	OnlyScored bool
	Sort       SortMode
}

// DefaultView shows scored items over the whole range, best first.
func DefaultView() View {
	return View{
		MinScore:   MinScore,
		MaxScore:   MaxScore,
		OnlyScored: true,
		Sort:       SortScoreDesc,
	}
}

// Clamp keeps the score range inside 0..100 with min <= max.
func (v View) Clamp() View {
	v.MinScore = clamp(v.MinScore, MinScore, MaxScore)
	v.MaxScore = clamp(v.MaxScore, MinScore, MaxScore)
	if v.MinScore > v.MaxScore {
		v.MinScore, v.MaxScore = v.MaxScore, v.MinScore
	}
	if v.Sort == "" {
		v.Sort = SortScoreDesc
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Apply filters then sorts items without modifying the input slice.
func (v View) Apply(items []api.FAQItem) []api.FAQItem {
	out := Filter(items, v)
	Sort(out, v.Sort)
	return out
}

// Filter keeps the items matching v.
func Filter(items []api.FAQItem, v View) []api.FAQItem {
	v = v.Clamp()
	q := text.NormalizeText(v.Query)
	out := make([]api.FAQItem, 0, len(items))
	for _, it := range items {
		score, ok := it.Score()
		if v.OnlyScored && !ok {
			continue
		}
		if ok && (score < v.MinScore || score > v.MaxScore) {
			continue
		}
		if q != "" && !strings.Contains(text.NormalizeText(searchBlob(it)), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func searchBlob(it api.FAQItem) string {
	return strings.Join([]string{
		it.Title,
		it.Summary(),
		it.Strengths(),
		it.Weaknesses(),
		it.Body(),
		it.URL,
	}, " ")
}

// Sort orders items in place. Scored items always precede unscored ones in
// the score modes; ties keep their backend order.
func Sort(items []api.FAQItem, mode SortMode) {
	switch mode {
	case SortScoreAsc, SortScoreDesc:
		desc := mode == SortScoreDesc
		sort.SliceStable(items, func(i, j int) bool {
			si, oki := items[i].Score()
			sj, okj := items[j].Score()
			if oki != okj {
				return oki
			}
			if !oki {
				return false
			}
			if desc {
				return si > sj
			}
			return si < sj
		})
	case SortTitleAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		})
	case SortTitleDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title) > strings.ToLower(items[j].Title)
		})
	}
}

// Stats summarizes a list for the header.
type Stats struct {
	Total  int
	Scored int
	Mean   float64
}

// Summarize counts scored items and their mean score.
func Summarize(items []api.FAQItem) Stats {
	st := Stats{Total: len(items)}
	sum := 0
	for _, it := range items {
		if s, ok := it.Score(); ok {
			st.Scored++
			sum += s
		}
	}
	if st.Scored > 0 {
		st.Mean = float64(sum) / float64(st.Scored)
	}
	return st
}

// ScoreDelta compares the score of it with prev[it.ID]. It reports false
// when either side is unscored or nothing changed.
func ScoreDelta(prev map[string]int, it api.FAQItem) (int, bool) {
	cur, ok := it.Score()
	if !ok {
		return 0, false
	}
	p, seen := prev[it.ID]
	if !seen || p == cur {
		return 0, false
	}
	return cur - p, true
}
