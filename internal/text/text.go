// Package text formats backend FAQ data for display.
package text

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
)

// PreviewChars is the content preview length used when full content is hidden.
const PreviewChars = 1400

var strict = bluemonday.StrictPolicy()

// NormalizeText lowercases s, collapses Unicode whitespace runs (including
// non-breaking spaces) and trims it.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ShortText truncates s to max runes, ending with "..." when cut. A
// non-positive max yields "".
func ShortText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimRight(string(r[:max-3]), " \t\r\n") + "..."
}

// StripHTML removes markup from backend-provided strings.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(strict.Sanitize(s))
}

// BadgeLevel buckets a score for coloring.
type BadgeLevel string

const (
	BadgeGreen  BadgeLevel = "green"
	BadgeOrange BadgeLevel = "orange"
	BadgeRed    BadgeLevel = "red"
	BadgeGray   BadgeLevel = "gray"
)

// Badge returns the level and label for a score.
func Badge(score int, ok bool) (BadgeLevel, string) {
	if !ok {
		return BadgeGray, "Not scored"
	}
	label := fmt.Sprintf("Score %d", score)
	switch {
	case score >= 70:
		return BadgeGreen, label
	case score >= 40:
		return BadgeOrange, label
	default:
		return BadgeRed, label
	}
}

// ItemBadge is Badge applied to an item.
func ItemBadge(it api.FAQItem) (BadgeLevel, string) {
	return Badge(it.Score())
}

// Title returns a displayable title.
func Title(it api.FAQItem) string {
	if t := strings.TrimSpace(StripHTML(it.Title)); t != "" {
		return t
	}
	return "Untitled"
}

// DetailOptions mirror the display toggles of the UI.
type DetailOptions struct {
	ShowWeaknesses  bool
	ShowFullContent bool
}

// ItemMarkdown renders a full markdown page for one item.
func ItemMarkdown(it api.FAQItem, opts DetailOptions) string {
	var b strings.Builder
	_, label := ItemBadge(it)
	fmt.Fprintf(&b, "# %s\n\n", Title(it))
	fmt.Fprintf(&b, "**%s**", label)
	if it.WordCount != nil {
		fmt.Fprintf(&b, " | %d words", *it.WordCount)
	}
	b.WriteString("\n\n")
	if it.URL != "" {
		fmt.Fprintf(&b, "<%s>\n\n", it.URL)
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(orDash(StripHTML(it.Summary())) + "\n\n")
	b.WriteString("## Strengths\n\n")
	b.WriteString(orDash(StripHTML(it.Strengths())) + "\n\n")
	b.WriteString("## Weaknesses\n\n")
	if opts.ShowWeaknesses {
		b.WriteString(orDash(StripHTML(it.Weaknesses())) + "\n\n")
	} else {
		b.WriteString("_Weaknesses are hidden._\n\n")
	}
	b.WriteString("## Content\n\n")
	b.WriteString(ContentText(it, opts) + "\n")
	return b.String()
}

// ContentText returns the preview or the full body.
func ContentText(it api.FAQItem, opts DetailOptions) string {
	body := StripHTML(it.Body())
	if opts.ShowFullContent {
		return body
	}
	return ShortText(body, PreviewChars)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Renderer turns markdown into terminal output.
type Renderer interface {
	Render(md string) (string, error)
}

// NewGlamourRenderer returns a word-wrapping markdown renderer.
func NewGlamourRenderer(width int) (Renderer, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// plainRenderer is a deterministic offline renderer used as fallback.
type plainRenderer struct{}

// NewPlainRenderer returns markdown unchanged.
func NewPlainRenderer() Renderer { return plainRenderer{} }

func (plainRenderer) Render(md string) (string, error) { return md, nil }

// WithFallback returns a renderer that prefers primary and falls back to backup on error.
func WithFallback(primary, fallback Renderer) Renderer {
	return &fallbackRenderer{p: primary, f: fallback}
}

type fallbackRenderer struct{ p, f Renderer }

func (r *fallbackRenderer) Render(md string) (string, error) {
	if r.p == nil {
		return r.f.Render(md)
	}
	if s, err := r.p.Render(md); err == nil {
		return s, nil
	}
	return r.f.Render(md)
}
