package ui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/text"
)

type palette struct {
	Surface lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Accent  lipgloss.Color
	Border  lipgloss.Color
	Good    lipgloss.Color
	Fair    lipgloss.Color
	Poor    lipgloss.Color
	Unset   lipgloss.Color
}

var palettes = map[string]palette{
	"catppuccin": {
		Surface: lipgloss.Color("#313244"),
		Text:    lipgloss.Color("#cdd6f4"),
		Muted:   lipgloss.Color("#a6adc8"),
		Accent:  lipgloss.Color("#cba6f7"),
		Border:  lipgloss.Color("#585b70"),
		Good:    lipgloss.Color("#a6e3a1"),
		Fair:    lipgloss.Color("#fab387"),
		Poor:    lipgloss.Color("#f38ba8"),
		Unset:   lipgloss.Color("#7f849c"),
	},
	"dracula": {
		Surface: lipgloss.Color("#343746"),
		Text:    lipgloss.Color("#f8f8f2"),
		Muted:   lipgloss.Color("#6272a4"),
		Accent:  lipgloss.Color("#ff79c6"),
		Border:  lipgloss.Color("#44475a"),
		Good:    lipgloss.Color("#50fa7b"),
		Fair:    lipgloss.Color("#ffb86c"),
		Poor:    lipgloss.Color("#ff5555"),
		Unset:   lipgloss.Color("#6272a4"),
	},
	"gruvbox": {
		Surface: lipgloss.Color("#3c3836"),
		Text:    lipgloss.Color("#ebdbb2"),
		Muted:   lipgloss.Color("#a89984"),
		Accent:  lipgloss.Color("#fabd2f"),
		Border:  lipgloss.Color("#665c54"),
		Good:    lipgloss.Color("#b8bb26"),
		Fair:    lipgloss.Color("#fe8019"),
		Poor:    lipgloss.Color("#fb4934"),
		Unset:   lipgloss.Color("#928374"),
	},
	"solarized_dark": {
		Surface: lipgloss.Color("#073642"),
		Text:    lipgloss.Color("#fdf6e3"),
		Muted:   lipgloss.Color("#93a1a1"),
		Accent:  lipgloss.Color("#268bd2"),
		Border:  lipgloss.Color("#586e75"),
		Good:    lipgloss.Color("#859900"),
		Fair:    lipgloss.Color("#cb4b16"),
		Poor:    lipgloss.Color("#dc322f"),
		Unset:   lipgloss.Color("#657b83"),
	},
}

func paletteFor(name string) palette {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes["catppuccin"]
}

// ThemeNames lists the built-in palettes.
func ThemeNames() []string {
	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func nextThemeName(current string, step int) string {
	names := ThemeNames()
	if len(names) == 0 {
		return current
	}
	idx := 0
	for i, name := range names {
		if name == current {
			idx = i
			break
		}
	}
	idx = (idx + step) % len(names)
	if idx < 0 {
		idx += len(names)
	}
	return names[idx]
}

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	muted    lipgloss.Style
	accent   lipgloss.Style
	selected lipgloss.Style
	panel    lipgloss.Style
	ok       lipgloss.Style
	errText  lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	metric   lipgloss.Style
	badges   map[text.BadgeLevel]lipgloss.Style
}

func newStyles(p palette) styles {
	badge := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1e1e2e")).Background(c).Padding(0, 1)
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		subtitle: lipgloss.NewStyle().Italic(true).Foreground(p.Muted),
		muted:    lipgloss.NewStyle().Foreground(p.Muted),
		accent:   lipgloss.NewStyle().Foreground(p.Accent),
		selected: lipgloss.NewStyle().Bold(true).Foreground(p.Text).Background(p.Surface),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1),
		ok:       lipgloss.NewStyle().Bold(true).Foreground(p.Good),
		errText:  lipgloss.NewStyle().Bold(true).Foreground(p.Poor),
		tab:      lipgloss.NewStyle().Foreground(p.Muted).Padding(0, 1),
		tabOn:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Underline(true).Padding(0, 1),
		metric:   lipgloss.NewStyle().Bold(true).Foreground(p.Text),
		badges: map[text.BadgeLevel]lipgloss.Style{
			text.BadgeGreen:  badge(p.Good),
			text.BadgeOrange: badge(p.Fair),
			text.BadgeRed:    badge(p.Poor),
			text.BadgeGray:   badge(p.Unset),
		},
	}
}

func (s styles) badge(level text.BadgeLevel, label string) string {
	st, ok := s.badges[level]
	if !ok {
		st = s.badges[text.BadgeGray]
	}
	return st.Render(label)
}
