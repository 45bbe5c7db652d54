package chattui

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the chat view color tokens (ANSI-256 codes).
type Theme struct {
	Name string

	Foreground string
	Muted      string
	Accent     string
	Border     string

	OwnCard     string
	OtherCard   string
	DatePill    string
	Pending     string
	Failed      string
	Header      string
	Footer      string
	NamePalette []string
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:        "default",
	Foreground:  "252",
	Muted:       "245",
	Accent:      "75",
	Border:      "240",
	OwnCard:     "81",
	OtherCard:   "147",
	DatePill:    "238",
	Pending:     "220",
	Failed:      "203",
	Header:      "111",
	Footer:      "110",
	NamePalette: []string{"33", "45", "69", "99", "111", "147", "183", "189"},
}

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name:        "high-contrast",
	Foreground:  "231",
	Muted:       "250",
	Accent:      "51",
	Border:      "231",
	OwnCard:     "87",
	OtherCard:   "225",
	DatePill:    "16",
	Pending:     "226",
	Failed:      "196",
	Header:      "117",
	Footer:      "159",
	NamePalette: []string{"51", "87", "159", "195", "225", "229"},
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// ThemeByName falls back to DefaultTheme for unknown names.
func ThemeByName(name string) Theme {
	if t, ok := Themes[strings.TrimSpace(name)]; ok {
		return t
	}
	return DefaultTheme
}

type styles struct {
	header    lipgloss.Style
	status    lipgloss.Style
	footer    lipgloss.Style
	muted     lipgloss.Style
	empty     lipgloss.Style
	datePill  lipgloss.Style
	ownCard   lipgloss.Style
	otherCard lipgloss.Style
	ownName   lipgloss.Style
	timestamp lipgloss.Style
	body      lipgloss.Style
	pending   lipgloss.Style
	failed    lipgloss.Style
	errorLine lipgloss.Style
	input     lipgloss.Style

	names []string
}

func newStyles(t Theme) styles {
	return styles{
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Header)).Bold(true),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		footer:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Footer)),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		empty:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)).Italic(true),
		datePill:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Foreground)).Background(lipgloss.Color(t.DatePill)).Padding(0, 1),
		ownCard:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.OwnCard)).Padding(0, 1),
		otherCard: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.OtherCard)).Padding(0, 1),
		ownName:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.OwnCard)).Bold(true),
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		body:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Foreground)),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Pending)).Italic(true),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Failed)).Bold(true),
		errorLine: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Failed)),
		input:     lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(lipgloss.Color(t.Border)),
		names:     append([]string(nil), t.NamePalette...),
	}
}

// nameStyle gives each participant a stable color.
func (s styles) nameStyle(name string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	if len(s.names) == 0 {
		return style
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return style.Foreground(lipgloss.Color(s.names[h.Sum32()%uint32(len(s.names))]))
}
