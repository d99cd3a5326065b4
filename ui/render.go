package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/reminderdev/reminder/internal/content"
)

func renderWithGlamour(m model, md string) tea.Cmd {
	width := m.viewport.Width
	cfg := m.common.cfg
	return func() tea.Msg {
		s, err := glamourRender(cfg, width, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

func glamourRender(cfg Config, viewportWidth int, markdown string) (string, error) {
	if !cfg.GlamourEnabled {
		return markdown, nil
	}

	width := viewportWidth
	if cfg.GlamourMaxWidth > 0 {
		width = min(int(cfg.GlamourMaxWidth), viewportWidth) //nolint:gosec
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamourStyle(cfg.GlamourStyle),
		glamour.WithWordWrap(max(width, 0)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// Render renders markdown for output outside the program, such as
// printing to a pipe.
func Render(cfg Config, width int, markdown string) (string, error) {
	cfg.GlamourStyle = resolveStyle(cfg.GlamourStyle)
	return glamourRender(cfg, width, markdown)
}

// VerseMarkdown formats a verse for the viewport: the Arabic text, the
// translation and, when present, the word by word breakdown.
func VerseMarkdown(v content.Verse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", v.Label())
	if v.Arabic != "" {
		fmt.Fprintf(&b, "%s\n\n", v.Arabic)
	}
	if v.Text != "" {
		fmt.Fprintf(&b, "> %s\n\n", v.Text)
	}
	if len(v.Words) > 0 {
		b.WriteString("| Arabic | Transliteration | English |\n|---|---|---|\n")
		for _, w := range v.Words {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", w.Arabic, w.Transliteration, w.English)
		}
	}
	return b.String()
}

// DailyMarkdown formats the daily reminder.
func DailyMarkdown(d content.Daily) string {
	var b strings.Builder
	title := "Daily Reminder"
	if d.Date != "" {
		title += " · " + d.Date
	}
	if d.Hijri != "" {
		title += " · " + d.Hijri
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if d.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Message)
	}
	for _, section := range []struct{ name, text string }{
		{"Verse", d.Verse},
		{"Hadith", d.Hadith},
		{"Name of Allah", d.Name},
	} {
		if section.text == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.name, section.text)
	}
	return b.String()
}
