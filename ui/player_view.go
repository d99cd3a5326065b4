package ui

import (
	"fmt"
	"strings"
	"time"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/reminderdev/reminder/internal/player"
)

const (
	iconPlay      = "▶"
	iconPause     = "⏸"
	iconPrimary   = "«A"
	iconSecondary = "E»"
	iconSound     = "🔊"
	iconMuted     = "🔇"
	volumeSteps   = 10
)

// playerView is everything needed to draw the player panel.
type playerView struct {
	snap         player.Session
	label        string
	hasPrimary   bool
	hasSecondary bool
	spinner      string
	width        int
}

// render draws the panel. A player without sources renders nothing.
func (v playerView) render() string {
	if !v.hasPrimary && !v.hasSecondary {
		return ""
	}
	inner := max(v.width-4, 20)

	lines := []string{
		v.header(inner),
		v.seekBar(inner),
		v.controls(inner),
	}
	return playerBoxStyle.Width(inner + 2).Render(strings.Join(lines, "\n"))
}

// header is "<label> - <language>" on the left and "m:ss / m:ss" on the
// right.
func (v playerView) header(width int) string {
	times := fmt.Sprintf("%s / %s", formatDuration(v.snap.Position), formatDuration(v.snap.Duration))
	title := v.snap.Active.Language()
	if v.label != "" {
		title = v.label + " - " + title
	}

	room := max(width-runewidth.StringWidth(times)-1, 1)
	title = truncate.StringWithTail(title, uint(room), ellipsis) //nolint:gosec
	pad := max(width-runewidth.StringWidth(title)-runewidth.StringWidth(times), 1)

	return headerLabelStyle.Render(title) + strings.Repeat(" ", pad) + headerTimeStyle.Render(times)
}

func (v playerView) seekBar(width int) string {
	filled := int(v.snap.Progress() * float64(width))
	filled = min(max(filled, 0), width)
	return barFilledStyle.Render(strings.Repeat("━", filled)) +
		barEmptyStyle.Render(strings.Repeat("─", width-filled))
}

// controls shows skip-to-Arabic, play/pause and skip-to-English on the
// left and the volume on the right. A skip button is hidden when its
// track has no source and dimmed while that track is playing.
func (v playerView) controls(width int) string {
	var parts []string

	if v.hasPrimary {
		parts = append(parts, v.skipButton(iconPrimary, player.StatePlayingPrimary))
	}

	icon := iconPlay
	if v.snap.Playing {
		icon = iconPause
	}
	if v.snap.Pending && v.spinner != "" {
		icon = v.spinner
	}
	parts = append(parts, controlStyle.Render(icon))

	if v.hasSecondary {
		parts = append(parts, v.skipButton(iconSecondary, player.StatePlayingSecondary))
	}

	left := strings.Join(parts, "  ")
	right := v.volume()

	pad := max(width-ansi.PrintableRuneWidth(left)-ansi.PrintableRuneWidth(right), 1)
	return left + strings.Repeat(" ", pad) + right
}

func (v playerView) skipButton(icon string, playing player.State) string {
	if v.snap.State() == playing {
		return disabledStyle.Render(icon)
	}
	return controlStyle.Render(icon)
}

func (v playerView) volume() string {
	icon := iconSound
	level := int(v.snap.Volume*volumeSteps + 0.5)
	if v.snap.Muted {
		icon = mutedStyle.Render(iconMuted)
		level = 0
	}
	return icon + " " +
		barFilledStyle.Render(strings.Repeat("▮", level)) +
		barEmptyStyle.Render(strings.Repeat("▯", volumeSteps-level))
}

// formatDuration formats a duration as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
