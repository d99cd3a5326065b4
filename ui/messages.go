package ui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/player"
)

type (
	errMsg             struct{ err error }
	contentRenderedMsg string
	statusTimeoutMsg   struct{}

	playerChangedMsg     player.Session
	sequenceStartedMsg   struct{}
	sequenceCompletedMsg struct{}
	playerFailedMsg      struct{ err error }

	// opDoneMsg reports the result of a player operation run as a command.
	opDoneMsg struct {
		op  string
		err error
	}

	itemLoadedMsg struct {
		index int
		item  Item
		err   error
	}
)

func (e errMsg) Error() string { return e.err.Error() }

// Events carries player callbacks into the program. Wire its methods into
// player.Options before the program starts.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewEvents creates an event bridge.
func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// Changed forwards a snapshot. Snapshots are dropped when the program
// falls behind; the view also polls the player on every tick.
func (e *Events) Changed(s player.Session) {
	select {
	case e.ch <- playerChangedMsg(s):
	default:
	}
}

// Started forwards the start of a sequence.
func (e *Events) Started() {
	e.deliver(sequenceStartedMsg{})
}

// Completed forwards the natural end of a sequence.
func (e *Events) Completed() {
	e.deliver(sequenceCompletedMsg{})
}

// Failed forwards a playback failure the player reported on its own.
func (e *Events) Failed(err error) {
	e.deliver(playerFailedMsg{err})
}

// Close stops delivery. Pending callbacks return immediately.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) deliver(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// wait returns the next player event.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

// COMMANDS

func togglePlayCmd(p Player, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{op: "play", err: p.TogglePlay(ctx)}
	}
}

func skipCmd(p Player, track player.Track, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{op: "skip", err: p.Skip(ctx, track)}
	}
}

func loadItemCmd(loader Loader, index int, ref content.Ref, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		item, err := loader(ctx, ref)
		return itemLoadedMsg{index: index, item: item, err: err}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusTimeoutMsg{}
	}
}
