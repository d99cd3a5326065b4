// Package ui provides the terminal player for the reminder application.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/history"
	"github.com/reminderdev/reminder/internal/player"
)

const (
	statusMessageTimeout = time.Second * 3
	statusBarHeight      = 1
	opTimeout            = time.Minute
)

// Player is the part of *player.Player the UI drives.
type Player interface {
	HasTrack(t player.Track) bool
	Snapshot() player.Session
	Label() string
	SetSources(primaryURL, secondaryURL, label string)
	TogglePlay(ctx context.Context) error
	Skip(ctx context.Context, target player.Track) error
	Seek(pos time.Duration) error
	SetVolume(v float64)
	ToggleMute()
}

// History records listening sessions and preferences. Optional.
type History interface {
	RecordStart(e history.Entry) error
	RecordComplete(ref string) error
	SavePreferences(p history.Preferences) error
}

// Item is one verse ready to be shown and played.
type Item struct {
	Ref          content.Ref
	Label        string
	Markdown     string
	PrimaryURL   string
	SecondaryURL string
}

// Loader resolves a reference into an Item.
type Loader func(ctx context.Context, ref content.Ref) (Item, error)

// Deps are the collaborators of the program.
type Deps struct {
	Player  Player
	Events  *Events
	Loader  Loader
	History History
}

// NewProgram returns a new Tea program. With refs the items are loaded
// through the loader one at a time; otherwise item is shown as is.
func NewProgram(cfg Config, deps Deps, refs []content.Ref, item *Item) *tea.Program {
	log.Debug("Starting reminder", "refs", len(refs), "glamour", cfg.GlamourEnabled)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps, refs, item), opts...)
}

type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common *commonModel
	deps   Deps

	refs    []content.Ref
	index   int
	item    Item
	loaded  bool
	loading bool

	snap player.Session

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	fatalErr error
}

func newModel(cfg Config, deps Deps, refs []content.Ref, item *Item) model {
	cfg.GlamourStyle = resolveStyle(cfg.GlamourStyle)
	if cfg.SeekStep <= 0 {
		cfg.SeekStep = 5 * time.Second
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = 0.1
	}
	if deps.Events == nil {
		deps.Events = NewEvents()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = controlStyle

	m := model{
		common:   &commonModel{cfg: cfg},
		deps:     deps,
		refs:     refs,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		snap:     deps.Player.Snapshot(),
	}
	m.keys.setRange(len(refs) > 1)

	if item != nil {
		m.item = *item
		m.loaded = true
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.deps.Events.wait()}

	switch {
	case m.loaded:
		m.deps.Player.SetSources(m.item.PrimaryURL, m.item.SecondaryURL, m.item.Label)
	case len(m.refs) > 0 && m.deps.Loader != nil:
		cmds = append(cmds, loadItemCmd(m.deps.Loader, 0, m.refs[0], opTimeout))
	default:
		return func() tea.Msg { return errMsg{errors.New("nothing to play")} }
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, m.quit()
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.setSize()
		if m.loaded {
			cmds = append(cmds, renderWithGlamour(m, m.item.Markdown))
		}

	case itemLoadedMsg:
		m.loading = false
		if msg.err != nil {
			log.Error("could not load verse", "ref", m.refs[msg.index], "err", msg.err)
			if !m.loaded {
				m.fatalErr = msg.err
				return m, nil
			}
			return m, m.showStatusMessage("Could not load "+m.refs[msg.index].String(), true)
		}
		m.index = msg.index
		m.item = msg.item
		m.loaded = true
		m.viewport.GotoTop()
		m.deps.Player.SetSources(msg.item.PrimaryURL, msg.item.SecondaryURL, msg.item.Label)
		m.snap = m.deps.Player.Snapshot()
		cmds = append(cmds, renderWithGlamour(m, m.item.Markdown))

	case contentRenderedMsg:
		m.viewport.SetContent(string(msg))

	case playerChangedMsg:
		m.snap = player.Session(msg)
		cmds = append(cmds, m.deps.Events.wait())

	case sequenceStartedMsg:
		m.recordStart()
		cmds = append(cmds, m.deps.Events.wait())

	case sequenceCompletedMsg:
		m.recordComplete()
		cmds = append(cmds, m.deps.Events.wait())
		if m.common.cfg.Continuous && m.index+1 < len(m.refs) {
			cmds = append(cmds, m.loadIndex(m.index+1))
		}

	case playerFailedMsg:
		m.snap = m.deps.Player.Snapshot()
		cmds = append(cmds, m.deps.Events.wait(), m.showStatusMessage(describeError(msg.err), true))

	case opDoneMsg:
		m.snap = m.deps.Player.Snapshot()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			cmds = append(cmds, m.showStatusMessage(describeError(msg.err), true))
		}

	case statusTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.snap = m.deps.Player.Snapshot()
		return m, cmd

	case errMsg:
		m.fatalErr = msg
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey applies a key press. It reports false for keys the viewport
// should see.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	p := m.deps.Player
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m.quit(), true

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize()
		return nil, true

	case !m.loaded:
		return nil, true

	case key.Matches(msg, k.Toggle):
		return togglePlayCmd(p, opTimeout), true

	case key.Matches(msg, k.SkipPrimary):
		if !p.HasTrack(player.TrackPrimary) || m.snap.State() == player.StatePlayingPrimary {
			return nil, true
		}
		return skipCmd(p, player.TrackPrimary, opTimeout), true

	case key.Matches(msg, k.SkipSecondary):
		if !p.HasTrack(player.TrackSecondary) || m.snap.State() == player.StatePlayingSecondary {
			return nil, true
		}
		return skipCmd(p, player.TrackSecondary, opTimeout), true

	case key.Matches(msg, k.SeekBack), key.Matches(msg, k.SeekForward):
		step := m.common.cfg.SeekStep
		if key.Matches(msg, k.SeekBack) {
			step = -step
		}
		if err := p.Seek(m.snap.Position + step); err != nil && !errors.Is(err, player.ErrNoActiveTrack) {
			return m.showStatusMessage(describeError(err), true), true
		}
		m.snap = p.Snapshot()
		return nil, true

	case key.Matches(msg, k.VolumeUp), key.Matches(msg, k.VolumeDown):
		step := m.common.cfg.VolumeStep
		if key.Matches(msg, k.VolumeDown) {
			step = -step
		}
		p.SetVolume(m.snap.Volume + step)
		m.snap = p.Snapshot()
		return nil, true

	case key.Matches(msg, k.Mute):
		p.ToggleMute()
		m.snap = p.Snapshot()
		return nil, true

	case key.Matches(msg, k.Next):
		if m.loading || m.index+1 >= len(m.refs) {
			return nil, true
		}
		return m.loadIndex(m.index + 1), true

	case key.Matches(msg, k.Prev):
		if m.loading || m.index == 0 {
			return nil, true
		}
		return m.loadIndex(m.index - 1), true

	case key.Matches(msg, k.Copy):
		text := m.clipboardText()
		termenv.Copy(text)
		_ = clipboard.WriteAll(text)
		return m.showStatusMessage("Copied "+m.item.Label, false), true
	}

	return nil, false
}

func (m *model) loadIndex(i int) tea.Cmd {
	m.loading = true
	return loadItemCmd(m.deps.Loader, i, m.refs[i], opTimeout)
}

func (m *model) quit() tea.Cmd {
	if h := m.deps.History; h != nil {
		snap := m.deps.Player.Snapshot()
		if err := h.SavePreferences(history.Preferences{Volume: snap.Volume, Muted: snap.Muted}); err != nil {
			log.Warn("could not save preferences", "err", err)
		}
	}
	m.deps.Events.Close()
	return tea.Quit
}

func (m *model) recordStart() {
	if m.deps.History == nil {
		return
	}
	err := m.deps.History.RecordStart(history.Entry{
		Ref:          m.historyRef(),
		Label:        m.item.Label,
		PrimaryURL:   m.item.PrimaryURL,
		SecondaryURL: m.item.SecondaryURL,
	})
	if err != nil {
		log.Warn("could not record history", "err", err)
	}
}

func (m *model) recordComplete() {
	if m.deps.History == nil {
		return
	}
	if err := m.deps.History.RecordComplete(m.historyRef()); err != nil {
		log.Warn("could not record completion", "err", err)
	}
}

// historyRef names the item in the history. Items without a verse
// reference use their label.
func (m model) historyRef() string {
	if m.item.Ref.Chapter > 0 {
		return m.item.Ref.String()
	}
	return m.item.Label
}

func (m model) clipboardText() string {
	lines := []string{m.item.Label}
	for _, u := range []string{m.item.PrimaryURL, m.item.SecondaryURL} {
		if u != "" {
			lines = append(lines, u)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) setSize() {
	m.help.Width = m.common.width
	h := m.common.height - statusBarHeight - lineCount(m.playerView()) - lineCount(m.help.View(m.keys))
	m.viewport.Width = m.common.width
	m.viewport.Height = max(h, 0)
}

func (m model) playerView() string {
	spin := ""
	if m.snap.Pending || m.loading {
		spin = m.spinner.View()
	}
	return playerView{
		snap:         m.snap,
		label:        m.deps.Player.Label(),
		hasPrimary:   m.deps.Player.HasTrack(player.TrackPrimary),
		hasSecondary: m.deps.Player.HasTrack(player.TrackSecondary),
		spinner:      spin,
		width:        m.common.width,
	}.render()
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	if !m.loaded {
		return "\n  " + m.spinner.View() + " Loading…"
	}

	var b strings.Builder
	fmt.Fprintln(&b, m.viewport.View())
	if pv := m.playerView(); pv != "" {
		fmt.Fprintln(&b, pv)
	}
	m.statusBarView(&b)
	if m.help.ShowAll {
		fmt.Fprint(&b, "\n"+m.help.View(m.keys))
	}
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()
	helpNote := statusBarHelpStyle(" ? Help ")

	note := m.item.Label
	if len(m.refs) > 1 {
		note = fmt.Sprintf("%s (%d/%d)", note, m.index+1, len(m.refs))
	}
	style := statusBarNoteStyle
	if m.statusMessage != "" {
		note = m.statusMessage
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	}

	room := max(0, m.common.width-ansi.PrintableRuneWidth(logo)-ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(room), ellipsis) //nolint:gosec
	padding := max(0, room-ansi.PrintableRuneWidth(note))

	fmt.Fprintf(b, "%s%s%s%s", logo, style(note), style(strings.Repeat(" ", padding)), helpNote)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// describeError turns player errors into a short status line.
func describeError(err error) string {
	var perr *player.Error
	switch {
	case errors.As(err, &perr) && perr.Code == player.CodeRejected:
		return fmt.Sprintf("Could not play %s audio: %v", perr.Track.Language(), perr.Err)
	case errors.As(err, &perr) && perr.Code == player.CodeTransport:
		return fmt.Sprintf("Playback of %s audio stopped: %v", perr.Track.Language(), perr.Err)
	case errors.Is(err, player.ErrClosed):
		return "The player has shut down"
	case errors.Is(err, player.ErrTrackUnavailable):
		return "That track is not available"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for audio"
	default:
		return err.Error()
	}
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
