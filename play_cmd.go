package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/player"
	"github.com/reminderdev/reminder/ui"
)

var (
	arabicURL  string
	englishURL string
	label      string
	autoplay   bool
	continuous bool
	printOnly  bool

	playCmd = &cobra.Command{
		Use:   "play [REF]",
		Short: "Play a verse or a range of verses",
		Long: paragraph(fmt.Sprintf("\n%s a verse such as 2:255 or a range such as 1:1-7. Without a reference the verse of the day is played.",
			keyword("Play"))),
		Example: paragraph("reminder play 2:255\nreminder play 1:1-7 --continuous --autoplay"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPlay,
	}

	dailyCmd = &cobra.Command{
		Use:     "daily [DATE]",
		Short:   "Show the daily reminder and play its verse",
		Long:    paragraph(fmt.Sprintf("\nShow the %s for today or for a date in YYYY-MM-DD form.", keyword("daily reminder"))),
		Example: paragraph("reminder daily\nreminder daily 2024-03-11 --print"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runDaily,
	}
)

func addPlayFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&arabicURL, "arabic", "", "Arabic clip URL or path, played instead of a reference")
	cmd.Flags().StringVar(&englishURL, "english", "", "English clip URL or path, played instead of a reference")
	cmd.Flags().StringVar(&label, "label", "", "label shown next to the language")
	cmd.Flags().BoolVar(&autoplay, "autoplay", false, "start playing as soon as a verse is loaded")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "move on to the next verse of a range when one completes")
}

func init() {
	addPlayFlags(playCmd)
	dailyCmd.Flags().BoolVarP(&printOnly, "print", "p", false, "print the reminder and exit")
	dailyCmd.Flags().BoolVar(&autoplay, "autoplay", false, "start playing as soon as the verse is loaded")
}

func runPlay(cmd *cobra.Command, args []string) error {
	direct := arabicURL != "" || englishURL != ""
	switch {
	case direct && len(args) > 0:
		return errors.New("give either a reference or --arabic/--english, not both")
	case !direct && len(args) == 0:
		return runDaily(cmd, nil)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if direct {
		item := directItem(arabicURL, englishURL, label)
		return a.runTUI(nil, &item)
	}

	ref, err := content.ParseRef(args[0])
	if err != nil {
		return err
	}
	return a.runTUI(ref.Verses(), nil)
}

// directItem builds an item from clip sources given on the command line.
func directItem(arabic, english, label string) ui.Item {
	if label == "" {
		label = "Audio"
	}
	return ui.Item{
		Label:        label,
		Markdown:     "# " + label + "\n",
		PrimaryURL:   arabic,
		SecondaryURL: english,
	}
}

func runDaily(_ *cobra.Command, args []string) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.APITimeout)
	defer cancel()

	var d content.Daily
	if len(args) > 0 {
		d, err = a.content.DailyFor(ctx, args[0])
	} else {
		d, err = a.content.Daily(ctx)
	}
	if err != nil {
		return fmt.Errorf("unable to fetch the daily reminder: %w", err)
	}

	item := ui.Item{Label: "Daily Reminder", Markdown: ui.DailyMarkdown(d)}
	if ref, ok := d.VerseRef(); ok {
		verse, err := a.loadItem(ctx, ref)
		if err != nil {
			return err
		}
		item.Ref = ref
		item.Label = verse.Label
		item.PrimaryURL = verse.PrimaryURL
		item.SecondaryURL = verse.SecondaryURL
		item.Markdown += "\n" + verse.Markdown
	}

	if printOnly || !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg, err := uiConfig()
		if err != nil {
			return err
		}
		out, err := ui.Render(cfg, int(width), item.Markdown) //nolint:gosec
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	return a.runTUI(nil, &item)
}

func uiConfig() (ui.Config, error) {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return ui.Config{}, fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the flag/config value if unset
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = style
	}
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	cfg.Continuous = continuous
	return cfg, nil
}

// tuiPlayerOptions wires the player into the program. A continuous session
// starts each verse as it loads, so --continuous implies --autoplay.
func tuiPlayerOptions(events *ui.Events) player.Options {
	return player.Options{
		AutoPlay:       autoplay || continuous,
		OnPlayStart:    events.Started,
		OnPlayComplete: events.Completed,
		OnChange:       events.Changed,
		OnError:        events.Failed,
	}
}

func (a *app) runTUI(refs []content.Ref, item *ui.Item) error {
	cfg, err := uiConfig()
	if err != nil {
		return err
	}

	events := ui.NewEvents()
	p, err := a.newPlayer(tuiPlayerOptions(events))
	if err != nil {
		return fmt.Errorf("unable to open audio output: %w", err)
	}
	defer func() { _ = p.Close() }()

	deps := ui.Deps{
		Player:  p,
		Events:  events,
		Loader:  a.loadItem,
		History: a.history,
	}
	if _, err := ui.NewProgram(cfg, deps, refs, item).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}
