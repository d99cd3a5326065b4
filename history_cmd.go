package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/reminderdev/reminder/internal/history"
)

var (
	historyLimit int
	historyClear bool

	historyCmd = &cobra.Command{
		Use:     "history",
		Short:   "List recently played verses",
		Long:    paragraph(fmt.Sprintf("\nList the %s, newest first. Completed sessions are marked with a check.", keyword("listening history"))),
		Example: paragraph("reminder history\nreminder history --limit 50\nreminder history --clear"),
		Args:    cobra.NoArgs,
		RunE:    runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 shows all)")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the history and keep preferences")
}

func runHistory(*cobra.Command, []string) error {
	store, err := history.Open(opts.HistoryPath, nil)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	if historyClear {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("History cleared.")
		return nil
	}

	entries, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, entries)
	return nil
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, subtle("Nothing played yet."))
		return
	}

	refWidth := 0
	for _, e := range entries {
		refWidth = max(refWidth, lipgloss.Width(e.Ref))
	}
	for _, e := range entries {
		mark := " "
		if e.Done() {
			mark = keyword("✓")
		}
		label := ""
		if e.Label != e.Ref {
			label = e.Label
		}
		ref := lipgloss.NewStyle().Width(refWidth).Render(e.Ref)
		_, _ = fmt.Fprintf(w, "%s %s  %s %s\n", mark, ref, label, subtle(humanize.Time(e.Started)))
	}
}
