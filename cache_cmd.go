package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/reminderdev/reminder/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the clip cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the clip cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m, err := openCache(opts)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			printCacheStats(os.Stdout, m.Dir(), m.Stats(), m.Entries())
			return nil
		},
	}

	pruneAge time.Duration

	cacheClearCmd = &cobra.Command{
		Use:     "clear",
		Short:   "Delete cached clips",
		Example: paragraph("reminder cache clear\nreminder cache clear --older-than 168h"),
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m, err := openCache(opts)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if pruneAge > 0 {
				n := m.Prune(pruneAge)
				fmt.Printf("Removed %s older than %s.\n", clipCount(n), pruneAge)
				return nil
			}

			size := m.Stats().Disk.Size
			if err := m.Clear(); err != nil {
				return err
			}
			fmt.Printf("Freed %s.\n", humanize.Bytes(uint64(size))) //nolint:gosec
			return nil
		},
	}
)

func init() {
	cacheClearCmd.Flags().DurationVar(&pruneAge, "older-than", 0, "only remove clips stored longer ago than this")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

func printCacheStats(w io.Writer, dir string, s cache.ManagerStats, entries []cache.Entry) {
	var stored int64
	var oldest time.Time
	for _, e := range entries {
		stored += e.Stored
		if oldest.IsZero() || e.Created.Before(oldest) {
			oldest = e.Created
		}
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", keyword("Directory:"), dir)
	_, _ = fmt.Fprintf(w, "%s %s in %s of %s\n", keyword("Disk:"),
		clipCount(len(entries)),
		humanize.Bytes(uint64(stored)),          //nolint:gosec
		humanize.Bytes(uint64(s.Disk.Capacity))) //nolint:gosec
	if !oldest.IsZero() {
		_, _ = fmt.Fprintf(w, "%s %s\n", keyword("Oldest:"), humanize.Time(oldest))
	}
}

func clipCount(n int) string {
	if n == 1 {
		return "1 clip"
	}
	return humanize.Comma(int64(n)) + " clips"
}
