package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/reminderdev/reminder/internal/cache"
	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/history"
	"github.com/reminderdev/reminder/ui"
)

func validOptions(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	return options{
		APIURL:           content.DefaultBaseURL,
		APITimeout:       time.Second,
		ArabicTemplate:   content.DefaultArabicTemplate,
		EnglishTemplate:  content.DefaultEnglishTemplate,
		SampleRate:       44100,
		RateLimit:        120,
		Volume:           1,
		CacheDir:         dir + "/clips",
		CacheMemoryMB:    64,
		CacheDiskMB:      512,
		CacheCompression: 1,
		HistoryPath:      dir + "/history.db",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *options)
		wantErr string
	}{
		{"valid", func(*options) {}, ""},
		{"relative api url", func(o *options) { o.APIURL = "reminder.dev" }, "api.url"},
		{"bad sample rate", func(o *options) { o.SampleRate = 22050 }, "sample_rate"},
		{"negative rate limit", func(o *options) { o.RateLimit = -1 }, "rate_limit"},
		{"volume too high", func(o *options) { o.Volume = 1.5 }, "player.volume"},
		{"no memory cache", func(o *options) { o.CacheMemoryMB = 0 }, "memory_mb"},
		{"huge disk cache", func(o *options) { o.CacheDiskMB = 1 << 20 }, "disk_mb"},
		{"compression level", func(o *options) { o.CacheCompression = 23 }, "compression"},
		{"broken template", func(o *options) { o.ArabicTemplate = "{{.Chapter" }, "template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions(t)
			tt.modify(&o)
			err := validateConfig(&o)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validateConfig failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_DefaultPaths(t *testing.T) {
	o := validOptions(t)
	o.CacheDir = ""
	o.HistoryPath = ""
	o.APITimeout = 0
	if err := validateConfig(&o); err != nil {
		t.Fatalf("validateConfig failed: %v", err)
	}
	if !strings.HasSuffix(o.CacheDir, "clips") {
		t.Errorf("cache dir = %q", o.CacheDir)
	}
	if !strings.HasSuffix(o.HistoryPath, "history.db") {
		t.Errorf("history path = %q", o.HistoryPath)
	}
	if o.APITimeout <= 0 {
		t.Error("api timeout should get a default")
	}
}

func TestDirectItem(t *testing.T) {
	item := directItem("a.mp3", "", "")
	if item.Label != "Audio" || item.PrimaryURL != "a.mp3" || item.SecondaryURL != "" {
		t.Errorf("directItem = %+v", item)
	}
	if item := directItem("", "b.mp3", "Test"); item.Label != "Test" || !strings.Contains(item.Markdown, "Test") {
		t.Errorf("directItem = %+v", item)
	}
}

func TestPrintHistory(t *testing.T) {
	var b bytes.Buffer
	printHistory(&b, nil)
	if !strings.Contains(b.String(), "Nothing played yet") {
		t.Errorf("empty history = %q", b.String())
	}

	b.Reset()
	printHistory(&b, []history.Entry{
		{Ref: "2:255", Label: "Al-Baqarah 2:255", Started: time.Now().Add(-time.Hour), Completed: time.Now()},
		{Ref: "Audio", Label: "Audio", Started: time.Now().Add(-48 * time.Hour)},
	})
	out := b.String()
	for _, want := range []string{"2:255", "Al-Baqarah 2:255", "1 hour ago", "2 days ago", "✓"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCacheStats(t *testing.T) {
	var b bytes.Buffer
	stats := cache.ManagerStats{Disk: cache.Stats{Capacity: 512 << 20}}
	entries := []cache.Entry{
		{Key: "a", Stored: 300_000, Created: time.Now().Add(-2 * time.Hour)},
		{Key: "b", Stored: 200_000, Created: time.Now()},
	}
	printCacheStats(&b, "/tmp/clips", stats, entries)

	out := b.String()
	for _, want := range []string{"/tmp/clips", "2 clips", "500 kB", "537 MB", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("cache stats missing %q:\n%s", want, out)
		}
	}
}

func TestTuiPlayerOptions_ContinuousImpliesAutoplay(t *testing.T) {
	t.Cleanup(func() { autoplay, continuous = false, false })
	events := ui.NewEvents()
	defer events.Close()

	tests := []struct {
		autoplay, continuous, want bool
	}{
		{false, false, false},
		{true, false, true},
		{false, true, true},
		{true, true, true},
	}
	for _, tt := range tests {
		autoplay, continuous = tt.autoplay, tt.continuous
		po := tuiPlayerOptions(events)
		if po.AutoPlay != tt.want {
			t.Errorf("autoplay=%v continuous=%v: AutoPlay = %v, want %v", tt.autoplay, tt.continuous, po.AutoPlay, tt.want)
		}
		if po.OnError == nil || po.OnPlayComplete == nil {
			t.Error("player callbacks must be wired to the program")
		}
	}
}
