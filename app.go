package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/reminderdev/reminder/internal/audio"
	"github.com/reminderdev/reminder/internal/cache"
	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/history"
	"github.com/reminderdev/reminder/internal/player"
	"github.com/reminderdev/reminder/internal/remote"
	"github.com/reminderdev/reminder/ui"
)

// app holds the long lived collaborators shared by the commands.
type app struct {
	opts    options
	logger  *log.Logger
	clips   *cache.Manager
	history *history.Store
	content *content.Client
	urls    *content.AudioURLs
}

func newApp(o options) (*app, error) {
	logger := log.Default()

	urls, err := content.NewAudioURLs(o.ArabicTemplate, o.EnglishTemplate)
	if err != nil {
		return nil, err
	}

	clips, err := openCache(o)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(o.HistoryPath, logger.WithPrefix("history"))
	if err != nil {
		_ = clips.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	return &app{
		opts:    o,
		logger:  logger,
		clips:   clips,
		history: store,
		content: content.NewClient(o.APIURL, o.APITimeout, logger.WithPrefix("content")),
		urls:    urls,
	}, nil
}

func openCache(o options) (*cache.Manager, error) {
	cfg := cache.DefaultConfig()
	cfg.Dir = o.CacheDir
	cfg.MemoryCapacity = int64(o.CacheMemoryMB) << 20
	cfg.DiskCapacity = int64(o.CacheDiskMB) << 20
	cfg.CompressionLevel = o.CacheCompression
	cfg.TTL = o.CacheTTL

	m, err := cache.NewManager(cfg, log.Default().WithPrefix("cache"))
	if err != nil {
		return nil, fmt.Errorf("open clip cache: %w", err)
	}
	return m, nil
}

func (a *app) Close() error {
	return errors.Join(a.history.Close(), a.clips.Close())
}

// newPlayer opens the audio device and builds a player with one transport
// per language. Saved preferences win over the configured volume.
func (a *app) newPlayer(po player.Options) (*player.Player, error) {
	acfg := audio.DefaultConfig()
	acfg.SampleRate = a.opts.SampleRate
	ac, err := audio.NewContext(acfg)
	if err != nil {
		return nil, err
	}

	fcfg := audio.DefaultFetcherConfig()
	fcfg.RequestsPerMinute = a.opts.RateLimit
	fcfg.UserAgent = "reminder/" + Version
	fetcher := audio.NewFetcher(fcfg, a.clips, a.logger.WithPrefix("fetch"))

	primary := audio.NewTransport(ac, fetcher, a.logger.WithPrefix("arabic"))
	secondary := audio.NewTransport(ac, fetcher, a.logger.WithPrefix("english"))

	po.AutoPlay = po.AutoPlay || a.opts.AutoPlay
	po.Logger = a.logger.WithPrefix("player")
	p := player.New(primary, secondary, po)

	fallback := history.DefaultPreferences()
	fallback.Volume = a.opts.Volume
	prefs, err := a.history.LoadPreferences(fallback)
	if err != nil {
		a.logger.Warn("Could not load preferences", "err", err)
	}
	p.SetVolume(prefs.Volume)
	p.SetMuted(prefs.Muted)
	return p, nil
}

// loadItem resolves a verse into text and clip URLs. The clips still play
// when the text cannot be fetched.
func (a *app) loadItem(ctx context.Context, ref content.Ref) (ui.Item, error) {
	ar, en, err := a.urls.For(ref)
	if err != nil {
		return ui.Item{}, err
	}
	item := ui.Item{
		Ref:          ref,
		Label:        ref.String(),
		Markdown:     "# " + ref.String() + "\n",
		PrimaryURL:   ar,
		SecondaryURL: en,
	}

	v, err := a.content.Verse(ctx, ref)
	if err != nil {
		a.logger.Warn("Could not fetch verse text", "ref", ref, "err", err)
		return item, nil
	}
	item.Label = v.Label()
	item.Markdown = ui.VerseMarkdown(v)
	return item, nil
}

// resolve serves load-by-reference requests of remote clients.
func (a *app) resolve(ctx context.Context, s string) (remote.LoadData, error) {
	ref, err := content.ParseRef(s)
	if err != nil {
		return remote.LoadData{}, err
	}
	item, err := a.loadItem(ctx, ref)
	if err != nil {
		return remote.LoadData{}, err
	}
	return remote.LoadData{
		Ref:          ref.String(),
		PrimaryURL:   item.PrimaryURL,
		SecondaryURL: item.SecondaryURL,
		Label:        item.Label,
	}, nil
}
