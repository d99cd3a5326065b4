package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/time/rate"

	"github.com/reminderdev/reminder/internal/cache"
)

// maxClipSize bounds a single download. Verse recitations are well
// under a megabyte; anything this large is not a clip.
const maxClipSize = 64 << 20

// ErrClipTooLarge is returned when a clip exceeds maxClipSize.
var ErrClipTooLarge = errors.New("clip too large")

// ClipCache stores raw clip bytes. *cache.Manager implements it.
type ClipCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// RequestsPerMinute limits HTTP downloads. Zero disables the limit.
	RequestsPerMinute int
	Timeout           time.Duration
	UserAgent         string
}

// DefaultFetcherConfig returns the default fetcher configuration.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		RequestsPerMinute: 120,
		Timeout:           30 * time.Second,
		UserAgent:         "reminder/1.0",
	}
}

// Fetcher loads clip bytes from http(s) URLs, file:// URLs or local paths.
// HTTP responses are cached by URL.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	cache     ClipCache
	userAgent string
	logger    *log.Logger
}

// NewFetcher creates a fetcher. clips may be nil.
func NewFetcher(cfg FetcherConfig, clips ClipCache, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	f := &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		cache:     clips,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
	if cfg.RequestsPerMinute > 0 {
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 2)
	}
	return f
}

// Fetch returns the bytes of the clip at src.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, errors.New("empty clip source")
	}

	if !isHTTP(src) {
		return readLocal(src)
	}

	key := cache.ClipKey(src)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			f.logger.Debug("clip cache hit", "url", src)
			return data, nil
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	data, err := f.download(ctx, src)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Put(key, data); err != nil {
			f.logger.Warn("could not cache clip", "url", src, "err", err)
		}
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch clip: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipSize+1))
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	if len(data) > maxClipSize {
		return nil, ErrClipTooLarge
	}

	f.logger.Debug("clip downloaded", "url", src, "bytes", len(data), "took", time.Since(start))
	return data, nil
}

func isHTTP(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func readLocal(src string) ([]byte, error) {
	path := src
	if strings.HasPrefix(src, "file://") {
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse clip url: %w", err)
		}
		path = u.Path
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand clip path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	if info.Size() > maxClipSize {
		return nil, ErrClipTooLarge
	}
	return os.ReadFile(path)
}
