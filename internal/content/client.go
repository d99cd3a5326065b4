package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNotFound is returned when the API has no such verse or date.
var ErrNotFound = errors.New("not found")

// DefaultBaseURL is the public Reminder API.
const DefaultBaseURL = "https://reminder.dev"

// Verse is a single verse with its translation.
type Verse struct {
	Chapter int    `json:"chapter"`
	Number  int    `json:"number"`
	Text    string `json:"text"`
	Arabic  string `json:"arabic"`
	Words   []Word `json:"words,omitempty"`

	// ChapterName is filled in by the client from the chapter list.
	ChapterName string `json:"-"`
}

// Word is one entry of the word-by-word translation.
type Word struct {
	Arabic          string `json:"arabic"`
	English         string `json:"english"`
	Transliteration string `json:"transliteration"`
}

// Ref returns the reference of the verse.
func (v Verse) Ref() Ref {
	return Ref{Chapter: v.Chapter, Verse: v.Number}
}

// Label returns the display label, e.g. "Al-Fatihah 1:1".
func (v Verse) Label() string {
	if v.ChapterName == "" {
		return v.Ref().String()
	}
	return v.ChapterName + " " + v.Ref().String()
}

// ChapterInfo is an entry of the chapter list.
type ChapterInfo struct {
	Name       string `json:"name"`
	Number     int    `json:"number"`
	English    string `json:"english"`
	VerseCount int    `json:"verse_count"`
}

// Daily is the daily reminder: a verse, a hadith and a name of Allah.
type Daily struct {
	Verse   string            `json:"verse"`
	Hadith  string            `json:"hadith"`
	Name    string            `json:"name"`
	Message string            `json:"message"`
	Links   map[string]string `json:"links"`
	Updated string            `json:"updated"`
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri"`
}

// VerseRef extracts the verse reference from the daily links. The API
// links the verse as "/quran/{chapter}#{verse}" or "/quran/{chapter}/{verse}".
func (d Daily) VerseRef() (Ref, bool) {
	link, ok := d.Links["verse"]
	if !ok {
		return Ref{}, false
	}
	link = strings.TrimPrefix(link, "/quran/")
	link = strings.NewReplacer("#", ":", "/", ":").Replace(link)
	r, err := ParseRef(link)
	if err != nil {
		return Ref{}, false
	}
	return r, true
}

// Client talks to the Reminder content API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger

	mu       sync.Mutex
	chapters []ChapterInfo
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Verse fetches a single verse.
func (c *Client) Verse(ctx context.Context, r Ref) (Verse, error) {
	var v Verse
	if err := c.get(ctx, fmt.Sprintf("/api/quran/%d/%d", r.Chapter, r.Verse), &v); err != nil {
		return Verse{}, fmt.Errorf("verse %s: %w", Ref{Chapter: r.Chapter, Verse: r.Verse}, err)
	}
	if v.Chapter == 0 {
		v.Chapter = r.Chapter
	}
	if v.Number == 0 {
		v.Number = r.Verse
	}

	if chapters, err := c.Chapters(ctx); err == nil && r.Chapter <= len(chapters) {
		v.ChapterName = chapters[r.Chapter-1].Name
	} else if err != nil {
		c.logger.Debug("chapter names unavailable", "err", err)
	}
	return v, nil
}

// Chapters returns the chapter list. It is fetched once per client.
func (c *Client) Chapters(ctx context.Context) ([]ChapterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chapters != nil {
		return c.chapters, nil
	}
	var chapters []ChapterInfo
	if err := c.get(ctx, "/api/quran/chapters", &chapters); err != nil {
		return nil, fmt.Errorf("chapters: %w", err)
	}
	c.chapters = chapters
	return chapters, nil
}

// VerseCount returns the number of verses of a chapter.
func (c *Client) VerseCount(ctx context.Context, chapter int) (int, error) {
	chapters, err := c.Chapters(ctx)
	if err != nil {
		return 0, err
	}
	for _, ch := range chapters {
		if ch.Number == chapter {
			return ch.VerseCount, nil
		}
	}
	return 0, fmt.Errorf("chapter %d: %w", chapter, ErrNotFound)
}

// Daily fetches today's reminder.
func (c *Client) Daily(ctx context.Context) (Daily, error) {
	var d Daily
	if err := c.get(ctx, "/api/daily", &d); err != nil {
		return Daily{}, fmt.Errorf("daily: %w", err)
	}
	return d, nil
}

// DailyFor fetches the reminder of a date in YYYY-MM-DD form.
func (c *Client) DailyFor(ctx context.Context, date string) (Daily, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return Daily{}, fmt.Errorf("daily: bad date %q: %w", date, err)
	}
	var d Daily
	if err := c.get(ctx, "/api/daily/"+url.PathEscape(date), &d); err != nil {
		return Daily{}, fmt.Errorf("daily %s: %w", date, err)
	}
	return d, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "path", path, "status", resp.StatusCode, "took", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
