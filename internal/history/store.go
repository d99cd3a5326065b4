package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"go.etcd.io/bbolt"
)

var (
	historyBucket = []byte("history")
	prefsBucket   = []byte("prefs")

	playerPrefsKey = []byte("player")
)

// ErrNoEntry is returned by RecordComplete when nothing was started for
// the reference.
var ErrNoEntry = errors.New("no history entry")

// Entry is one listening session.
type Entry struct {
	Ref          string    `json:"ref"`
	Label        string    `json:"label"`
	PrimaryURL   string    `json:"primary_url,omitempty"`
	SecondaryURL string    `json:"secondary_url,omitempty"`
	Started      time.Time `json:"started"`
	Completed    time.Time `json:"completed,omitempty"`
}

// Done reports whether the session played to the end.
func (e Entry) Done() bool {
	return !e.Completed.IsZero()
}

// Preferences are the player settings kept between runs.
type Preferences struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

// DefaultPreferences returns full volume, unmuted.
func DefaultPreferences() Preferences {
	return Preferences{Volume: 1}
}

// Store is the bbolt backed history and preference store.
type Store struct {
	db     *bbolt.DB
	logger *log.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create history directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{historyBucket, prefsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create buckets: %w", err)
	}

	logger.Debug("history store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func entryKey(t time.Time, ref string) []byte {
	return []byte(fmt.Sprintf("%s|%s", t.UTC().Format(time.RFC3339Nano), ref))
}

// RecordStart stores a new session. Started defaults to now.
func (s *Store) RecordStart(e Entry) error {
	if e.Ref == "" {
		return errors.New("history entry without ref")
	}
	if e.Started.IsZero() {
		e.Started = time.Now()
	}
	e.Completed = time.Time{}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error serializing history entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(historyBucket).Put(entryKey(e.Started, e.Ref), value)
	})
}

// RecordComplete marks the newest unfinished session of ref as complete.
func (s *Store) RecordComplete(ref string) error {
	suffix := []byte("|" + ref)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket)
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !bytes.HasSuffix(k, suffix) {
				continue
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("error deserializing history entry: %w", err)
			}
			if e.Done() {
				continue
			}
			e.Completed = time.Now()
			value, err := json.Marshal(e)
			if err != nil {
				return err
			}
			return b.Put(bytes.Clone(k), value)
		}
		return fmt.Errorf("%s: %w", ref, ErrNoEntry)
	})
}

// List returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()

		for k, v := c.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("error deserializing history entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes all history entries and keeps the preferences.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(historyBucket)
		return err
	})
}

// SavePreferences stores the player preferences.
func (s *Store) SavePreferences(p Preferences) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("error serializing preferences: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(prefsBucket).Put(playerPrefsKey, value)
	})
}

// LoadPreferences returns the stored preferences, or fallback when none
// were saved.
func (s *Store) LoadPreferences(fallback Preferences) (Preferences, error) {
	prefs := fallback

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(prefsBucket).Get(playerPrefsKey)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &prefs)
	})
	if err != nil {
		return fallback, fmt.Errorf("error loading preferences: %w", err)
	}

	if prefs.Volume < 0 {
		prefs.Volume = 0
	}
	if prefs.Volume > 1 {
		prefs.Volume = 1
	}
	return prefs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
