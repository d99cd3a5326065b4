package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{"2:255", Ref{Chapter: 2, Verse: 255}, false},
		{" 1:1-7 ", Ref{Chapter: 1, Verse: 1, End: 7}, false},
		{"114:6", Ref{Chapter: 114, Verse: 6}, false},
		{"115:1", Ref{}, true},
		{"0:1", Ref{}, true},
		{"1:0", Ref{}, true},
		{"1:7-1", Ref{}, true},
		{"1", Ref{}, true},
		{"a:b", Ref{}, true},
		{"1:2-x", Ref{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRef) {
					t.Errorf("ParseRef(%q) error = %v, want ErrInvalidRef", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseRef(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRef_VersesAndString(t *testing.T) {
	r := Ref{Chapter: 1, Verse: 5, End: 7}
	verses := r.Verses()
	if len(verses) != 3 || verses[0].Verse != 5 || verses[2].Verse != 7 {
		t.Errorf("Verses = %+v", verses)
	}
	if r.String() != "1:5-7" {
		t.Errorf("String = %q", r.String())
	}

	single := Ref{Chapter: 2, Verse: 255}
	if len(single.Verses()) != 1 || single.String() != "2:255" {
		t.Errorf("single ref = %+v %q", single.Verses(), single.String())
	}
}

func TestAudioURLs(t *testing.T) {
	a, err := NewAudioURLs(DefaultArabicTemplate, DefaultEnglishTemplate)
	if err != nil {
		t.Fatalf("NewAudioURLs failed: %v", err)
	}

	ar, en, err := a.For(Ref{Chapter: 2, Verse: 255, End: 257})
	if err != nil {
		t.Fatalf("For failed: %v", err)
	}
	if ar != "https://everyayah.com/data/Alafasy_128kbps/002255.mp3" {
		t.Errorf("arabic = %q", ar)
	}
	if en != "https://everyayah.com/data/English/Sahih_Intnl_Ibrahim_Walk_192kbps/002255.mp3" {
		t.Errorf("english = %q", en)
	}
}

func TestAudioURLs_EmptyTemplateMeansNoTrack(t *testing.T) {
	a, err := NewAudioURLs("/clips/{{.Chapter}}-{{.Verse}}.mp3", "")
	if err != nil {
		t.Fatalf("NewAudioURLs failed: %v", err)
	}
	ar, en, err := a.For(Ref{Chapter: 1, Verse: 1})
	if err != nil {
		t.Fatalf("For failed: %v", err)
	}
	if ar != "/clips/1-1.mp3" || en != "" {
		t.Errorf("got %q %q", ar, en)
	}

	if _, err := NewAudioURLs("{{.Chapter", ""); err == nil {
		t.Error("broken template should fail to parse")
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var chapterCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/quran/chapters", func(w http.ResponseWriter, r *http.Request) {
		chapterCalls.Add(1)
		_ = json.NewEncoder(w).Encode([]ChapterInfo{
			{Name: "Al-Fatihah", Number: 1, English: "The Opening", VerseCount: 7},
			{Name: "Al-Baqarah", Number: 2, English: "The Cow", VerseCount: 286},
		})
	})
	mux.HandleFunc("/api/quran/2/255", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Verse{Chapter: 2, Number: 255, Text: "Allah - there is no deity except Him", Arabic: "ٱللَّهُ لَآ إِلَٰهَ إِلَّا هُوَ"})
	})
	mux.HandleFunc("/api/daily", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Daily{
			Verse:   "Indeed, with hardship [will be] ease.",
			Message: "Salam",
			Links:   map[string]string{"verse": "/quran/94#6"},
		})
	})
	mux.HandleFunc("/api/daily/2024-03-11", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Daily{Date: "2024-03-11"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &chapterCalls
}

func TestClient_Verse(t *testing.T) {
	srv, chapterCalls := newTestServer(t)
	c := NewClient(srv.URL+"/", time.Second, log.New(io.Discard))

	v, err := c.Verse(context.Background(), Ref{Chapter: 2, Verse: 255})
	if err != nil {
		t.Fatalf("Verse failed: %v", err)
	}
	if v.ChapterName != "Al-Baqarah" {
		t.Errorf("chapter name = %q", v.ChapterName)
	}
	if v.Label() != "Al-Baqarah 2:255" {
		t.Errorf("label = %q", v.Label())
	}

	n, err := c.VerseCount(context.Background(), 1)
	if err != nil || n != 7 {
		t.Errorf("VerseCount = %d, %v", n, err)
	}
	if chapterCalls.Load() != 1 {
		t.Errorf("chapters fetched %d times, want 1", chapterCalls.Load())
	}

	if _, err := c.Verse(context.Background(), Ref{Chapter: 3, Verse: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown verse error = %v, want ErrNotFound", err)
	}
}

func TestClient_Daily(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient(srv.URL, time.Second, log.New(io.Discard))

	d, err := c.Daily(context.Background())
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	r, ok := d.VerseRef()
	if !ok || r != (Ref{Chapter: 94, Verse: 6}) {
		t.Errorf("VerseRef = %+v, %v", r, ok)
	}

	d, err = c.DailyFor(context.Background(), "2024-03-11")
	if err != nil || d.Date != "2024-03-11" {
		t.Errorf("DailyFor = %+v, %v", d, err)
	}
	if _, err := c.DailyFor(context.Background(), "yesterday"); err == nil {
		t.Error("bad date should fail")
	}
}

func TestDaily_VerseRefMissing(t *testing.T) {
	if _, ok := (Daily{}).VerseRef(); ok {
		t.Error("daily without links should have no verse ref")
	}
}
