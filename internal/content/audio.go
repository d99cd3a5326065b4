package content

import (
	"bytes"
	"fmt"
	"text/template"
)

// Default clip locations. Both follow the everyayah.com layout of
// zero-padded chapter and verse numbers.
const (
	DefaultArabicTemplate  = `https://everyayah.com/data/Alafasy_128kbps/{{printf "%03d%03d" .Chapter .Verse}}.mp3`
	DefaultEnglishTemplate = `https://everyayah.com/data/English/Sahih_Intnl_Ibrahim_Walk_192kbps/{{printf "%03d%03d" .Chapter .Verse}}.mp3`
)

// AudioURLs builds the clip URLs of a verse from two templates. The
// templates see a Ref. An empty template means that track has no audio.
type AudioURLs struct {
	arabic  *template.Template
	english *template.Template
}

// NewAudioURLs parses the Arabic and English URL templates.
func NewAudioURLs(arabic, english string) (*AudioURLs, error) {
	a := &AudioURLs{}
	var err error
	if arabic != "" {
		if a.arabic, err = template.New("arabic").Option("missingkey=error").Parse(arabic); err != nil {
			return nil, fmt.Errorf("parse arabic audio template: %w", err)
		}
	}
	if english != "" {
		if a.english, err = template.New("english").Option("missingkey=error").Parse(english); err != nil {
			return nil, fmt.Errorf("parse english audio template: %w", err)
		}
	}
	return a, nil
}

// For returns the Arabic and English clip URLs of a single verse.
func (a *AudioURLs) For(r Ref) (arabic, english string, err error) {
	single := Ref{Chapter: r.Chapter, Verse: r.Verse}
	if arabic, err = expand(a.arabic, single); err != nil {
		return "", "", err
	}
	if english, err = expand(a.english, single); err != nil {
		return "", "", err
	}
	return arabic, english, nil
}

func expand(t *template.Template, r Ref) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("expand %s audio template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
