package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChapterCount is the number of chapters in the Quran.
const ChapterCount = 114

// ErrInvalidRef is returned for references that do not parse.
var ErrInvalidRef = errors.New("invalid verse reference")

// Ref points at a verse, or a range of verses within one chapter.
type Ref struct {
	Chapter int
	Verse   int
	End     int // last verse of a range, 0 for a single verse
}

// ParseRef parses "2:255" and ranges such as "1:1-7".
func ParseRef(s string) (Ref, error) {
	chapter, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q: want chapter:verse", ErrInvalidRef, s)
	}

	var r Ref
	var err error
	if r.Chapter, err = strconv.Atoi(chapter); err != nil {
		return Ref{}, fmt.Errorf("%w: %q: bad chapter", ErrInvalidRef, s)
	}

	first, last, isRange := strings.Cut(rest, "-")
	if r.Verse, err = strconv.Atoi(first); err != nil {
		return Ref{}, fmt.Errorf("%w: %q: bad verse", ErrInvalidRef, s)
	}
	if isRange {
		if r.End, err = strconv.Atoi(last); err != nil {
			return Ref{}, fmt.Errorf("%w: %q: bad range end", ErrInvalidRef, s)
		}
	}

	if err := r.Validate(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

// Validate checks the numeric bounds of a reference.
func (r Ref) Validate() error {
	switch {
	case r.Chapter < 1 || r.Chapter > ChapterCount:
		return fmt.Errorf("%w: chapter %d out of range", ErrInvalidRef, r.Chapter)
	case r.Verse < 1:
		return fmt.Errorf("%w: verse %d out of range", ErrInvalidRef, r.Verse)
	case r.End != 0 && r.End < r.Verse:
		return fmt.Errorf("%w: range %d-%d is backwards", ErrInvalidRef, r.Verse, r.End)
	}
	return nil
}

// IsRange reports whether the reference covers more than one verse.
func (r Ref) IsRange() bool {
	return r.End > r.Verse
}

// Verses expands the reference into single-verse references.
func (r Ref) Verses() []Ref {
	if !r.IsRange() {
		return []Ref{{Chapter: r.Chapter, Verse: r.Verse}}
	}
	out := make([]Ref, 0, r.End-r.Verse+1)
	for v := r.Verse; v <= r.End; v++ {
		out = append(out, Ref{Chapter: r.Chapter, Verse: v})
	}
	return out
}

// String formats the reference the way ParseRef reads it.
func (r Ref) String() string {
	if r.IsRange() {
		return fmt.Sprintf("%d:%d-%d", r.Chapter, r.Verse, r.End)
	}
	return fmt.Sprintf("%d:%d", r.Chapter, r.Verse)
}
