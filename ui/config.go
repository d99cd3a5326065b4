package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Continuous moves on to the next verse of the range when a sequence
	// completes.
	Continuous bool

	SeekStep   time.Duration `env:"REMINDER_SEEK_STEP"   envDefault:"5s"`
	VolumeStep float64       `env:"REMINDER_VOLUME_STEP" envDefault:"0.1"`

	// For debugging the UI
	GlamourEnabled bool `env:"REMINDER_ENABLE_GLAMOUR" envDefault:"true"`
}
