package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# glamour style name or JSON path (default "auto")
style: "auto"
# word-wrap the verse text at width (0 follows the terminal)
width: 0
# mouse support
mouse: false

api:
  # content API used for verse text and the daily reminder
  url: "https://reminder.dev"
  timeout: "15s"

audio:
  # clip URL templates; they see .Chapter and .Verse. Leave one empty to
  # play a single track.
  arabic: 'https://everyayah.com/data/Alafasy_128kbps/{{printf "%03d%03d" .Chapter .Verse}}.mp3'
  english: 'https://everyayah.com/data/English/Sahih_Intnl_Ibrahim_Walk_192kbps/{{printf "%03d%03d" .Chapter .Verse}}.mp3'
  # output sample rate: 44100 or 48000
  sample_rate: 44100
  # clip downloads per minute (0 disables the limit)
  rate_limit: 120

player:
  # starting volume when no preference was saved (0.0 to 1.0)
  volume: 1.0
  # start playing as soon as a verse is loaded
  autoplay: false

cache:
  # clip cache directory (default: user cache dir)
  # dir: "~/.cache/reminder/clips"
  memory_mb: 64
  disk_mb: 512
  # zstd level, 0 stores clips uncompressed
  compression: 1
  ttl: "720h"

history:
  # path: "~/.local/share/reminder/history.db"

serve:
  addr: "127.0.0.1:7480"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the reminder config file",
	Long:    paragraph(fmt.Sprintf("\n%s the reminder config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("reminder config\nreminder config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Reminder", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
