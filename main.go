// Package main provides the entry point for the reminder CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/reminderdev/reminder/internal/content"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool

	opts options

	rootCmd = &cobra.Command{
		Use:   "reminder [REF]",
		Short: "Listen to a verse in Arabic and then in English",
		Long: paragraph(
			fmt.Sprintf("\nPlay the %s recitation of a verse followed by its %s translation, as one session.",
				keyword("Arabic"), keyword("English")),
		),
		Example:          paragraph("reminder 2:255\nreminder 1:1-7 --continuous\nreminder --arabic a.mp3 --english b.mp3 --label Test"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: runPlay,
	}
)

// options is the validated configuration of a run.
type options struct {
	APIURL     string
	APITimeout time.Duration

	ArabicTemplate  string
	EnglishTemplate string
	SampleRate      int
	RateLimit       int

	Volume   float64
	AutoPlay bool

	CacheDir         string
	CacheMemoryMB    int
	CacheDiskMB      int
	CacheCompression int
	CacheTTL         time.Duration

	HistoryPath string
	ServeAddr   string
}

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style, _ = homedir.Expand(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	bindCommandFlags(cmd)

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	o := options{
		APIURL:           viper.GetString("api.url"),
		APITimeout:       viper.GetDuration("api.timeout"),
		ArabicTemplate:   viper.GetString("audio.arabic"),
		EnglishTemplate:  viper.GetString("audio.english"),
		SampleRate:       viper.GetInt("audio.sample_rate"),
		RateLimit:        viper.GetInt("audio.rate_limit"),
		Volume:           viper.GetFloat64("player.volume"),
		AutoPlay:         viper.GetBool("player.autoplay"),
		CacheDir:         viper.GetString("cache.dir"),
		CacheMemoryMB:    viper.GetInt("cache.memory_mb"),
		CacheDiskMB:      viper.GetInt("cache.disk_mb"),
		CacheCompression: viper.GetInt("cache.compression"),
		CacheTTL:         viper.GetDuration("cache.ttl"),
		HistoryPath:      viper.GetString("history.path"),
		ServeAddr:        viper.GetString("serve.addr"),
	}
	if err := validateConfig(&o); err != nil {
		return err
	}
	opts = o

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") && isTerminal && width == 0 {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil {
			width = uint(min(w, 100)) //nolint:gosec
		}
	}
	return nil
}

// validateConfig checks the values read from the config file and fills in
// the default paths.
func validateConfig(o *options) error {
	if u, err := url.Parse(o.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.url must be an absolute URL, got %q", o.APIURL)
	}
	if o.APITimeout <= 0 {
		o.APITimeout = 15 * time.Second
	}

	if _, err := content.NewAudioURLs(o.ArabicTemplate, o.EnglishTemplate); err != nil {
		return err
	}
	if o.SampleRate != 44100 && o.SampleRate != 48000 {
		return fmt.Errorf("audio.sample_rate must be 44100 or 48000, got %d", o.SampleRate)
	}
	if o.RateLimit < 0 {
		return fmt.Errorf("audio.rate_limit must not be negative, got %d", o.RateLimit)
	}

	if o.Volume < 0 || o.Volume > 1 {
		return fmt.Errorf("player.volume must be between 0.0 and 1.0, got %.2f", o.Volume)
	}

	if o.CacheMemoryMB < 1 || o.CacheMemoryMB > 4096 {
		return fmt.Errorf("cache.memory_mb must be between 1 and 4096, got %d", o.CacheMemoryMB)
	}
	if o.CacheDiskMB < 1 || o.CacheDiskMB > 65536 {
		return fmt.Errorf("cache.disk_mb must be between 1 and 65536, got %d", o.CacheDiskMB)
	}
	if o.CacheCompression < 0 || o.CacheCompression > 22 {
		return fmt.Errorf("cache.compression must be between 0 and 22, got %d", o.CacheCompression)
	}

	scope := gap.NewScope(gap.User, "reminder")
	var err error
	if o.CacheDir == "" {
		if o.CacheDir, err = scope.CacheDir(); err != nil {
			return fmt.Errorf("could not find cache directory: %w", err)
		}
		o.CacheDir = filepath.Join(o.CacheDir, "clips")
	}
	if o.CacheDir, err = homedir.Expand(o.CacheDir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}

	if o.HistoryPath == "" {
		if o.HistoryPath, err = scope.DataPath("history.db"); err != nil {
			return fmt.Errorf("could not find data directory: %w", err)
		}
	}
	if o.HistoryPath, err = homedir.Expand(o.HistoryPath); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

// bindCommandFlags binds the flags of the command being run, so that
// subcommands sharing a flag name all reach the same config key.
func bindCommandFlags(cmd *cobra.Command) {
	for key, flag := range map[string]string{
		"style":           "style",
		"width":           "width",
		"mouse":           "mouse",
		"player.autoplay": "autoplay",
		"serve.addr":      "addr",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	// A .env file next to the working directory may carry REMINDER_*
	// overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Could not load .env file", "err", err)
	}

	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to follow the terminal)")
	rootCmd.PersistentFlags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.PersistentFlags().MarkHidden("mouse")
	addPlayFlags(rootCmd)

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("api.url", content.DefaultBaseURL)
	viper.SetDefault("api.timeout", 15*time.Second)
	viper.SetDefault("audio.arabic", content.DefaultArabicTemplate)
	viper.SetDefault("audio.english", content.DefaultEnglishTemplate)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.rate_limit", 120)
	viper.SetDefault("player.volume", 1.0)
	viper.SetDefault("player.autoplay", false)
	viper.SetDefault("cache.memory_mb", 64)
	viper.SetDefault("cache.disk_mb", 512)
	viper.SetDefault("cache.compression", 1)
	viper.SetDefault("cache.ttl", 30*24*time.Hour)
	viper.SetDefault("serve.addr", "127.0.0.1:7480")

	rootCmd.AddCommand(playCmd, dailyCmd, historyCmd, cacheCmd, serveCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "reminder")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "reminder")}, dirs...)
	}

	if c := os.Getenv("REMINDER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("reminder")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("reminder")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "reminder.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
