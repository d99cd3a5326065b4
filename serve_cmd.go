package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reminderdev/reminder/internal/content"
	"github.com/reminderdev/reminder/internal/history"
	"github.com/reminderdev/reminder/internal/player"
	"github.com/reminderdev/reminder/internal/remote"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [REF]",
	Short: "Run a headless player controlled over a websocket",
	Long: paragraph(fmt.Sprintf("\n%s a player without a terminal UI. Clients connect to /ws to load verses and drive playback; /health reports the player state.",
		keyword("Serve"))),
	Example: paragraph("reminder serve\nreminder serve 36:1 --addr 0.0.0.0:7480"),
	Args:    cobra.MaximumNArgs(1),
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:7480", "address to listen on")
	serveCmd.Flags().BoolVar(&autoplay, "autoplay", false, "start playing as soon as a verse is loaded")
}

// sessionLog records the sessions of the headless player. Loaded verses are
// remembered by label so that their reference lands in the history.
type sessionLog struct {
	store  *history.Store
	logger *log.Logger

	mu     sync.Mutex
	refs   map[string]string
	player *player.Player
}

func (s *sessionLog) remember(label, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[label] = ref
}

func (s *sessionLog) refOf(label string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[label]; ok {
		return ref
	}
	return label
}

func (s *sessionLog) started() {
	label := s.player.Label()
	primary, secondary := s.player.Sources()
	err := s.store.RecordStart(history.Entry{
		Ref:          s.refOf(label),
		Label:        label,
		PrimaryURL:   primary.URL,
		SecondaryURL: secondary.URL,
	})
	if err != nil {
		s.logger.Warn("Could not record history", "err", err)
	}
}

func (s *sessionLog) completed() {
	if err := s.store.RecordComplete(s.refOf(s.player.Label())); err != nil {
		s.logger.Warn("Could not record completion", "err", err)
	}
}

func runServe(_ *cobra.Command, args []string) error {
	// The TUI owns the terminal elsewhere; here the log is the only output.
	if os.Getenv("REMINDER_DEBUG") == "" {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetReportTimestamp(true)
	}
	logger := log.Default().WithPrefix("serve")

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sessions := &sessionLog{store: a.history, logger: logger, refs: make(map[string]string)}
	srv := remote.NewServer(remote.Config{
		Version: Version,
		Resolve: func(ctx context.Context, ref string) (remote.LoadData, error) {
			d, err := a.resolve(ctx, ref)
			if err == nil {
				sessions.remember(d.Label, d.Ref)
			}
			return d, err
		},
	}, log.Default().WithPrefix("remote"))

	p, err := a.newPlayer(player.Options{
		AutoPlay: autoplay,
		OnPlayStart: func() {
			sessions.started()
			srv.SequenceStarted()
		},
		OnPlayComplete: func() {
			sessions.completed()
			srv.SequenceCompleted()
		},
		OnChange: srv.PlayerChanged,
		OnError:  srv.PlayerFailed,
	})
	if err != nil {
		return fmt.Errorf("unable to open audio output: %w", err)
	}
	sessions.player = p
	srv.Attach(p)

	if len(args) > 0 {
		ref, err := content.ParseRef(args[0])
		if err != nil {
			_ = p.Close()
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), opts.APITimeout)
		item, err := a.loadItem(ctx, ref)
		cancel()
		if err != nil {
			_ = p.Close()
			return err
		}
		sessions.remember(item.Label, ref.String())
		p.SetSources(item.PrimaryURL, item.SecondaryURL, item.Label)
	}

	httpServer := &http.Server{
		Addr:        opts.ServeAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", opts.ServeAddr, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("Server error", "err", serveErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	srv.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "err", err)
	}

	snap := p.Snapshot()
	if err := a.history.SavePreferences(history.Preferences{Volume: snap.Volume, Muted: snap.Muted}); err != nil {
		logger.Warn("Could not save preferences", "err", err)
	}
	if err := p.Close(); err != nil {
		logger.Warn("Could not close player", "err", err)
	}

	logger.Info("Stopped")
	return serveErr
}
