package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/reminderdev/reminder/internal/player"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server binds to localhost by default
	},
}

// Controller is the part of *player.Player the server drives.
type Controller interface {
	Snapshot() player.Session
	Label() string
	Sources() (player.Source, player.Source)
	SetSources(primaryURL, secondaryURL, label string)
	Play(ctx context.Context) error
	Pause() error
	TogglePlay(ctx context.Context) error
	Skip(ctx context.Context, target player.Track) error
	Seek(pos time.Duration) error
	SetVolume(v float64)
	ToggleMute()
}

// Resolver turns a reference such as "2:255" into sources.
type Resolver func(ctx context.Context, ref string) (LoadData, error)

// Config configures a Server.
type Config struct {
	Version string

	// Resolve is used by OpLoad messages that carry a ref. Optional.
	Resolve Resolver

	// OpTimeout bounds blocking player calls made for a client.
	OpTimeout time.Duration
}

// Server fans a single player out to websocket clients.
type Server struct {
	cfg    Config
	logger *log.Logger

	player Controller

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// updateMu serialises player updates so that clients receive them in
	// session order. updateSeq numbers them.
	updateMu  sync.Mutex
	updateSeq uint64
}

// NewServer creates a server. Attach a player before serving.
func NewServer(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Attach sets the player the server controls. The player's callbacks
// should be wired to PlayerChanged, PlayerFailed, SequenceStarted and
// SequenceCompleted.
func (s *Server) Attach(p Controller) {
	s.player = p
}

// Handler returns the http handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.Handle("/health", NewHealthHandler(s, s.cfg.Version))
	return mux
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.player == nil {
		http.Error(w, "no player attached", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket", "err", err)
		return
	}

	client := NewClient(s, conn)
	s.logger.Info("client connected", "session", client.sessionID, "addr", r.RemoteAddr)

	go client.readPump()
	go client.writePump()
}

// PlayerChanged broadcasts the session. The player fires its callbacks on
// several goroutines, so the snapshot passed in may already be stale; the
// current one is read under updateMu instead, which keeps the last update a
// client receives equal to the latest state.
func (s *Server) PlayerChanged(player.Session) {
	if s.player == nil {
		return
	}
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.updateSeq++
	s.broadcast(Message{Op: OpPlayerUpdate, Data: s.updateLocked()})
}

// PlayerFailed broadcasts a playback failure that no client request caused.
func (s *Server) PlayerFailed(err error) {
	s.broadcast(Message{Op: OpError, Data: errorData(OpNone, err)})
}

func (s *Server) updateLocked() PlayerUpdateData {
	primary, secondary := s.player.Sources()
	u := playerUpdate(s.player.Snapshot(), s.player.Label(), primary, secondary)
	u.Seq = s.updateSeq
	return u
}

// SequenceStarted broadcasts the start of a sequence.
func (s *Server) SequenceStarted() {
	if s.player == nil {
		return
	}
	s.broadcast(Message{Op: OpSequenceStart, Data: SequenceData{Label: s.player.Label()}})
}

// SequenceCompleted broadcasts the natural end of a sequence.
func (s *Server) SequenceCompleted() {
	if s.player == nil {
		return
	}
	s.broadcast(Message{Op: OpSequenceComplete, Data: SequenceData{Label: s.player.Label()}})
}

// ClientCount returns the number of identified clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.clientsMu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *Server) broadcast(msg Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.send(msg)
	}
}

func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.sessionID] = client
}

func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, client.sessionID)
}

func (s *Server) handleMessage(client *Client, msgType int, data []byte) {
	if msgType != websocket.TextMessage {
		return
	}

	var msg struct {
		Op   uint8           `json:"op"`
		Data json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("failed to unmarshal message", "session", client.sessionID, "err", err)
		client.sendError(OpNone, fmt.Errorf("malformed message: %w", err))
		return
	}

	switch msg.Op {
	case OpIdentify:
		s.handleIdentify(client, msg.Data)
		return
	case OpPing:
		client.send(Message{Op: OpPong})
		return
	}

	if !client.isIdentified() {
		client.sendError(msg.Op, errors.New("identify first"))
		return
	}

	switch msg.Op {
	case OpLoad:
		s.handleLoad(client, msg.Data)
	case OpPlay:
		s.runAsync(client, OpPlay, s.player.Play)
	case OpPause:
		if err := s.player.Pause(); err != nil {
			client.sendError(OpPause, err)
		}
	case OpToggle:
		s.runAsync(client, OpToggle, s.player.TogglePlay)
	case OpSkip:
		s.handleSkip(client, msg.Data)
	case OpSeek:
		s.handleSeek(client, msg.Data)
	case OpVolume:
		s.handleVolume(client, msg.Data)
	case OpMute:
		s.player.ToggleMute()
	default:
		s.logger.Warn("unknown op code", "op", msg.Op)
		client.sendError(msg.Op, errors.New("unknown op"))
	}
}

func (s *Server) handleIdentify(client *Client, data json.RawMessage) {
	var identify IdentifyData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &identify); err != nil {
			client.sendError(OpIdentify, err)
			return
		}
	}
	if identify.ClientName == "" {
		identify.ClientName = "unknown"
	}

	s.logger.Info("client identified", "session", client.sessionID, "client", identify.ClientName)

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	client.identify(identify.ClientName)
	s.registerClient(client)
	client.send(Message{Op: OpReady, Data: ReadyData{SessionID: client.sessionID}})
	client.send(Message{Op: OpPlayerUpdate, Data: s.updateLocked()})
}

func (s *Server) handleLoad(client *Client, data json.RawMessage) {
	var load LoadData
	if err := json.Unmarshal(data, &load); err != nil {
		client.sendError(OpLoad, err)
		return
	}

	if load.Ref == "" {
		s.logger.Info("load requested", "label", load.Label, "primary", load.PrimaryURL, "secondary", load.SecondaryURL)
		s.player.SetSources(load.PrimaryURL, load.SecondaryURL, load.Label)
		return
	}

	if s.cfg.Resolve == nil {
		client.sendError(OpLoad, errors.New("loading by ref is not supported"))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
		defer cancel()

		resolved, err := s.cfg.Resolve(ctx, load.Ref)
		if err != nil {
			s.logger.Warn("could not resolve ref", "ref", load.Ref, "err", err)
			client.sendError(OpLoad, err)
			return
		}
		if load.Label != "" {
			resolved.Label = load.Label
		}
		s.logger.Info("load requested", "ref", load.Ref, "label", resolved.Label)
		s.player.SetSources(resolved.PrimaryURL, resolved.SecondaryURL, resolved.Label)
	}()
}

func (s *Server) handleSkip(client *Client, data json.RawMessage) {
	var skip SkipData
	if err := json.Unmarshal(data, &skip); err != nil {
		client.sendError(OpSkip, err)
		return
	}
	track, ok := player.ParseTrack(skip.Track)
	if !ok {
		client.sendError(OpSkip, fmt.Errorf("unknown track %q", skip.Track))
		return
	}
	s.runAsync(client, OpSkip, func(ctx context.Context) error {
		return s.player.Skip(ctx, track)
	})
}

func (s *Server) handleSeek(client *Client, data json.RawMessage) {
	var seek SeekData
	if err := json.Unmarshal(data, &seek); err != nil {
		client.sendError(OpSeek, err)
		return
	}
	if err := s.player.Seek(seek.position()); err != nil {
		client.sendError(OpSeek, err)
	}
}

func (s *Server) handleVolume(client *Client, data json.RawMessage) {
	var vol VolumeData
	if err := json.Unmarshal(data, &vol); err != nil {
		client.sendError(OpVolume, err)
		return
	}
	s.player.SetVolume(vol.Volume)
}

// runAsync runs a blocking player call off the read pump and reports its
// error to the client that asked for it.
func (s *Server) runAsync(client *Client, op uint8, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Warn("player op failed", "op", op, "session", client.sessionID, "err", err)
			client.sendError(op, err)
		}
	}()
}
