package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., "localhost:2323").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.lockstep/host_key.
	HostKeyPath string

	// Scenario is shown to sessions that do not name one.
	Scenario string

	// Runtime is the simulation config every session uses.
	Runtime core.RuntimeConfig

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     "localhost:2323",
		Scenario:    "skirmish",
		Runtime:     core.DefaultConfig(),
		IdleTimeout: 30 * time.Minute,
	}
}

// SSHServer serves the inspector to spectators over SSH. Each session gets
// its own simulation of the requested scenario; worlds are built once per
// scenario and shared read-only.
type SSHServer struct {
	config   SSHServerConfig
	server   *ssh.Server
	catalog  *registry.Catalog
	sessions *lockstep.SessionRegistry // Optional verifier feed
	logger   *log.Logger

	mu     sync.Mutex
	worlds map[string]*sim.World
}

// NewSSHServer creates a new SSH server with the given configuration.
// sessions may be nil; when set, every spectator is registered in it and
// receives the events a verifier broadcasts there.
func NewSSHServer(cfg SSHServerConfig, catalog *registry.Catalog, sessions *lockstep.SessionRegistry, logger *log.Logger) (*SSHServer, error) {
	if logger == nil {
		logger = log.Default()
	}
	srv := &SSHServer{
		config:   cfg,
		catalog:  catalog,
		sessions: sessions,
		logger:   logger.WithPrefix("ssh"),
		worlds:   make(map[string]*sim.World),
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("tui: cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".lockstep", "host_key")
	}

	hostKeyDir := filepath.Dir(hostKeyPath)
	if mkdirErr := os.MkdirAll(hostKeyDir, 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("tui: cannot create host key directory: %w", mkdirErr)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.loggingMiddleware,
		),
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("tui: cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// world returns the shared world of a scenario, building it on first use.
func (s *SSHServer) world(id string) (*sim.World, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.worlds[id]; ok {
		return w, nil
	}
	sc, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	w, err := sc.BuildWorld()
	if err != nil {
		return nil, err
	}
	s.worlds[id] = w
	return w, nil
}

// NewSession builds the inspector model for one spectator. args may name a
// catalog scenario; otherwise the configured default is used.
func (s *SSHServer) NewSession(user string, args []string) (Model, error) {
	id := s.config.Scenario
	if len(args) > 0 {
		id = args[0]
	}
	w, err := s.world(id)
	if err != nil {
		return Model{}, err
	}
	sc, err := s.catalog.Get(id)
	if err != nil {
		return Model{}, err
	}
	logger := s.logger.With("user", user, "scenario", id)
	simulation, err := sc.NewSimulation(w, s.config.Runtime, logger)
	if err != nil {
		return Model{}, err
	}
	return NewModel(simulation, Options{
		Title:  fmt.Sprintf("%s: spectating as %s", sc.Name, user),
		Ticks:  sc.Ticks,
		Logger: logger,
	}), nil
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	if _, _, ok := sshSession.Pty(); !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		wish.Fatalln(sshSession, "lockstep: a terminal is required, connect with ssh -t")
		return nil, nil
	}

	model, err := s.NewSession(sshSession.User(), sshSession.Command())
	if err != nil {
		s.logger.Warn("cannot start session", "user", sshSession.User(), "err", err)
		wish.Fatalln(sshSession, "lockstep:", err)
		return nil, nil
	}

	var feed *lockstep.ChannelSession
	if s.sessions != nil {
		id := lockstep.SessionID(fmt.Sprintf("%s-%d", sshSession.User(), time.Now().UnixNano()))
		feed = lockstep.NewChannelSession(id, 16)
		s.sessions.Register(feed)
		model.opts.Feed = feed
	}
	go func() {
		<-sshSession.Context().Done()
		if feed != nil {
			feed.Close()
		}
		model.Close()
	}()

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
			"command", sshSession.Command(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until ctx is cancelled
// or the process receives SIGINT or SIGTERM.
func (s *SSHServer) ListenAndServe(ctx context.Context) error {
	s.logger.Info("starting SSH server", "address", s.config.Address)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Close implements io.Closer so the server can be owned by core.Resources.
func (s *SSHServer) Close() error {
	return s.server.Close()
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
