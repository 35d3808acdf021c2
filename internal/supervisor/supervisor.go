// Package supervisor launches, monitors and stops the managed bot
// processes, capturing their output to per-bot log files.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/metrics"
)

// Actions accepted by Control.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

// Result is the reply to a control request.
type Result struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Tail    []string `json:"tail,omitempty"`
}

// Options holds the supervisor tuning taken from config.SupervisorConfig.
type Options struct {
	LogDir      string
	GracePeriod time.Duration
	StopTimeout time.Duration
	MaxLogSize  int64
	TailLines   int
}

// Supervisor owns one descriptor per configured bot for its whole lifetime.
type Supervisor struct {
	opts       Options
	logger     *slog.Logger
	metrics    metrics.Provider
	executable string
	configPath string
	now        func() time.Time

	bots  map[string]*process
	order []string
}

// New creates a supervisor with every bot stopped. configPath is passed to
// bots launched from this executable.
func New(cfg config.SupervisorConfig, configPath string, logger *slog.Logger, m metrics.Provider) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop()
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		logger.Warn("Cannot determine own executable; self-launched bots will fail", "error", err)
	}

	s := &Supervisor{
		opts: Options{
			LogDir:      cfg.LogDir,
			GracePeriod: cfg.GracePeriod,
			StopTimeout: cfg.StopTimeout,
			MaxLogSize:  cfg.MaxLogSize,
			TailLines:   cfg.TailLines,
		},
		logger:     logger.With("component", "supervisor"),
		metrics:    m,
		executable: exe,
		configPath: configPath,
		now:        time.Now,
		bots:       make(map[string]*process, len(cfg.Bots)),
	}
	if s.opts.TailLines <= 0 {
		s.opts.TailLines = 50
	}
	if s.opts.StopTimeout <= 0 {
		s.opts.StopTimeout = 5 * time.Second
	}

	for _, t := range cfg.Bots {
		if _, dup := s.bots[t.Name]; dup {
			return nil, fmt.Errorf("duplicate bot %q", t.Name)
		}
		s.bots[t.Name] = &process{
			target:  t,
			logPath: filepath.Join(cfg.LogDir, logFileName(t.Name)),
			state:   StateStopped,
		}
		s.order = append(s.order, t.Name)
		m.SetBotUp(t.Name, false)
	}
	return s, nil
}

// LogDir returns the directory holding bot logs.
func (s *Supervisor) LogDir() string { return s.opts.LogDir }

func (s *Supervisor) lookup(name string) (*process, error) {
	p, ok := s.bots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBot, name)
	}
	return p, nil
}

// List returns a freshly verified status of every bot in configuration order.
func (s *Supervisor) List() []BotStatus {
	out := make([]BotStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.bots[name].status())
	}
	return out
}

// Status returns the freshly verified status of one bot.
func (s *Supervisor) Status(name string) (BotStatus, error) {
	p, err := s.lookup(name)
	if err != nil {
		return BotStatus{}, err
	}
	return p.status(), nil
}

// Start launches a bot. Starting a running bot is a no-op success.
func (s *Supervisor) Start(ctx context.Context, name string) (string, error) {
	p, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return s.start(ctx, p)
}

// Stop terminates a bot. Stopping a stopped bot is a no-op success.
func (s *Supervisor) Stop(_ context.Context, name string) (string, error) {
	p, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return s.stop(p)
}

// Restart stops then starts a bot as one operation. Start is attempted
// even when stop fails; both failures are returned.
func (s *Supervisor) Restart(ctx context.Context, name string) (string, error) {
	p, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()

	_, stopErr := s.stop(p)
	_, startErr := s.start(ctx, p)
	if err := errors.Join(stopErr, startErr); err != nil {
		return "", err
	}
	return "restarted", nil
}

// Control dispatches a dashboard action and converts the outcome into a
// Result. The error is non-nil only for unknown bots and actions so the
// caller can pick an HTTP status.
func (s *Supervisor) Control(ctx context.Context, name, action string) (Result, error) {
	var (
		msg string
		err error
	)
	switch action {
	case ActionStart:
		msg, err = s.Start(ctx, name)
	case ActionStop:
		msg, err = s.Stop(ctx, name)
	case ActionRestart:
		msg, err = s.Restart(ctx, name)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownAction, action)
		return Result{Status: "error", Message: err.Error()}, err
	}

	if errors.Is(err, ErrUnknownBot) {
		return Result{Status: "error", Message: err.Error()}, err
	}
	if err != nil {
		res := Result{Status: "error", Message: err.Error()}
		var se *StartError
		if errors.As(err, &se) {
			res.Tail = se.Tail
			if se.LogPath != "" {
				res.Message += "; see " + se.LogPath
			}
		}
		return res, nil
	}
	return Result{Status: "ok", Message: fmt.Sprintf("%s %s", name, msg)}, nil
}

// Tail returns the last n lines of a bot's log.
func (s *Supervisor) Tail(name string, n int) ([]string, error) {
	p, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.opts.TailLines
	}
	lines, err := TailFile(p.logPath, n)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return lines, err
}

// Autostart starts every bot marked autostart. Failures are logged.
func (s *Supervisor) Autostart(ctx context.Context) {
	for _, name := range s.order {
		if !s.bots[name].target.Autostart {
			continue
		}
		if _, err := s.Start(ctx, name); err != nil {
			s.logger.Error("Autostart failed", "bot", name, "error", err)
		}
	}
}

// Shutdown stops every bot in parallel and waits for all of them.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping all bots")
	var g errgroup.Group
	for _, name := range s.order {
		g.Go(func() error {
			_, err := s.Stop(ctx, name)
			return err
		})
	}
	return g.Wait()
}
