package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
)

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

// logFileName maps a bot name to its log file name.
func logFileName(name string) string {
	n := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "_"), "_-")
	if n == "" {
		n = "bot"
	}
	return n + ".log"
}

// process is the descriptor of one managed bot. opMu serializes lifecycle
// operations; mu guards the fields read by status queries.
type process struct {
	target  config.BotTarget
	logPath string

	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	logFile   *os.File
	done      chan struct{}
	exitErr   error
	startedAt time.Time
	lastError string
}

// BotStatus is a snapshot of one descriptor.
type BotStatus struct {
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	LogFile   string    `json:"log_file"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// refresh re-verifies a running process. Callers hold p.mu.
func (p *process) refresh() {
	if p.done == nil {
		return
	}
	select {
	case <-p.done:
	default:
		return
	}
	if p.state == StateRunning || p.state == StateStarting {
		if p.exitErr != nil {
			p.state = StateCrashed
			p.lastError = p.exitErr.Error()
		} else {
			p.state = StateStopped
		}
	}
	p.cmd = nil
	p.done = nil
}

func (p *process) status() BotStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh()

	st := BotStatus{
		Name:      p.target.Name,
		Active:    p.state == StateRunning,
		State:     p.state,
		LogFile:   p.logPath,
		LastError: p.lastError,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		st.PID = p.cmd.Process.Pid
		st.StartedAt = p.startedAt
	}
	return st
}

// command resolves the executable and arguments for the target.
func (s *Supervisor) command(t config.BotTarget) (string, []string, error) {
	if t.Command == "" {
		if s.executable == "" {
			return "", nil, errors.New("executable path unknown")
		}
		args := append([]string{}, t.Args...)
		if s.configPath != "" {
			args = append(args, "--config", s.configPath)
		}
		return s.executable, args, nil
	}
	path, err := exec.LookPath(t.Command)
	if err != nil {
		return "", nil, err
	}
	return path, t.Args, nil
}

// start launches the bot and waits the grace period. Callers hold p.opMu.
func (s *Supervisor) start(ctx context.Context, p *process) (string, error) {
	name := p.target.Name
	logger := s.logger.With("bot", name)

	p.mu.Lock()
	p.refresh()
	if p.state == StateRunning {
		p.mu.Unlock()
		return "already running", nil
	}
	p.state = StateStarting
	p.mu.Unlock()

	fail := func(err *StartError) (string, error) {
		p.mu.Lock()
		p.state = StateStopped
		if err.Reason == ReasonExited {
			p.state = StateCrashed
		}
		p.lastError = err.Error()
		p.mu.Unlock()
		s.metrics.IncBotStart(name, "error")
		s.metrics.SetBotUp(name, false)
		logger.Error("Bot failed to start", "reason", err.Reason, "error", err.Err)
		return "", err
	}

	path, args, err := s.command(p.target)
	if err != nil {
		return fail(&StartError{Bot: name, Reason: ReasonNotFound, LogPath: p.logPath, Err: err})
	}
	if p.target.Dir != "" {
		if info, err := os.Stat(p.target.Dir); err != nil || !info.IsDir() {
			return fail(&StartError{Bot: name, Reason: ReasonNotFound, LogPath: p.logPath,
				Err: fmt.Errorf("working directory %s unavailable", p.target.Dir)})
		}
	}

	if archive, err := rotateLog(p.logPath, s.opts.MaxLogSize, s.now()); err != nil {
		logger.Warn("Failed to rotate bot log", "error", err)
	} else if archive != "" {
		logger.Info("Rotated bot log", "archive", archive)
	}

	logFile, err := openLog(p.logPath)
	if err != nil {
		return fail(&StartError{Bot: name, Reason: ReasonLogFile, LogPath: p.logPath, Err: err})
	}
	startedAt := s.now()
	fmt.Fprintf(logFile, "\n=== %s started at %s ===\n", name, startedAt.Format("2006-01-02 15:04:05"))

	// ctx only guards the spawn; once spawned the child outlives the caller.
	if err := ctx.Err(); err != nil {
		logFile.Close()
		return fail(&StartError{Bot: name, Reason: ReasonSpawn, LogPath: p.logPath, Err: err})
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = p.target.Dir
	cmd.Env = append(os.Environ(), "GROUPBOT_BOT_NAME="+name)
	cmd.Env = append(cmd.Env, p.target.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setSysProcAttr(cmd)

	// Pdeathsig follows the forking thread, so the spawning goroutine keeps
	// its thread until the child is gone.
	spawned := make(chan error, 1)
	registered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := cmd.Start(); err != nil {
			spawned <- err
			return
		}
		spawned <- nil
		<-registered

		err := cmd.Wait()
		logFile.Close()
		p.mu.Lock()
		p.exitErr = err
		p.logFile = nil
		p.mu.Unlock()
		close(done)
	}()

	if err := <-spawned; err != nil {
		logFile.Close()
		return fail(&StartError{Bot: name, Reason: ReasonSpawn, LogPath: p.logPath, Err: err})
	}

	p.mu.Lock()
	p.cmd = cmd
	p.logFile = logFile
	p.done = done
	p.exitErr = nil
	p.startedAt = startedAt
	p.mu.Unlock()
	close(registered)

	logger.Info("Bot process spawned", "pid", cmd.Process.Pid, "log", p.logPath)

	select {
	case <-done:
		p.mu.Lock()
		exitErr := p.exitErr
		p.cmd = nil
		p.done = nil
		p.mu.Unlock()
		tail, _ := TailFile(p.logPath, s.opts.TailLines)
		if exitErr == nil {
			exitErr = errors.New("exit status 0")
		}
		return fail(&StartError{Bot: name, Reason: ReasonExited, LogPath: p.logPath, Tail: tail, Err: exitErr})
	case <-time.After(s.opts.GracePeriod):
	}

	p.mu.Lock()
	p.state = StateRunning
	p.lastError = ""
	p.mu.Unlock()

	s.metrics.IncBotStart(name, "ok")
	s.metrics.SetBotUp(name, true)
	logger.Info("Bot started", "pid", cmd.Process.Pid)
	return "started", nil
}

// stop terminates the bot. Callers hold p.opMu.
func (s *Supervisor) stop(p *process) (string, error) {
	p.mu.Lock()
	p.refresh()
	running := p.cmd != nil
	p.mu.Unlock()

	if !running {
		return "not running", nil
	}

	err := s.stopProcess(p)

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	s.metrics.SetBotUp(p.target.Name, false)

	if err != nil {
		return "", fmt.Errorf("stop %s: %w", p.target.Name, err)
	}
	s.logger.Info("Bot stopped", "bot", p.target.Name)
	return "stopped", nil
}

// stopProcess sends SIGTERM, waits up to StopTimeout, then kills. The
// process handle is cleared on every path.
func (s *Supervisor) stopProcess(p *process) error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cmd = nil
		p.done = nil
		p.mu.Unlock()
	}()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("Failed to signal bot", "bot", p.target.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.opts.StopTimeout):
	}

	s.logger.Warn("Bot ignored termination, killing", "bot", p.target.Name, "timeout", s.opts.StopTimeout)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.opts.StopTimeout):
		return errors.New("process did not exit after kill")
	}
}

// handles reports whether the descriptor still holds a process or log file.
func (p *process) handles() (hasCmd, hasLog bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil, p.logFile != nil
}
