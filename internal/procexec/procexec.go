//go:build linux || darwin

// Package procexec spawns child processes the way the teacher's
// internal/os/exec package does: a context-scoped command that, on
// cancellation, sends SIGINT first and only escalates to SIGKILL after
// a grace period, so a child has a chance to run its own cleanup
// before being killed outright. Modeled on
// internal/os/exec/cmd_unix_test.go (Command, Configure,
// WithGracefulShutdownDelay); the real source for that package was not
// present in the retrieval pack, only its tests, so this is a fresh
// implementation grounded on the behavior those tests specify.
package procexec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultGracefulShutdownDelay is how long Cmd waits after sending
// SIGINT before escalating to SIGKILL.
const DefaultGracefulShutdownDelay = 5 * time.Second

// Option configures a Cmd before Run is called.
type Option func(*Cmd)

// WithGracefulShutdownDelay overrides DefaultGracefulShutdownDelay.
func WithGracefulShutdownDelay(d time.Duration) Option {
	return func(c *Cmd) { c.shutdownDelay = d }
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(c *Cmd) { c.cmd.Dir = dir }
}

// WithEnv replaces the child's environment.
func WithEnv(env []string) Option {
	return func(c *Cmd) { c.cmd.Env = env }
}

// WithStdout/WithStderr redirect the child's output streams.
func WithStdout(w interface{ Write([]byte) (int, error) }) Option {
	return func(c *Cmd) { c.cmd.Stdout = w }
}

func WithStderr(w interface{ Write([]byte) (int, error) }) Option {
	return func(c *Cmd) { c.cmd.Stderr = w }
}

// Cmd wraps os/exec.Cmd with graceful, context-driven shutdown. The
// child is placed in its own process group so a signal sent to Cmd
// reaches any grandchildren it spawned too.
type Cmd struct {
	cmd           *exec.Cmd
	shutdownDelay time.Duration

	mu      sync.Mutex
	started bool
}

// Command builds a Cmd for name+args. The child does not start until
// Run is called; ctx governs the whole lifetime, including graceful
// shutdown, independent of any timeout Run's caller applies separately.
func Command(ctx context.Context, name string, args ...string) *Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	return &Cmd{cmd: cmd, shutdownDelay: DefaultGracefulShutdownDelay}
}

// Configure applies options before Run.
func (c *Cmd) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Process exposes the underlying *os.Process once started, for tests
// that want to signal it directly.
func (c *Cmd) Process() *os.Process {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cmd.Process
}

// Run starts the child and waits for it to exit. If the command's
// context is cancelled before the child exits, Run sends SIGINT to the
// child's process group and waits up to shutdownDelay before
// escalating to SIGKILL.
func (c *Cmd) Run() error {
	c.cmd.Cancel = func() error {
		c.mu.Lock()
		proc := c.cmd.Process
		c.mu.Unlock()

		if proc == nil {
			return nil
		}

		return signalGroup(proc.Pid, syscall.SIGINT)
	}
	c.cmd.WaitDelay = c.shutdownDelay

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	return c.cmd.Run()
}

// signalGroup signals the negative pid, i.e. the whole process group
// Setpgid created, so orphaned grandchildren are reached too.
func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}

	return nil
}

// ExitCode extracts the child's exit code from the error Run returned.
// Returns (0, err) if err is not an *exec.ExitError.
func ExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return 0, err
}
