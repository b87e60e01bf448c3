package host

import (
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// Fault is the one-shot crash/error signal for a child process. It is
// delivered at most once per child lifetime on the channel returned by
// Faults, replacing recurring exit callbacks.
type Fault struct {
	Err      error
	ExitCode int
}

// Child is a handle to a running analysis server process. It is created by
// the supervisor, never reused, and owns the process's standard streams.
type Child struct {
	// SessionID correlates the child with journal rows and log output.
	SessionID string
	Strategy  Strategy

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	faults        chan Fault
	done          chan struct{}
	stderrDrained chan struct{}

	mu      sync.Mutex
	closers []io.Closer

	log zerolog.Logger
}

// Faults delivers the child's single fault notification. The channel is
// buffered so the supervisor never blocks on an absent consumer.
func (c *Child) Faults() <-chan Fault { return c.faults }

// Done is closed once the process has exited and its resources are released.
func (c *Child) Done() <-chan struct{} { return c.done }

// PID reports the child's process id, or 0 before start.
func (c *Child) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stream exposes the child's stdout/stdin as a single duplex stream for the
// protocol client.
func (c *Child) Stream() io.ReadWriteCloser {
	return &childStream{child: c}
}

// Kill terminates the process. The wait goroutine performs cleanup and fault
// delivery; Kill only forces the exit.
func (c *Child) Kill() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return errors.New("child not started")
	}
	return c.cmd.Process.Kill()
}

// addCloser registers a resource released when the child exits. Registering
// per child keeps repeated launch/crash cycles from leaking file handles.
func (c *Child) addCloser(cl io.Closer) {
	c.mu.Lock()
	c.closers = append(c.closers, cl)
	c.mu.Unlock()
}

func (c *Child) closeAll() {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()
	for _, cl := range closers {
		if err := cl.Close(); err != nil {
			c.log.Debug().Err(err).Msg("child resource close")
		}
	}
}

type childStream struct {
	child *Child
}

func (s *childStream) Read(p []byte) (int, error)  { return s.child.stdout.Read(p) }
func (s *childStream) Write(p []byte) (int, error) { return s.child.stdin.Write(p) }

func (s *childStream) Close() error {
	_ = s.child.stdout.Close()
	return s.child.stdin.Close()
}
