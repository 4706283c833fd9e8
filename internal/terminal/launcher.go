package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
)

// ServerSpec describes one terminal-server child.
type ServerSpec struct {
	// Program is the server executable plus any leading arguments.
	Program   []string
	Port      int
	Directory string
	Shell     string
	// Output receives stdout and stderr merged.
	Output io.Writer
	Env    []string
}

// Argv returns the full command line:
// <program...> <port> <start-directory> <shell-command>.
func (s ServerSpec) Argv() []string {
	argv := make([]string, 0, len(s.Program)+3)
	argv = append(argv, s.Program...)
	return append(argv, strconv.Itoa(s.Port), s.Directory, s.Shell)
}

// Launcher starts terminal-server children.
type Launcher interface {
	Launch(ctx context.Context, spec ServerSpec) (Process, error)
}

// Process is a running child.
type Process interface {
	Pid() int
	Args() []string
	// Exited reports, without blocking, whether the child has exited.
	Exited() bool
	// ExitErr returns the wait error once exited, nil before.
	ExitErr() error
	// Kill terminates the child. Killing an exited child is a no-op.
	Kill() error
}

// ExecLauncher launches children with os/exec.
type ExecLauncher struct {
	Logger *logging.Logger
	// WaitDelay bounds how long Wait waits for output copying after the
	// child exits.
	WaitDelay time.Duration
}

// Launch starts the child. The child's lifetime is not tied to ctx.
func (l ExecLauncher) Launch(ctx context.Context, spec ServerSpec) (Process, error) {
	if len(spec.Program) == 0 || spec.Program[0] == "" {
		return nil, fmt.Errorf("%w: empty terminal-server command", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	argv := spec.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = spec.Output
	cmd.Stderr = spec.Output
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &execProcess{cmd: cmd, args: argv, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
		logger.Debug("terminal server exited",
			zap.Int("pid", cmd.Process.Pid),
			zap.Error(p.err),
		)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	args []string
	done chan struct{}
	err  error // written before done is closed
}

func (p *execProcess) Pid() int       { return p.cmd.Process.Pid }
func (p *execProcess) Args() []string { return p.args }

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) ExitErr() error {
	if !p.Exited() {
		return nil
	}
	return p.err
}

func (p *execProcess) Kill() error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	return nil
}

// Done is closed once the child has been reaped.
func (p *execProcess) Done() <-chan struct{} { return p.done }
