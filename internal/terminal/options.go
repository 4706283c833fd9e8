package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/utils/clock"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/providers/clipboard"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/shared/portutil"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultFocusDelay   = 250 * time.Millisecond
	DefaultCallTimeout  = 2 * time.Second
)

// Options configures one buffer. Zero values take the defaults noted on
// each field.
type Options struct {
	// ID defaults to a fresh buf_ ULID.
	ID string
	// Command is the shell command the terminal-server runs. Defaults to
	// $SHELL, then /bin/sh.
	Command string
	// Directory is the start directory. Defaults to the home directory.
	Directory string
	Vars      HostVars

	// ServerCommand is the terminal-server program plus leading args.
	ServerCommand []string
	// Template is the page. Nil loads TemplatePath, or the built-in page
	// with AssetsURL as its base.
	Template     *Template
	TemplatePath string
	AssetsURL    string

	PollInterval time.Duration // default 250ms
	FocusDelay   time.Duration // default 250ms
	// ReadyTimeout bounds the wait for the server port. Zero skips it.
	ReadyTimeout time.Duration
	// CallTimeout bounds each surface call. Default 2s.
	CallTimeout time.Duration
	OutputBytes int

	Launcher     Launcher
	NewSurface   surface.Factory
	Clipboard    clipboard.Clipboard
	Host         Host
	Clock        clock.WithTicker
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
	AllocatePort func() (int, error)
}

func (o Options) withDefaults() (Options, error) {
	if o.ID == "" {
		o.ID = id.NewBufferID().String()
	}
	if o.Command == "" {
		o.Command = os.Getenv("SHELL")
	}
	if o.Command == "" {
		o.Command = "/bin/sh"
	}
	if o.Directory == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return o, fmt.Errorf("%w: no start directory and no home: %v", ErrInvalidArgument, err)
		}
		o.Directory = home
	}
	if !filepath.IsAbs(o.Directory) {
		abs, err := filepath.Abs(o.Directory)
		if err != nil {
			return o, fmt.Errorf("%w: start directory %q: %v", ErrInvalidArgument, o.Directory, err)
		}
		o.Directory = abs
	}
	if o.Vars.DarkMode == "" {
		o.Vars.DarkMode = DarkModeFollow
	}
	if o.Vars.FontSize == "" {
		o.Vars.FontSize = "13"
	}
	if len(o.ServerCommand) == 0 {
		o.ServerCommand = []string{"terminal-server"}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.FocusDelay <= 0 {
		o.FocusDelay = DefaultFocusDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Launcher == nil {
		o.Launcher = ExecLauncher{Logger: o.Logger}
	}
	if o.NewSurface == nil {
		return o, fmt.Errorf("%w: no surface factory", ErrInvalidArgument)
	}
	if o.Clipboard == nil {
		o.Clipboard = clipboard.Default()
	}
	if o.Host == nil {
		o.Host = nopHost{}
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.AllocatePort == nil {
		o.AllocatePort = portutil.FreePort
	}
	return o, nil
}

func (o Options) template() (Template, error) {
	switch {
	case o.Template != nil:
		return *o.Template, nil
	case o.TemplatePath != "":
		return LoadTemplate(o.TemplatePath)
	default:
		return DefaultTemplate(o.AssetsURL), nil
	}
}
