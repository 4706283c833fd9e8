package terminal

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/shared/portutil"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

// Session is the mutable state of one buffer. Only the buffer's event loop
// touches it.
type Session struct {
	Port             int
	Process          Process
	StartDirectory   string
	CurrentDirectory string
	SearchTerm       string
}

// Info is a point-in-time view of a buffer for the host.
type Info struct {
	ID               string      `json:"id"`
	Command          string      `json:"command"`
	Args             []string    `json:"args"`
	Port             int         `json:"port"`
	PID              int         `json:"pid"`
	StartDirectory   string      `json:"start_directory"`
	CurrentDirectory string      `json:"current_directory"`
	SearchTerm       string      `json:"search_term,omitempty"`
	Theme            Theme       `json:"theme"`
	PendingPrompts   []PromptTag `json:"pending_prompts,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
}

type closeReason string

const (
	closeExited closeReason = "exited"
	closeHost   closeReason = "host"
)

type continuation func(ctx context.Context, text string) error

// Buffer is one terminal session: a terminal-server child, the page that
// renders it, and the event loop that relays between them and the host.
//
// All state is owned by a single goroutine. Public methods hand closures
// to it and wait for the result, so they are safe for concurrent use.
type Buffer struct {
	id        string
	opts      Options
	log       *logging.Logger
	host      Host
	metrics   *monitoring.Metrics
	clock     clock.WithTicker
	surface   surface.Surface
	output    *logging.Ring
	sink      *outputSink
	theme     Theme
	startedAt time.Time

	session  Session
	pending  map[PromptTag]continuation
	handlers map[CommandID]handler

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}
	closed bool
	ticker clock.Ticker
	focus  clock.Timer
	events <-chan surface.Event
}

// New starts a buffer: it allocates a port, spawns the terminal-server,
// optionally waits for it to listen, then loads the page into a fresh
// surface. Any failure undoes the steps already taken and returns a
// *StartError. ctx bounds startup only.
func New(ctx context.Context, opts Options) (*Buffer, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	b := &Buffer{
		id:        opts.ID,
		opts:      opts,
		log:       opts.Logger.Named("buffer").With(zap.String("buffer_id", opts.ID)),
		host:      opts.Host,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		theme:     opts.Vars.Theme(),
		output:    logging.NewRing(opts.OutputBytes),
		pending:   map[PromptTag]continuation{},
		ops:       make(chan func()),
		done:      make(chan struct{}),
		startedAt: opts.Clock.Now(),
	}
	b.handlers = b.buildHandlers()
	b.sink = newOutputSink(b.output, b.log.Named("child").Writer(zap.DebugLevel))

	tmpl, err := opts.template()
	if err != nil {
		return nil, b.abort("template", err)
	}

	port, err := opts.AllocatePort()
	if err != nil {
		return nil, b.abort("port", err)
	}

	proc, err := opts.Launcher.Launch(ctx, ServerSpec{
		Program:   opts.ServerCommand,
		Port:      port,
		Directory: opts.Directory,
		Shell:     opts.Command,
		Output:    b.sink,
	})
	if err != nil {
		return nil, b.abort("spawn", err)
	}
	b.session = Session{
		Port:             port,
		Process:          proc,
		StartDirectory:   opts.Directory,
		CurrentDirectory: opts.Directory,
	}
	b.log.Info("terminal server started",
		zap.Int("port", port),
		zap.Int("pid", proc.Pid()),
		zap.Strings("args", proc.Args()),
	)

	if opts.ReadyTimeout > 0 {
		readyCtx, cancel := context.WithTimeout(ctx, opts.ReadyTimeout)
		err := portutil.WaitListening(readyCtx, port, 25*time.Millisecond, proc.Exited)
		cancel()
		if err != nil {
			if tail := b.output.Tail(5); tail != "" {
				b.log.Warn("terminal server output", zap.String("tail", tail))
			}
			return nil, b.abort("ready", err)
		}
	}

	surf, err := opts.NewSurface(ctx)
	if err != nil {
		return nil, b.abort("surface", err)
	}
	b.surface = surf

	page := surface.Page{
		HTML: tmpl.Render(PageParams{
			Port:      port,
			Theme:     b.theme,
			FontSize:  opts.Vars.FontSize,
			Directory: opts.Directory,
		}),
		BaseURL: tmpl.BaseURL,
	}
	loadCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
	err = surf.Load(loadCtx, page)
	cancel()
	if err != nil {
		return nil, b.abort("load", err)
	}

	b.start()
	b.metrics.BufferStarted()
	return b, nil
}

// abort releases whatever startup acquired and wraps err.
func (b *Buffer) abort(stage string, err error) error {
	if b.surface != nil {
		if cerr := b.surface.Close(); cerr != nil {
			b.log.Warn("failed to close surface", zap.Error(cerr))
		}
	}
	if p := b.session.Process; p != nil {
		if kerr := p.Kill(); kerr != nil {
			b.log.Warn("failed to kill terminal server", zap.Error(kerr))
		}
	}
	b.sink.Close()
	b.metrics.BufferFailed(stage)
	b.log.Error("buffer start failed", zap.String("stage", stage), zap.Error(err))
	return &StartError{Stage: stage, Err: err}
}

func (b *Buffer) start() {
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.ticker = b.clock.NewTicker(b.opts.PollInterval)
	b.focus = b.clock.NewTimer(b.opts.FocusDelay)
	b.events = b.surface.Events()
	go b.loop()
}

func (b *Buffer) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			b.teardown(closeHost)
		case <-b.focus.C():
			b.focusSurface()
		case <-b.ticker.C():
			b.poll()
		case ev, ok := <-b.events:
			if !ok {
				b.events = nil
				continue
			}
			b.handleEvent(ev)
		case op := <-b.ops:
			op()
		}
		if b.closed {
			return
		}
	}
}

// do runs fn on the event loop and returns its error.
func (b *Buffer) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	op := func() {
		if b.closed {
			result <- ErrClosed
			return
		}
		result <- fn()
	}
	select {
	case b.ops <- op:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-result
}

// teardown stops the poll ticker, releases the surface and, depending on
// reason, kills the child or asks the host to close the buffer. It runs
// at most once.
func (b *Buffer) teardown(reason closeReason) {
	if b.closed {
		return
	}
	b.closed = true

	b.ticker.Stop()
	b.focus.Stop()
	if err := b.surface.Close(); err != nil {
		b.log.Warn("failed to close surface", zap.Error(err))
	}
	if reason == closeHost {
		if err := b.session.Process.Kill(); err != nil {
			b.log.Warn("failed to kill terminal server", zap.Error(err))
		}
	}
	b.sink.Close()
	b.pending = nil
	b.cancel()
	b.metrics.BufferClosed(string(reason))
	b.log.Info("buffer closed", zap.String("reason", string(reason)))

	if reason == closeExited {
		b.host.RequestClose(b.id)
	}
}

// callCtx bounds one surface call.
func (b *Buffer) callCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.opts.CallTimeout)
}

// ID returns the buffer ID.
func (b *Buffer) ID() string { return b.id }

// Done is closed once the buffer has been torn down.
func (b *Buffer) Done() <-chan struct{} { return b.done }

// Output returns the last n lines the terminal-server wrote to stdout or
// stderr.
func (b *Buffer) Output(n int) string { return b.output.Tail(n) }

// Info returns a snapshot of the buffer state.
func (b *Buffer) Info(ctx context.Context) (Info, error) {
	var info Info
	err := b.do(ctx, func() error {
		info = b.info()
		return nil
	})
	return info, err
}

func (b *Buffer) info() Info {
	info := Info{
		ID:               b.id,
		Command:          b.opts.Command,
		Args:             b.session.Process.Args(),
		Port:             b.session.Port,
		PID:              b.session.Process.Pid(),
		StartDirectory:   b.session.StartDirectory,
		CurrentDirectory: b.session.CurrentDirectory,
		SearchTerm:       b.session.SearchTerm,
		Theme:            b.theme,
		StartedAt:        b.startedAt,
	}
	for tag := range b.pending {
		info.PendingPrompts = append(info.PendingPrompts, tag)
	}
	slices.Sort(info.PendingPrompts)
	return info
}

// Close tears the buffer down on behalf of the host: the surface is
// released and the child killed. The host is not asked to close the
// buffer again. Closing a closed buffer returns nil.
func (b *Buffer) Close(ctx context.Context) error {
	err := b.do(ctx, func() error {
		b.teardown(closeHost)
		return nil
	})
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	if err != nil {
		b.cancel()
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
