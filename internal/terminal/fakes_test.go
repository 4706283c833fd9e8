package terminal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/providers/clipboard"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

type fakeProcess struct {
	args   []string
	exited atomic.Bool
	kills  atomic.Int32
}

func (p *fakeProcess) Pid() int       { return 4242 }
func (p *fakeProcess) Args() []string { return p.args }
func (p *fakeProcess) Exited() bool   { return p.exited.Load() }
func (p *fakeProcess) exit()          { p.exited.Store(true) }

func (p *fakeProcess) ExitErr() error {
	if p.Exited() {
		return errors.New("exit status 1")
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.exited.Store(true)
	return nil
}

type fakeLauncher struct {
	mu    sync.Mutex
	specs []ServerSpec
	proc  *fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, spec ServerSpec) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	if l.err != nil {
		return nil, l.err
	}
	l.proc = &fakeProcess{args: spec.Argv()}
	return l.proc, nil
}

func (l *fakeLauncher) launched() []ServerSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ServerSpec(nil), l.specs...)
}

type fakeSurface struct {
	mu          sync.Mutex
	page        surface.Page
	title       string
	selection   string
	dispatched  []surface.Command
	dispatchErr error
	loadErr     error
	titleCalls  int
	focusCalls  int
	closeCalls  int
	events      chan surface.Event
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{events: make(chan surface.Event, 8)}
}

func (s *fakeSurface) Load(_ context.Context, page surface.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}
	s.page = page
	s.title = ""
	if i := strings.Index(page.HTML, "<title>"); i >= 0 {
		rest := page.HTML[i+len("<title>"):]
		if j := strings.Index(rest, "</title>"); j >= 0 {
			s.title = rest[:j]
		}
	}
	return nil
}

func (s *fakeSurface) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titleCalls++
	return s.title, nil
}

func (s *fakeSurface) Dispatch(_ context.Context, cmd surface.Command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatchErr != nil {
		return "", s.dispatchErr
	}
	s.dispatched = append(s.dispatched, cmd)
	if cmd.Op == surface.OpGetSelection {
		return s.selection, nil
	}
	return "", nil
}

func (s *fakeSurface) Focus(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusCalls++
	return nil
}

func (s *fakeSurface) Events() <-chan surface.Event { return s.events }

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closeCalls == 1 {
		close(s.events)
	}
	return nil
}

func (s *fakeSurface) setTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

func (s *fakeSurface) setSelection(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = text
}

func (s *fakeSurface) commands() []surface.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Command(nil), s.dispatched...)
}

func (s *fakeSurface) counts() (title, focus, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titleCalls, s.focusCalls, s.closeCalls
}

type recordingHost struct {
	mu    sync.Mutex
	notes []Notification
}

func (h *recordingHost) host() Host {
	return HostFunc(func(n Notification) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.notes = append(h.notes, n)
	})
}

func (h *recordingHost) all() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.notes...)
}

func (h *recordingHost) kinds(kind NotificationKind) []Notification {
	var out []Notification
	for _, n := range h.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// fixture is a buffer wired to fakes and a fake clock.
type fixture struct {
	buf       *Buffer
	clock     *testingclock.FakeClock
	launcher  *fakeLauncher
	surface   *fakeSurface
	host      *recordingHost
	clipboard *clipboard.Memory
}

const testTemplate = "<title>%5</title>"

func testOptions(f *fixture) Options {
	tmpl := Template{Source: testTemplate, BaseURL: "file:///opt/webterm"}
	opts := Options{
		Command:       "bash",
		Directory:     "/tmp",
		ServerCommand: []string{"terminal-server"},
		Template:      &tmpl,
		Launcher:      f.launcher,
		NewSurface:    func(context.Context) (surface.Surface, error) { return f.surface, nil },
		Host:          f.host.host(),
		AllocatePort:  func() (int, error) { return 4000, nil },
	}
	if f.clock != nil {
		opts.Clock = f.clock
	}
	if f.clipboard != nil {
		opts.Clipboard = f.clipboard
	}
	return opts
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		clock:     testingclock.NewFakeClock(time.Now()),
		launcher:  &fakeLauncher{},
		surface:   newFakeSurface(),
		host:      &recordingHost{},
		clipboard: clipboard.NewMemory(""),
	}
	opts := testOptions(f)
	if mutate != nil {
		mutate(&opts)
	}
	b, err := New(context.Background(), opts)
	require.NoError(t, err)
	f.buf = b
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Close(ctx)
	})
	return f
}

// tick advances the clock one poll interval and waits until the loop has
// finished handling the resulting poll.
func (f *fixture) tick(t *testing.T) {
	t.Helper()
	before, _, _ := f.surface.counts()
	f.clock.Step(DefaultPollInterval)
	require.Eventually(t, func() bool {
		calls, _, _ := f.surface.counts()
		return calls > before
	}, time.Second, time.Millisecond)
	f.sync(t)
}

// sync waits for the loop to drain whatever it is handling.
func (f *fixture) sync(t *testing.T) {
	t.Helper()
	select {
	case <-f.buf.Done():
	default:
		_, _ = f.buf.Info(context.Background())
	}
}
