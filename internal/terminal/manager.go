package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Request is what a host supplies to open a buffer. Empty fields fall
// back to the manager defaults.
type Request struct {
	Command   string   `json:"command"`
	Directory string   `json:"directory"`
	Vars      HostVars `json:"vars"`
}

// Manager owns the live buffers of one host.
type Manager struct {
	defaults Options
	buffers  sync.Map // id -> *Buffer
	wg       sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// NewManager creates a manager whose buffers start from defaults.
func NewManager(defaults Options) *Manager {
	return &Manager{defaults: defaults}
}

// Create starts a buffer for req and tracks it until it closes. It fails
// with ErrManagerClosed once CloseAll has begun.
func (m *Manager) Create(ctx context.Context, req Request) (*Buffer, error) {
	if m.isClosing() {
		return nil, ErrManagerClosed
	}
	opts := m.defaults
	opts.ID = ""
	if req.Command != "" {
		opts.Command = req.Command
	}
	if req.Directory != "" {
		opts.Directory = req.Directory
	}
	if req.Vars.DarkMode != "" {
		opts.Vars.DarkMode = req.Vars.DarkMode
	}
	if req.Vars.ThemeMode != "" {
		opts.Vars.ThemeMode = req.Vars.ThemeMode
	}
	if req.Vars.FontSize != "" {
		opts.Vars.FontSize = req.Vars.FontSize
	}

	b, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		_ = b.Close(ctx)
		return nil, ErrManagerClosed
	}
	m.buffers.Store(b.ID(), b)
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		<-b.Done()
		m.buffers.Delete(b.ID())
	}()
	return b, nil
}

func (m *Manager) isClosing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closing
}

// Get returns the live buffer with the given ID.
func (m *Manager) Get(id string) (*Buffer, error) {
	v, ok := m.buffers.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.(*Buffer), nil
}

// List returns info for every live buffer, oldest first.
func (m *Manager) List(ctx context.Context) []Info {
	var infos []Info
	m.buffers.Range(func(_, v interface{}) bool {
		info, err := v.(*Buffer).Info(ctx)
		if err == nil {
			infos = append(infos, info)
		}
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len reports the number of live buffers.
func (m *Manager) Len() int {
	n := 0
	m.buffers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// RunCommand runs a named command on one buffer.
func (m *Manager) RunCommand(ctx context.Context, id, command string, args []string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	return b.Run(ctx, CommandID(command), args...)
}

// HandleInput answers a prompt raised by one buffer.
func (m *Manager) HandleInput(ctx context.Context, id string, tag PromptTag, content string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	return b.HandleInput(ctx, tag, content)
}

// Close closes one buffer on behalf of the host.
func (m *Manager) Close(ctx context.Context, id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := b.Close(ctx); err != nil {
		return err
	}
	m.buffers.Delete(id)
	return nil
}

// CloseAll closes every buffer and waits for their bookkeeping to finish.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	var errs []error
	m.buffers.Range(func(k, v interface{}) bool {
		if err := v.(*Buffer).Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", k, err))
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if err := errors.Join(errs...); err != nil {
		if m.defaults.Logger != nil {
			m.defaults.Logger.Warn("closing buffers", zap.Error(err))
		}
		return err
	}
	return nil
}
