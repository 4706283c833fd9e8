// Package chrome implements surface.Surface on a real Chromium instance
// driven over the DevTools protocol with go-rod.
package chrome

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

const postBinding = "__webterm_post"

// hostShim gives the page the same host.post(kind, data) bridge the
// sandbox provides.
const hostShim = `<script>window.host = { post: function (kind, data) { window.` + postBinding + `({kind: String(kind), data: String(data)}); return true; } };</script>`

// Config configures the browser.
type Config struct {
	// Bin is the browser executable. Empty lets rod find or download one.
	Bin string
	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL string
	Headless   bool
	// EventBuffer is the capacity of the page event channel.
	EventBuffer int
}

// Page is one browser tab hosting the terminal page.
type Page struct {
	log      *logging.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	unexpose func() error

	mu     sync.Mutex
	events chan surface.Event
	closed bool
}

// New launches (or connects to) a browser and opens a blank tab.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 16
	}
	p := &Page{log: logger, events: make(chan surface.Event, cfg.EventBuffer)}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		p.launcher = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			p.launcher = p.launcher.Bin(cfg.Bin)
		}
		u, err := p.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("chrome: launch: %w", err)
		}
		controlURL = u
	}

	p.browser = rod.New().ControlURL(controlURL)
	if err := p.browser.Connect(); err != nil {
		p.cleanupLauncher()
		return nil, fmt.Errorf("chrome: connect %s: %w", controlURL, err)
	}

	page, err := p.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("chrome: open tab: %w", err)
	}
	p.page = page

	unexpose, err := page.Expose(postBinding, func(arg gson.JSON) (interface{}, error) {
		ok := p.post(surface.Event{
			Kind: surface.EventKind(arg.Get("kind").Str()),
			Data: arg.Get("data").Str(),
		})
		return ok, nil
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("chrome: expose host bridge: %w", err)
	}
	p.unexpose = unexpose

	logger.Debug("chrome surface ready", zap.String("control_url", controlURL))
	return p, nil
}

// Factory returns a surface.Factory that opens one browser per buffer.
func Factory(cfg Config, logger *logging.Logger) surface.Factory {
	return func(ctx context.Context) (surface.Surface, error) {
		return New(ctx, cfg, logger)
	}
}

func (p *Page) post(ev surface.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		p.log.Warn("dropping page event, queue full", zap.String("kind", string(ev.Kind)))
		return false
	}
}

func (p *Page) live(ctx context.Context) (*rod.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.page == nil {
		return nil, surface.ErrClosed
	}
	return p.page.Context(ctx), nil
}

// Load replaces the tab's document with page.
func (p *Page) Load(ctx context.Context, page surface.Page) error {
	tab, err := p.live(ctx)
	if err != nil {
		return err
	}
	if err := tab.SetDocumentContent(injectShim(page.HTML, page.BaseURL)); err != nil {
		return fmt.Errorf("chrome: set content: %w", err)
	}
	return nil
}

// injectShim places the host bridge and a <base> element right after
// <head> so both exist before any page script runs.
func injectShim(html, baseURL string) string {
	inject := hostShim
	if baseURL != "" {
		inject = `<base href="` + strings.TrimSuffix(baseURL, "/") + `/">` + inject
	}
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<head>"); i >= 0 {
		i += len("<head>")
		return html[:i] + inject + html[i:]
	}
	return inject + html
}

// Title returns document.title.
func (p *Page) Title(ctx context.Context) (string, error) {
	tab, err := p.live(ctx)
	if err != nil {
		return "", err
	}
	res, err := tab.Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("chrome: read title: %w", err)
	}
	return res.Value.Str(), nil
}

// Dispatch calls window.__webterm_dispatch with the encoded command.
func (p *Page) Dispatch(ctx context.Context, cmd surface.Command) (string, error) {
	envelope, err := cmd.Encode()
	if err != nil {
		return "", err
	}
	tab, err := p.live(ctx)
	if err != nil {
		return "", err
	}
	res, err := tab.Eval(`(name, env) => {
		const fn = window[name];
		if (typeof fn !== "function") { return {missing: true}; }
		const out = fn(env);
		return {value: out == null ? null : String(out)};
	}`, surface.DispatchFunc, envelope)
	if err != nil {
		return "", fmt.Errorf("chrome: dispatch %s: %w", cmd.Op, err)
	}
	if res.Value.Get("missing").Bool() {
		return "", surface.ErrNoDispatcher
	}
	v := res.Value.Get("value")
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

// Focus moves the mouse to the page origin and clicks once.
func (p *Page) Focus(ctx context.Context) error {
	tab, err := p.live(ctx)
	if err != nil {
		return err
	}
	if err := tab.Mouse.MoveTo(proto.Point{X: 0, Y: 0}); err != nil {
		return fmt.Errorf("chrome: focus: %w", err)
	}
	if err := tab.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("chrome: focus: %w", err)
	}
	return nil
}

// Events implements surface.Surface.
func (p *Page) Events() <-chan surface.Event {
	return p.events
}

// Close closes the tab, and the browser too when New launched it.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.unexpose != nil {
		keep(p.unexpose())
	}
	if p.page != nil {
		keep(p.page.Timeout(2 * time.Second).Close())
	}
	if p.browser != nil && p.launcher != nil {
		keep(p.browser.Close())
	}
	p.cleanupLauncher()
	return firstErr
}

func (p *Page) cleanupLauncher() {
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher.Cleanup()
	}
}

var _ surface.Surface = (*Page)(nil)
