package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

// Page is a headless surface. It parses the page with goquery, runs its
// inline scripts in a goja Runtime and exposes document, window and host
// objects to them. External scripts and network access are not
// available, so the page must degrade to its dispatcher alone.
type Page struct {
	rt  *Runtime
	log *logging.Logger

	// owned by the runtime goroutine while scripts run
	title     string
	dom       *DOM
	listeners map[string][]goja.Callable
	focused   bool
	baseURL   string

	mu     sync.Mutex
	events chan surface.Event
	closed bool
}

// New creates an empty page.
func New(config Config, logger *logging.Logger) *Page {
	if logger == nil {
		logger = logging.NewNop()
	}
	config = config.withDefaults()
	return &Page{
		rt:     NewRuntime(config, logger),
		log:    logger,
		events: make(chan surface.Event, config.EventBuffer),
		dom:    NewDOM(nil),
	}
}

// Factory returns a surface.Factory producing sandbox pages.
func Factory(config Config, logger *logging.Logger) surface.Factory {
	return func(context.Context) (surface.Surface, error) {
		return New(config, logger), nil
	}
}

// Load parses page, installs the bridge objects on a fresh VM and runs
// every inline script in document order.
func (p *Page) Load(ctx context.Context, page surface.Page) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("sandbox: parse page: %w", err)
	}
	if err := p.rt.Reset(); err != nil {
		return surface.ErrClosed
	}

	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			p.log.Debug("skipping external script", zap.String("src", src))
			return
		}
		if typ, ok := s.Attr("type"); ok && !isJavaScript(typ) {
			return
		}
		scripts = append(scripts, s.Text())
	})

	_, err = p.rt.Run(ctx, func(vm *goja.Runtime) (goja.Value, error) {
		p.title = strings.TrimSpace(doc.Find("title").First().Text())
		p.dom = NewDOM(doc)
		p.listeners = map[string][]goja.Callable{}
		p.focused = false
		p.baseURL = page.BaseURL
		return goja.Undefined(), p.installBridge(vm)
	})
	if err != nil {
		return fmt.Errorf("sandbox: install bridge: %w", err)
	}

	for i, src := range scripts {
		_, err := p.rt.Run(ctx, func(vm *goja.Runtime) (goja.Value, error) {
			return vm.RunScript(fmt.Sprintf("inline-script-%d.js", i), src)
		})
		if err != nil {
			return fmt.Errorf("sandbox: script %d: %w", i, err)
		}
	}
	return nil
}

func isJavaScript(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}

// installBridge defines document, location and host on vm.
func (p *Page) installBridge(vm *goja.Runtime) error {
	document := vm.NewObject()
	err := document.DefineAccessorProperty("title",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(p.title) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			p.title = call.Argument(0).String()
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	if err != nil {
		return err
	}

	query := func(all bool) func(string) interface{} {
		return func(selector string) interface{} {
			elems := p.dom.Query(selector)
			if all {
				out := make([]interface{}, len(elems))
				for i, e := range elems {
					out[i] = elementProxy(e)
				}
				return out
			}
			if len(elems) == 0 {
				return nil
			}
			return elementProxy(elems[0])
		}
	}
	document.Set("querySelector", query(false))
	document.Set("querySelectorAll", query(true))
	document.Set("getElementById", func(id string) interface{} { return query(false)("#" + id) })
	document.Set("getElementsByTagName", func(tag string) interface{} { return query(true)(tag) })
	document.Set("addEventListener", func(typ string, fn goja.Value) {
		if cb, ok := goja.AssertFunction(fn); ok {
			p.listeners[typ] = append(p.listeners[typ], cb)
		}
	})
	vm.Set("document", document)

	location := vm.NewObject()
	location.Set("href", p.baseURL)
	vm.Set("location", location)

	host := vm.NewObject()
	host.Set("post", func(kind, data string) bool {
		return p.post(surface.Event{Kind: surface.EventKind(kind), Data: data})
	})
	vm.Set("host", host)
	return nil
}

func elementProxy(e *Element) map[string]interface{} {
	return map[string]interface{}{
		"tagName":      e.TagName,
		"id":           e.ID,
		"className":    e.ClassName,
		"textContent":  e.TextContent,
		"getAttribute": e.GetAttribute,
		"setAttribute": e.SetAttribute,
	}
}

// post queues a page event. It reports false when the page is closed or
// the queue is full.
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

// Title returns document.title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	_, err := p.rt.Run(ctx, func(*goja.Runtime) (goja.Value, error) {
		title = p.title
		return nil, nil
	})
	if err != nil {
		return "", p.wrap(err)
	}
	return title, nil
}

// Dispatch calls the page's dispatcher with the encoded command.
func (p *Page) Dispatch(ctx context.Context, cmd surface.Command) (string, error) {
	envelope, err := cmd.Encode()
	if err != nil {
		return "", err
	}
	val, err := p.rt.Run(ctx, func(vm *goja.Runtime) (goja.Value, error) {
		fn, ok := goja.AssertFunction(vm.Get(surface.DispatchFunc))
		if !ok {
			return nil, surface.ErrNoDispatcher
		}
		return fn(goja.Undefined(), vm.ToValue(envelope))
	})
	if err != nil {
		return "", fmt.Errorf("sandbox: dispatch %s: %w", cmd.Op, p.wrap(err))
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}
	return val.String(), nil
}

// Focus fires a click at (0,0) on document listeners.
func (p *Page) Focus(ctx context.Context) error {
	_, err := p.rt.Run(ctx, func(vm *goja.Runtime) (goja.Value, error) {
		p.focused = true
		ev := vm.ToValue(map[string]interface{}{"type": "click", "clientX": 0, "clientY": 0, "button": 0})
		for _, cb := range p.listeners["click"] {
			if _, err := cb(goja.Undefined(), ev); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return p.wrap(err)
}

// Focused reports whether Focus has run since the last Load.
func (p *Page) Focused() bool {
	var focused bool
	_, _ = p.rt.Run(context.Background(), func(*goja.Runtime) (goja.Value, error) {
		focused = p.focused
		return nil, nil
	})
	return focused
}

// Eval runs script in the page and returns its exported value.
func (p *Page) Eval(ctx context.Context, script string) (interface{}, error) {
	v, err := p.rt.Execute(ctx, script)
	return v, p.wrap(err)
}

// Console returns console output captured since the last Load.
func (p *Page) Console() []LogEntry {
	return p.rt.Console()
}

// Events implements surface.Surface.
func (p *Page) Events() <-chan surface.Event {
	return p.events
}

// Close closes the event channel and releases the runtime.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	return p.rt.Close()
}

func (p *Page) wrap(err error) error {
	if err == errRuntimeClosed {
		return surface.ErrClosed
	}
	return err
}

var _ surface.Surface = (*Page)(nil)
