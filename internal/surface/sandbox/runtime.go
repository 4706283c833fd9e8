package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
)

var errRuntimeClosed = errors.New("sandbox: runtime closed")

// Runtime wraps a goja VM with an execution timeout and a console that
// feeds the logger. It is safe for concurrent use; calls are serialized.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	log    *logging.Logger
	mu     sync.Mutex

	runMu   sync.Mutex
	running *goja.Runtime

	console   []LogEntry
	consoleMu sync.Mutex
}

// NewRuntime creates a sandboxed runtime
func NewRuntime(config Config, logger *logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runtime{
		config: config.withDefaults(),
		log:    logger,
	}
	r.vm = r.newVM()
	return r
}

func (r *Runtime) newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(r.config.MaxCallStack)
	r.setupGlobals(vm)
	return vm
}

// setupGlobals removes host escape hatches and installs console and
// inert timers.
func (r *Runtime) setupGlobals(vm *goja.Runtime) {
	for _, name := range []string{"require", "process", "module", "exports"} {
		vm.Set(name, goja.Undefined())
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, r.makeConsoleFunc(level))
	}
	vm.Set("console", console)

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)
	vm.Set("window", vm.GlobalObject())
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		entry := LogEntry{Level: level, Message: strings.Join(parts, " "), Time: time.Now()}

		r.consoleMu.Lock()
		r.console = append(r.console, entry)
		r.consoleMu.Unlock()

		if r.config.EnableConsole {
			r.log.Debug("page console", zap.String("level", level), zap.String("message", entry.Message))
		}
		return goja.Undefined()
	}
}

// Reset replaces the VM with a fresh one and clears the console.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return errRuntimeClosed
	}
	r.vm = r.newVM()
	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	return nil
}

// Run executes fn against the VM. Execution is interrupted when the
// configured timeout elapses or ctx is done.
func (r *Runtime) Run(ctx context.Context, fn func(vm *goja.Runtime) (goja.Value, error)) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return nil, errRuntimeClosed
	}
	vm := r.vm
	r.setRunning(vm)

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	val, err := fn(vm)

	close(stop)
	<-exited
	r.setRunning(nil)
	vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if interrupted.Value() == errRuntimeClosed {
				return nil, errRuntimeClosed
			}
			return nil, fmt.Errorf("sandbox: %v", interrupted.Value())
		}
		return nil, err
	}
	return val, nil
}

func (r *Runtime) setRunning(vm *goja.Runtime) {
	r.runMu.Lock()
	r.running = vm
	r.runMu.Unlock()
}

// Execute runs script and returns its exported completion value.
func (r *Runtime) Execute(ctx context.Context, script string) (interface{}, error) {
	val, err := r.Run(ctx, func(vm *goja.Runtime) (goja.Value, error) {
		return vm.RunString(script)
	})
	if err != nil {
		return nil, err
	}
	return exportValue(val), nil
}

// Console returns a copy of the console entries since the last Reset.
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry(nil), r.console...)
}

// Close interrupts any running script and releases the VM.
func (r *Runtime) Close() error {
	r.runMu.Lock()
	if r.running != nil {
		r.running.Interrupt(errRuntimeClosed)
	}
	r.runMu.Unlock()

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	return nil
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
