package terminal

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

// poll runs once per tick: mirror the page title into the current
// directory, then tear down if the child has exited.
func (b *Buffer) poll() {
	ctx, cancel := b.callCtx(b.ctx)
	title, err := b.surface.Title(ctx)
	cancel()
	if err != nil {
		b.log.Debug("title query failed", zap.Error(err))
	} else {
		b.observeDirectory(title, "poll")
	}

	if b.session.Process.Exited() {
		b.log.Info("terminal server exited",
			zap.NamedError("exit", b.session.Process.ExitErr()),
			zap.String("output_tail", b.output.Tail(5)),
		)
		b.teardown(closeExited)
	}
}

// observeDirectory records dir and notifies the host when it is new.
// Empty values are ignored so a page that has not set a title yet never
// clears the directory.
func (b *Buffer) observeDirectory(dir, source string) {
	if dir == "" || dir == b.session.CurrentDirectory {
		return
	}
	b.session.CurrentDirectory = dir
	b.host.TitleChanged(b.id, dir)
	b.host.SetDirectory(b.id, dir)
	b.metrics.RecordDirectoryChange(source)
	b.log.Debug("directory changed", zap.String("dir", dir), zap.String("source", source))
}

func (b *Buffer) handleEvent(ev surface.Event) {
	switch ev.Kind {
	case surface.EventDirectory:
		b.observeDirectory(ev.Data, "event")
	default:
		b.log.Debug("ignoring page event", zap.String("kind", string(ev.Kind)))
	}
}

// focusSurface clicks the page origin so keyboard input reaches it.
func (b *Buffer) focusSurface() {
	ctx, cancel := b.callCtx(b.ctx)
	defer cancel()
	if err := b.surface.Focus(ctx); err != nil {
		b.log.Debug("focus failed", zap.Error(err))
	}
}
