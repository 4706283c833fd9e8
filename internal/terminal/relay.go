package terminal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
)

// CommandID names a host-invokable buffer command.
type CommandID string

const (
	CmdCopyText          CommandID = "copy_text"
	CmdYankText          CommandID = "yank_text"
	CmdScrollUp          CommandID = "scroll_up"
	CmdScrollDown        CommandID = "scroll_down"
	CmdScrollUpPage      CommandID = "scroll_up_page"
	CmdScrollDownPage    CommandID = "scroll_down_page"
	CmdScrollToBegin     CommandID = "scroll_to_begin"
	CmdScrollToBottom    CommandID = "scroll_to_bottom"
	CmdScrollOtherBuffer CommandID = "scroll_other_buffer"
	CmdSelectAll         CommandID = "select_all"
	CmdClearSelection    CommandID = "clear_selection"
	CmdSearchForward     CommandID = "search_text_forward"
	CmdSearchBackward    CommandID = "search_text_backward"
	CmdSearchQuit        CommandID = "search_quit"
)

// Host messages.
const (
	MsgNothingSelected = "Nothing selected"
	MsgCopied          = "Copy text"

	PromptForward  = "Forward Search Text: "
	PromptBackward = "Backward Search Text: "
)

// CommandSpec describes a command for hosts that build menus or bindings.
type CommandSpec struct {
	ID          CommandID `json:"id"`
	Args        []string  `json:"args,omitempty"`
	Description string    `json:"description"`
}

var commandSpecs = []CommandSpec{
	{ID: CmdCopyText, Description: "Copy the page selection to the clipboard"},
	{ID: CmdYankText, Description: "Paste the clipboard into the terminal"},
	{ID: CmdScrollUp, Description: "Scroll one line"},
	{ID: CmdScrollDown, Description: "Scroll one line back"},
	{ID: CmdScrollUpPage, Description: "Scroll one page"},
	{ID: CmdScrollDownPage, Description: "Scroll one page back"},
	{ID: CmdScrollToBegin, Description: "Scroll to the start of the scrollback"},
	{ID: CmdScrollToBottom, Description: "Scroll to the newest output"},
	{ID: CmdScrollOtherBuffer, Args: []string{"direction", "type"}, Description: "Scroll by line or page, up or down"},
	{ID: CmdSelectAll, Description: "Select all terminal text"},
	{ID: CmdClearSelection, Description: "Clear the selection"},
	{ID: CmdSearchForward, Description: "Search forward, prompting for a term when idle"},
	{ID: CmdSearchBackward, Description: "Search backward, prompting for a term when idle"},
	{ID: CmdSearchQuit, Description: "Clear the active search"},
}

// Commands lists every command Run accepts.
func Commands() []CommandSpec {
	return append([]CommandSpec(nil), commandSpecs...)
}

type handler func(ctx context.Context, args []string) error

func (b *Buffer) buildHandlers() map[CommandID]handler {
	send := func(cmd surface.Command) handler {
		return func(ctx context.Context, _ []string) error {
			_, err := b.dispatch(ctx, cmd)
			return err
		}
	}
	noArgs := func(fn func(context.Context) error) handler {
		return func(ctx context.Context, _ []string) error { return fn(ctx) }
	}

	return map[CommandID]handler{
		CmdCopyText:          noArgs(b.copyText),
		CmdYankText:          noArgs(b.yankText),
		CmdScrollUp:          send(surface.ScrollLines(1)),
		CmdScrollDown:        send(surface.ScrollLines(-1)),
		CmdScrollUpPage:      send(surface.ScrollPage(1)),
		CmdScrollDownPage:    send(surface.ScrollPage(-1)),
		CmdScrollToBegin:     send(surface.ScrollToBegin()),
		CmdScrollToBottom:    send(surface.ScrollToBottom()),
		CmdScrollOtherBuffer: b.scrollOtherBuffer,
		CmdSelectAll:         send(surface.SelectAll()),
		CmdClearSelection:    send(surface.ClearSelection()),
		CmdSearchForward:     noArgs(func(ctx context.Context) error { return b.searchDirected(ctx, false) }),
		CmdSearchBackward:    noArgs(func(ctx context.Context) error { return b.searchDirected(ctx, true) }),
		CmdSearchQuit:        noArgs(b.searchQuit),
	}
}

// Run executes the named command on the event loop.
func (b *Buffer) Run(ctx context.Context, id CommandID, args ...string) error {
	h, ok := b.handlers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, id)
	}
	timer := monitoring.NewTimer(b.metrics, string(id))
	err := b.do(ctx, func() error { return h(ctx, args) })
	if err != nil {
		timer.Stop("error")
		b.log.Debug("command failed", zap.String("command", string(id)), zap.Error(err))
		return err
	}
	timer.Stop("ok")
	return nil
}

func (b *Buffer) CopyText(ctx context.Context) error { return b.Run(ctx, CmdCopyText) }
func (b *Buffer) YankText(ctx context.Context) error { return b.Run(ctx, CmdYankText) }
func (b *Buffer) ScrollUp(ctx context.Context) error { return b.Run(ctx, CmdScrollUp) }
func (b *Buffer) ScrollDown(ctx context.Context) error { return b.Run(ctx, CmdScrollDown) }
func (b *Buffer) ScrollUpPage(ctx context.Context) error { return b.Run(ctx, CmdScrollUpPage) }
func (b *Buffer) ScrollDownPage(ctx context.Context) error { return b.Run(ctx, CmdScrollDownPage) }
func (b *Buffer) ScrollToBegin(ctx context.Context) error { return b.Run(ctx, CmdScrollToBegin) }
func (b *Buffer) ScrollToBottom(ctx context.Context) error { return b.Run(ctx, CmdScrollToBottom) }
func (b *Buffer) SelectAll(ctx context.Context) error { return b.Run(ctx, CmdSelectAll) }
func (b *Buffer) ClearSelection(ctx context.Context) error { return b.Run(ctx, CmdClearSelection) }
func (b *Buffer) SearchForward(ctx context.Context) error { return b.Run(ctx, CmdSearchForward) }
func (b *Buffer) SearchBackward(ctx context.Context) error { return b.Run(ctx, CmdSearchBackward) }
func (b *Buffer) SearchQuit(ctx context.Context) error { return b.Run(ctx, CmdSearchQuit) }

// ScrollOtherBuffer scrolls by "line" or "page" in direction "up" or
// "down". It is how a host scrolls this buffer while another has focus.
func (b *Buffer) ScrollOtherBuffer(ctx context.Context, direction, unit string) error {
	return b.Run(ctx, CmdScrollOtherBuffer, direction, unit)
}

func (b *Buffer) dispatch(ctx context.Context, cmd surface.Command) (string, error) {
	ctx, cancel := b.callCtx(ctx)
	defer cancel()
	start := time.Now()
	out, err := b.surface.Dispatch(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("dispatch %s: %w", cmd, err)
	}
	b.log.Debug("dispatched", zap.Stringer("cmd", cmd), zap.Duration("took", time.Since(start)))
	return out, nil
}

func (b *Buffer) copyText(ctx context.Context) error {
	text, err := b.dispatch(ctx, surface.GetSelection())
	if err != nil {
		return err
	}
	if text == "" {
		b.host.Message(b.id, MsgNothingSelected)
		return nil
	}
	if err := b.opts.Clipboard.WriteText(text); err != nil {
		return err
	}
	b.host.Message(b.id, MsgCopied)
	return nil
}

func (b *Buffer) yankText(ctx context.Context) error {
	text, err := b.opts.Clipboard.ReadText()
	if err != nil {
		return err
	}
	_, err = b.dispatch(ctx, surface.Paste(text))
	return err
}

func (b *Buffer) scrollOtherBuffer(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: scroll_other_buffer wants direction and type, got %d args", ErrInvalidArgument, len(args))
	}
	var n int
	switch args[0] {
	case "up":
		n = 1
	case "down":
		n = -1
	default:
		return fmt.Errorf("%w: scroll direction %q", ErrInvalidArgument, args[0])
	}
	var cmd surface.Command
	switch args[1] {
	case "line":
		cmd = surface.ScrollLines(n)
	case "page":
		cmd = surface.ScrollPage(n)
	default:
		return fmt.Errorf("%w: scroll type %q", ErrInvalidArgument, args[1])
	}
	_, err := b.dispatch(ctx, cmd)
	return err
}

// searchDirected searches with the active term, or prompts for one when
// the search is idle.
func (b *Buffer) searchDirected(ctx context.Context, backward bool) error {
	if b.session.SearchTerm != "" {
		return b.search(ctx, b.session.SearchTerm, backward)
	}
	tag, prompt := PromptSearchForward, PromptForward
	if backward {
		tag, prompt = PromptSearchBackward, PromptBackward
	}
	b.pending[tag] = func(ctx context.Context, text string) error {
		return b.search(ctx, text, backward)
	}
	b.metrics.RecordPrompt(string(tag), "raised")
	b.host.Prompt(b.id, tag, prompt)
	return nil
}

// search sends one find. The term becomes active only once the page
// accepted it.
func (b *Buffer) search(ctx context.Context, term string, backward bool) error {
	if _, err := b.dispatch(ctx, surface.Find(term, backward)); err != nil {
		return err
	}
	b.session.SearchTerm = term
	return nil
}

// searchQuit returns to idle even when the page cannot clear its
// highlight.
func (b *Buffer) searchQuit(ctx context.Context) error {
	if b.session.SearchTerm == "" {
		return nil
	}
	b.session.SearchTerm = ""
	_, err := b.dispatch(ctx, surface.Find("", false))
	return err
}

// HandleInput completes the prompt raised under tag with content. Empty
// content cancels the prompt.
func (b *Buffer) HandleInput(ctx context.Context, tag PromptTag, content string) error {
	return b.do(ctx, func() error {
		cont, ok := b.pending[tag]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoPrompt, tag)
		}
		delete(b.pending, tag)
		if content == "" {
			b.metrics.RecordPrompt(string(tag), "cancelled")
			return nil
		}
		b.metrics.RecordPrompt(string(tag), "answered")
		return cont(ctx, content)
	})
}

// CancelInput drops the prompt raised under tag, if any.
func (b *Buffer) CancelInput(ctx context.Context, tag PromptTag) error {
	return b.do(ctx, func() error {
		if _, ok := b.pending[tag]; ok {
			delete(b.pending, tag)
			b.metrics.RecordPrompt(string(tag), "cancelled")
		}
		return nil
	})
}
