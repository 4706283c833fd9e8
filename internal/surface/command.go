package surface

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Op is one operation of the page command protocol.
type Op string

const (
	OpGetSelection   Op = "get_selection"
	OpPaste          Op = "paste"
	OpScrollLines    Op = "scroll_lines"
	OpScrollPage     Op = "scroll_page"
	OpScrollToBegin  Op = "scroll_to_begin"
	OpScrollToBottom Op = "scroll_to_bottom"
	OpSelectAll      Op = "select_all"
	OpClearSelection Op = "clear_selection"
	OpFind           Op = "find"
)

var knownOps = map[Op]struct{}{
	OpGetSelection: {}, OpPaste: {}, OpScrollLines: {}, OpScrollPage: {},
	OpScrollToBegin: {}, OpScrollToBottom: {}, OpSelectAll: {},
	OpClearSelection: {}, OpFind: {},
}

// Command is a typed page command. Text is used by paste and find,
// Amount by the scroll ops, Backward by find. Positive amounts move the
// viewport towards newer output, the way Emacs scroll-up moves text up.
type Command struct {
	Op       Op     `json:"op"`
	Text     string `json:"text,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Backward bool   `json:"backward,omitempty"`
}

func GetSelection() Command { return Command{Op: OpGetSelection} }
func Paste(text string) Command { return Command{Op: OpPaste, Text: text} }
func ScrollLines(n int) Command { return Command{Op: OpScrollLines, Amount: n} }
func ScrollPage(n int) Command { return Command{Op: OpScrollPage, Amount: n} }
func ScrollToBegin() Command { return Command{Op: OpScrollToBegin} }
func ScrollToBottom() Command { return Command{Op: OpScrollToBottom} }
func SelectAll() Command { return Command{Op: OpSelectAll} }
func ClearSelection() Command { return Command{Op: OpClearSelection} }

// Find searches for term. An empty term clears the current search.
func Find(term string, backward bool) Command {
	return Command{Op: OpFind, Text: term, Backward: backward}
}

// Validate reports whether c is well formed.
func (c Command) Validate() error {
	if _, ok := knownOps[c.Op]; !ok {
		return fmt.Errorf("surface: unknown op %q", c.Op)
	}
	switch c.Op {
	case OpScrollLines, OpScrollPage:
		if c.Amount == 0 {
			return fmt.Errorf("surface: %s needs a non-zero amount", c.Op)
		}
	}
	return nil
}

// Encode returns the JSON envelope delivered to the page.
func (c Command) Encode() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	s, err := sonic.MarshalString(c)
	if err != nil {
		return "", fmt.Errorf("surface: encode %s: %w", c.Op, err)
	}
	return s, nil
}

// Decode parses an envelope produced by Encode.
func Decode(envelope string) (Command, error) {
	var c Command
	if err := sonic.UnmarshalString(envelope, &c); err != nil {
		return Command{}, fmt.Errorf("surface: decode envelope: %w", err)
	}
	return c, c.Validate()
}

func (c Command) String() string {
	switch c.Op {
	case OpScrollLines, OpScrollPage:
		return fmt.Sprintf("%s(%d)", c.Op, c.Amount)
	case OpPaste:
		return fmt.Sprintf("%s(%d bytes)", c.Op, len(c.Text))
	case OpFind:
		return fmt.Sprintf("%s(%q, backward=%t)", c.Op, c.Text, c.Backward)
	}
	return string(c.Op)
}
