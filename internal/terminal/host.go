package terminal

// PromptTag identifies a pending host prompt. Input for a tag resolves the
// continuation registered when the prompt was raised.
type PromptTag string

const (
	PromptSearchForward  PromptTag = "search_text_forward"
	PromptSearchBackward PromptTag = "search_text_backward"
)

// Host receives buffer notifications. Methods are called from the
// buffer's event loop and must not block or call back into the buffer
// synchronously.
type Host interface {
	// TitleChanged reports the buffer's new display title.
	TitleChanged(buffer, title string)
	// SetDirectory reports the shell's new working directory.
	SetDirectory(buffer, dir string)
	// Message shows a short status message to the user.
	Message(buffer, text string)
	// Prompt asks the user for text; the answer comes back through
	// Buffer.HandleInput with the same tag.
	Prompt(buffer string, tag PromptTag, prompt string)
	// RequestClose asks the host to close the buffer after its child
	// exited.
	RequestClose(buffer string)
}

// NotificationKind names a Host callback.
type NotificationKind string

const (
	NotifyTitle        NotificationKind = "title_changed"
	NotifySetDirectory NotificationKind = "set_directory"
	NotifyMessage      NotificationKind = "message"
	NotifyPrompt       NotificationKind = "prompt"
	NotifyClose        NotificationKind = "close_buffer"
)

// Notification is a Host callback as a value, for hosts that forward
// notifications over a wire.
type Notification struct {
	Buffer string           `json:"buffer"`
	Kind   NotificationKind `json:"kind"`
	Text   string           `json:"text,omitempty"`
	Tag    PromptTag        `json:"tag,omitempty"`
}

// HostFunc adapts a function receiving Notifications to Host.
type HostFunc func(Notification)

func (f HostFunc) TitleChanged(buffer, title string) {
	f(Notification{Buffer: buffer, Kind: NotifyTitle, Text: title})
}

func (f HostFunc) SetDirectory(buffer, dir string) {
	f(Notification{Buffer: buffer, Kind: NotifySetDirectory, Text: dir})
}

func (f HostFunc) Message(buffer, text string) {
	f(Notification{Buffer: buffer, Kind: NotifyMessage, Text: text})
}

func (f HostFunc) Prompt(buffer string, tag PromptTag, prompt string) {
	f(Notification{Buffer: buffer, Kind: NotifyPrompt, Tag: tag, Text: prompt})
}

func (f HostFunc) RequestClose(buffer string) {
	f(Notification{Buffer: buffer, Kind: NotifyClose})
}

// Hosts fans notifications out to several hosts in order.
type Hosts []Host

func (hs Hosts) TitleChanged(buffer, title string) {
	for _, h := range hs {
		h.TitleChanged(buffer, title)
	}
}

func (hs Hosts) SetDirectory(buffer, dir string) {
	for _, h := range hs {
		h.SetDirectory(buffer, dir)
	}
}

func (hs Hosts) Message(buffer, text string) {
	for _, h := range hs {
		h.Message(buffer, text)
	}
}

func (hs Hosts) Prompt(buffer string, tag PromptTag, prompt string) {
	for _, h := range hs {
		h.Prompt(buffer, tag, prompt)
	}
}

func (hs Hosts) RequestClose(buffer string) {
	for _, h := range hs {
		h.RequestClose(buffer)
	}
}

type nopHost struct{}

func (nopHost) TitleChanged(string, string) {}
func (nopHost) SetDirectory(string, string) {}
func (nopHost) Message(string, string) {}
func (nopHost) Prompt(string, PromptTag, string) {}
func (nopHost) RequestClose(string) {}
