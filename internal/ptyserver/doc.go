// Package ptyserver is the terminal-server a buffer launches: it runs one
// shell command on a pseudo-terminal and bridges it to the page over a
// websocket at /ws.
//
// Output is sent as binary frames. A client that connects late first
// receives the retained output. Text frames carry JSON messages:
//
//	{"type":"input","data":"ls\r"}
//	{"type":"resize","cols":120,"rows":40}
//
// Binary frames are written to the terminal as-is.
//
// The server exits when the command does, which is how the buffer learns
// the session is over. Under bash the working directory is reported in
// the window title before every prompt.
package ptyserver
