// Package ws streams buffer notifications to hosts over websockets.
//
// Hub implements terminal.Host. A host subscribes with
// GET /events?buffer=<id> (omit buffer for all buffers) and receives one
// JSON message per notification:
//
//	{"type":"set_directory","buffer":"buf_01J...","text":"/home/me","timestamp":1760000000}
//	{"type":"prompt","buffer":"buf_01J...","tag":"search_text_forward","text":"Forward Search Text: "}
//	{"type":"close_buffer","buffer":"buf_01J..."}
//
// Subscribers may send:
//
//	{"type":"ping"}
//	{"type":"input","buffer":"buf_01J...","tag":"search_text_forward","content":"error"}
//	{"type":"command","buffer":"buf_01J...","command":"scroll_other_buffer","args":["up","page"]}
//
// and get back "pong", "ok" or "error".
package ws
