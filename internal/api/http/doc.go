// Package http is the host-facing REST API over the buffer manager.
//
//	POST   /buffers                       start a buffer {command, directory, vars}
//	GET    /buffers                       list buffers
//	GET    /buffers/:id                   buffer info
//	DELETE /buffers/:id                   close a buffer (kills its terminal-server)
//	GET    /buffers/:id/output?lines=N    terminal-server output tail
//	GET    /buffers/:id/commands          command catalog
//	POST   /buffers/:id/commands/:name    run a command {args}
//	POST   /buffers/:id/input             answer a prompt {tag, content}
//	DELETE /buffers/:id/input/:tag        cancel a prompt
//	POST   /logs                          forward front-end console logs
//	GET    /events                        websocket notification stream
//	GET    /health, /metrics
package http
