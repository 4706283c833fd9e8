// Command terminal-server is the child process each terminal buffer
// launches. It is invoked as
//
//	terminal-server <port> <directory> <command>
//
// and serves the command's pseudo-terminal at ws://127.0.0.1:<port>/ws
// until the command exits.
package main
