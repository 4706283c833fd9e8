// Package terminal implements terminal buffers.
//
// A Buffer launches a terminal-server child on a free local port, loads a
// page that connects to it into a surface, and then runs one event loop
// that:
//
//   - focuses the page once after FocusDelay,
//   - polls the page title every PollInterval and mirrors it into the
//     current directory, notifying the host on change,
//   - tears the buffer down when the child exits,
//   - relays host commands (copy, paste, scroll, search, select) to the
//     page as typed surface.Commands.
//
// Pages may also post explicit directory events; they share the poll's
// dedup path, so each new directory is reported to the host once.
//
// Manager tracks the buffers of one host and removes them as they close.
package terminal
