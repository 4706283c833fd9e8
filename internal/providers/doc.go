// Package providers holds adapters for host system services a buffer
// depends on but does not own.
//
// Available providers:
//   - clipboard: system clipboard through atotto/clipboard, plus an
//     in-memory implementation for tests and headless hosts
package providers
