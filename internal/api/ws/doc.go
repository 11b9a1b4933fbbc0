// Package ws provides the browser terminal socket.
//
// Frames are JSON text messages of the form {"event": "...", "data": ...}.
//
// Message Types (Client → Server):
//   - terminal-init: {cols, rows}; spawns the shell (zero sizes mean 80x24)
//   - terminal-input: string written verbatim to the shell
//   - terminal-resize: {cols, rows}
//
// Message Types (Server → Client):
//   - terminal-output: string of shell output, the banner included
//   - terminal-error: the shell could not be started; the socket closes next
//
// Input and resize before init are ignored, as is a second init. Closing the
// socket kills the shell; a shell that exits closes the socket.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, ws.Config{Serial: serial}, logger, metrics)
//	router.GET("/ws/terminal", handler.HandleConnection)
package ws
