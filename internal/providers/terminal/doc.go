// Package terminal runs interactive shells on pseudo-terminals for the
// browser terminal.
//
// Each socket connection owns at most one Session, keyed by its connection
// id. Output is pushed to a callback as soon as the PTY produces it; input and
// resizes go through the Manager.
//
// Features:
//   - PTY support for full terminal emulation (TERM=xterm-256color)
//   - Terminal resizing
//   - Exactly-once teardown: Kill terminates the shell, closes the PTY and
//     forgets the session however many times it is called
//   - CloseAll for server shutdown
//
// Example Usage:
//
//	m := terminal.NewManager(terminal.Options{Shell: "bash"}, logger, metrics)
//	session, err := m.Start(connID, terminal.Size{Cols: 120, Rows: 40}, send)
//	defer m.Kill(connID)
//
//	_ = m.Write(connID, []byte("ls -la\n"))
//	_ = m.Resize(connID, terminal.Size{Cols: 80, Rows: 24})
//	<-session.Done()
package terminal
