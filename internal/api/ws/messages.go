package ws

import (
	"encoding/json"
	"unicode/utf8"
)

// Terminal socket events.
const (
	EventInit   = "terminal-init"
	EventInput  = "terminal-input"
	EventResize = "terminal-resize"
	EventOutput = "terminal-output"
	EventError  = "terminal-error"
)

// Message is one frame on the terminal socket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a server to client frame.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// utf8Carry holds back a trailing partial rune so PTY chunks can be sent as
// JSON strings without mangling characters split across reads.
type utf8Carry struct {
	pending []byte
}

func (u *utf8Carry) split(chunk []byte) string {
	data := append(u.pending, chunk...)
	u.pending = nil

	// Look back at most UTFMax-1 bytes for an incomplete rune start.
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if !utf8.FullRune(data[len(data)-i:]) {
			u.pending = append([]byte(nil), data[len(data)-i:]...)
			data = data[:len(data)-i]
		}
		break
	}
	return string(data)
}
