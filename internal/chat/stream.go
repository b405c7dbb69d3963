package chat

import "github.com/agnt-gg/slop-sub000/internal/uuidv7"

// Token is one frame of a streaming chat response. Content tokens carry
// text; the terminal frame carries Status "complete" instead.
type Token struct {
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Done reports whether the token is the terminal completion frame.
func (t Token) Done() bool { return t.Status == "complete" }

// Stream is a finite, non-restartable sequence of response tokens. Tokens
// are handed out one per Next call; the exchange is persisted into the
// manager's store exactly once, when the terminal frame is consumed. A
// stream abandoned before its terminal frame persists nothing.
type Stream struct {
	mgr       *Manager
	req       Request
	stored    []Message
	assistant Message
	tokens    []string
	pos       int
	finished  bool

	// Set once the terminal frame has been consumed.
	id       string
	threadID string
}

// Next returns the next frame. The second return is false once the stream
// is exhausted; the last true frame is the completion marker.
func (s *Stream) Next() (Token, bool) {
	if s.finished {
		return Token{}, false
	}
	if s.pos < len(s.tokens) {
		tok := Token{Content: s.tokens[s.pos]}
		s.pos++
		return tok, true
	}
	s.finished = true
	s.persist()
	return Token{Status: "complete"}, true
}

// ID returns the chat id the exchange persisted into. It is empty until the
// terminal frame has been consumed, and empty for thread-bound streams.
func (s *Stream) ID() string { return s.id }

// ThreadID returns the thread id the exchange persisted into, if any.
func (s *Stream) ThreadID() string { return s.threadID }

func (s *Stream) persist() {
	m := s.mgr
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.req.ThreadID != "" {
		conv := m.threadLocked(s.req.ThreadID, s.req.Model, now)
		conv.append(s.stored, s.assistant, now)
		s.threadID = s.req.ThreadID
		m.logger.Debug("chat.stream.persist", "thread_id", s.threadID, "tokens", len(s.tokens))
		return
	}
	id := uuidv7.NewString()
	conv := &conversation{model: s.req.Model, createdAt: now}
	conv.append(s.stored, s.assistant, now)
	m.chats[id] = conv
	s.id = id
	m.logger.Debug("chat.stream.persist", "chat_id", id, "tokens", len(s.tokens))
}
