// Package chat implements the chat and thread manager. Conversations live in
// process-wide maps owned by one Manager; streaming responses are produced as
// lazy, finite, non-restartable token sequences.
package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
	"github.com/agnt-gg/slop-sub000/internal/uuidv7"
)

// ErrEmptyMessages is returned when a chat request carries no messages.
var ErrEmptyMessages = errors.New("chat request requires at least one message")

// Message is one stored chat message. Inbound messages gain their ID and
// CreatedAt when the manager persists them.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbound is a caller-supplied message before persistence.
type Inbound struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries the parameters of a chat creation. A non-empty ThreadID
// appends to (or lazily creates) that thread instead of a standalone chat.
type Request struct {
	Messages []Inbound
	Model    string
	ThreadID string
}

// Result is the outcome of a synchronous chat creation. Exactly one of ID
// and ThreadID is set.
type Result struct {
	ID       string
	ThreadID string
	Message  Message
}

// Conversation is a snapshot of one chat or thread.
type Conversation struct {
	ID        string
	Model     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThreadSummary describes one thread for listings.
type ThreadSummary struct {
	ID           string
	MessageCount int
	UpdatedAt    time.Time
}

// Generator produces the assistant reply for a message history. The manager
// never calls it concurrently for the same conversation.
type Generator interface {
	Reply(messages []Message, model string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(messages []Message, model string) (string, error)

// Reply implements Generator.
func (f GeneratorFunc) Reply(messages []Message, model string) (string, error) {
	return f(messages, model)
}

// SyntheticGenerator is the built-in reply source. It answers with a short
// canned response that quotes the latest user message, which keeps the
// transport paths exercisable without an external model.
func SyntheticGenerator() Generator {
	return GeneratorFunc(func(messages []Message, model string) (string, error) {
		last := ""
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "user" {
				last = messages[i].Content
				break
			}
		}
		if last == "" {
			return "Hello! How can I help you today?", nil
		}
		return fmt.Sprintf("You said: %q. This is a synthetic reply from the gateway.", last), nil
	})
}

type conversation struct {
	model     string
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
}

// Manager owns the chat and thread maps. All operations are safe for
// concurrent use; each one's mutations are applied atomically.
type Manager struct {
	mu      sync.Mutex
	chats   map[string]*conversation
	threads map[string]*conversation
	gen     Generator
	clock   clock.Clock
	logger  pslog.Logger
}

// New returns an empty manager using gen for assistant replies. A nil gen
// falls back to the synthetic generator.
func New(gen Generator, clk clock.Clock, logger pslog.Logger) *Manager {
	if gen == nil {
		gen = SyntheticGenerator()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	m := &Manager{
		chats:   make(map[string]*conversation),
		threads: make(map[string]*conversation),
		gen:     gen,
		clock:   clk,
		logger:  svcfields.WithSubsystem(logger, "chat"),
	}
	return m
}

// CreateChat validates and persists the request's messages followed by the
// synthesized assistant reply, all in one atomic append. It returns the
// assistant message together with the chat or thread id it landed in.
func (m *Manager) CreateChat(req Request) (Result, error) {
	if len(req.Messages) == 0 {
		return Result{}, ErrEmptyMessages
	}
	now := m.clock.Now()
	stored := m.stampMessages(req.Messages, now)

	reply, err := m.gen.Reply(stored, req.Model)
	if err != nil {
		return Result{}, fmt.Errorf("generate reply: %w", err)
	}
	assistant := Message{
		ID:        uuidv7.NewString(),
		Role:      "assistant",
		Content:   reply,
		CreatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ThreadID != "" {
		conv := m.threadLocked(req.ThreadID, req.Model, now)
		conv.append(stored, assistant, now)
		m.logger.Debug("chat.thread.append", "thread_id", req.ThreadID, "messages", len(stored)+1)
		return Result{ThreadID: req.ThreadID, Message: assistant}, nil
	}
	id := uuidv7.NewString()
	conv := &conversation{model: req.Model, createdAt: now}
	conv.append(stored, assistant, now)
	m.chats[id] = conv
	m.logger.Debug("chat.create", "chat_id", id, "messages", len(stored)+1)
	return Result{ID: id, Message: assistant}, nil
}

// GetChat returns the chat with the given id.
func (m *Manager) GetChat(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.chats[id]
	if !ok {
		return Conversation{}, false
	}
	return conv.snapshot(id), true
}

// GetThread returns the thread with the given id.
func (m *Manager) GetThread(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.threads[id]
	if !ok {
		return Conversation{}, false
	}
	return conv.snapshot(id), true
}

// ListThreads summarizes every thread, most recently updated first.
func (m *Manager) ListThreads() []ThreadSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ThreadSummary, 0, len(m.threads))
	for id, conv := range m.threads {
		out = append(out, ThreadSummary{
			ID:           id,
			MessageCount: len(conv.messages),
			UpdatedAt:    conv.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CreateStreamingChat validates the request and prepares a token stream for
// the synthesized reply. Nothing is persisted until the stream is fully
// drained; an abandoned stream leaves the store untouched.
func (m *Manager) CreateStreamingChat(req Request) (*Stream, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyMessages
	}
	now := m.clock.Now()
	stored := m.stampMessages(req.Messages, now)

	reply, err := m.gen.Reply(stored, req.Model)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	assistant := Message{
		ID:        uuidv7.NewString(),
		Role:      "assistant",
		Content:   reply,
		CreatedAt: now,
	}
	return &Stream{
		mgr:       m,
		req:       req,
		stored:    stored,
		assistant: assistant,
		tokens:    splitTokens(reply),
	}, nil
}

func (m *Manager) stampMessages(in []Inbound, now time.Time) []Message {
	out := make([]Message, len(in))
	for i, msg := range in {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		out[i] = Message{
			ID:        uuidv7.NewString(),
			Role:      role,
			Content:   msg.Content,
			CreatedAt: now,
		}
	}
	return out
}

// threadLocked returns the thread id, creating it on first use.
func (m *Manager) threadLocked(id, model string, now time.Time) *conversation {
	conv, ok := m.threads[id]
	if !ok {
		conv = &conversation{model: model, createdAt: now}
		m.threads[id] = conv
	}
	return conv
}

func (c *conversation) append(stored []Message, assistant Message, now time.Time) {
	c.messages = append(c.messages, stored...)
	c.messages = append(c.messages, assistant)
	c.updatedAt = now
}

func (c *conversation) snapshot(id string) Conversation {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Conversation{
		ID:        id,
		Model:     c.model,
		Messages:  msgs,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

func splitTokens(reply string) []string {
	words := strings.Fields(reply)
	tokens := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			tokens[i] = w + " "
		} else {
			tokens[i] = w
		}
	}
	return tokens
}
