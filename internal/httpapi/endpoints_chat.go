package httpapi

import (
	"errors"
	"net/http"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/chat"
)

func toWireMessage(m chat.Message) api.Message {
	return api.Message{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toWireConversation(c chat.Conversation) api.ConversationResponse {
	msgs := make([]api.Message, len(c.Messages))
	for i, m := range c.Messages {
		msgs[i] = toWireMessage(m)
	}
	return api.ConversationResponse{
		ID:        c.ID,
		Model:     c.Model,
		Messages:  msgs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func chatRequestFromWire(req api.ChatRequest) chat.Request {
	msgs := make([]chat.Inbound, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chat.Inbound{Role: m.Role, Content: m.Content.Text()}
	}
	return chat.Request{Messages: msgs, Model: req.Model, ThreadID: req.ThreadID}
}

func (h *Handler) handleChatCreate(w http.ResponseWriter, r *http.Request) error {
	var req api.ChatRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	res, err := h.chat.CreateChat(chatRequestFromWire(req))
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessages) {
			return errInvalidRequest("messages must not be empty")
		}
		return httpError{
			Status: http.StatusInternalServerError,
			Code:   codeGenerationError,
			Detail: err.Error(),
		}
	}
	h.writeJSON(w, http.StatusOK, api.ChatResponse{
		ID:       res.ID,
		ThreadID: res.ThreadID,
		Message:  toWireMessage(res.Message),
	}, nil)
	return nil
}

func (h *Handler) handleChatGet(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	conv, ok := h.chat.GetChat(id)
	if !ok {
		return errNotFound("chat " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireConversation(conv), nil)
	return nil
}

func (h *Handler) handleThreadGet(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	conv, ok := h.chat.GetThread(id)
	if !ok {
		return errNotFound("thread " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireConversation(conv), nil)
	return nil
}

func (h *Handler) handleThreadList(w http.ResponseWriter, r *http.Request) error {
	if r.URL.Query().Get("type") != "threads" {
		return errInvalidRequest("listing requires type=threads")
	}
	threads := h.chat.ListThreads()
	out := make([]api.ThreadSummary, len(threads))
	for i, t := range threads {
		out[i] = api.ThreadSummary{
			ID:           t.ID,
			MessageCount: t.MessageCount,
			UpdatedAt:    t.UpdatedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, api.ThreadListResponse{Threads: out}, nil)
	return nil
}
