package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/chat"
)

const sseDoneSentinel = "[DONE]"

// handleChatStream delivers a streaming chat over Server-Sent Events. Every
// stream terminates with the [DONE] sentinel, on failure preceded by one
// error frame; a hanging stream is never an acceptable outcome.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) error {
	var req api.ChatRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}

	stream, err := h.chat.CreateStreamingChat(chatRequestFromWire(req))
	if err != nil && errors.Is(err, chat.ErrEmptyMessages) {
		return errInvalidRequest("messages must not be empty")
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return httpError{
			Status: http.StatusInternalServerError,
			Code:   codeStreamError,
			Detail: "response writer does not support streaming",
		}
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := sseWriter{w: w, flusher: flusher}
	sse.event("start", api.StatusResponse{Status: "started"})

	if err != nil {
		// Generation failed after the transport was committed: one error
		// frame, then the sentinel.
		sse.data(api.ErrorResponse{Error: api.ErrorDetail{
			Code:    codeGenerationError,
			Message: err.Error(),
			Status:  http.StatusInternalServerError,
		}})
		sse.sentinel()
		return nil
	}

	ctx := r.Context()
	logger := pslog.LoggerFromContext(ctx)
	for {
		if ctx.Err() != nil {
			if logger != nil {
				logger.Trace("chat.stream.client_gone")
			}
			return nil
		}
		tok, more := stream.Next()
		if !more {
			break
		}
		if !sse.data(tok) {
			return nil
		}
	}
	sse.sentinel()
	return nil
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	failed  bool
}

func (s *sseWriter) event(name string, payload any) bool {
	if s.failed {
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.failed = true
		return false
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		s.failed = true
		return false
	}
	s.flusher.Flush()
	return true
}

func (s *sseWriter) data(payload any) bool {
	if s.failed {
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.failed = true
		return false
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.failed = true
		return false
	}
	s.flusher.Flush()
	return true
}

func (s *sseWriter) sentinel() {
	if s.failed {
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", sseDoneSentinel); err != nil {
		s.failed = true
		return
	}
	s.flusher.Flush()
}
