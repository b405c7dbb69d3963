package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/chat"
	"github.com/agnt-gg/slop-sub000/internal/scope"
)

// handleChatWS serves the WebSocket chat transport. Each inbound message is
// a chat request; its scope is re-validated per message against the grants
// supplied on the upgrade request. One JSON frame is pushed per token,
// followed by a terminal completion frame.
func (h *Handler) handleChatWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already written its own error response.
		return nil
	}
	defer conn.CloseNow()

	ctx := r.Context()
	logger := pslog.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}
	logger.Debug("chat.ws.open", "remote_addr", r.RemoteAddr)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logger.Trace("chat.ws.closed", "error", err)
			return nil
		}
		var req api.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !h.writeWSFrame(ctx, conn, api.ErrorResponse{Error: api.ErrorDetail{
				Code:    codeInvalidJSON,
				Message: err.Error(),
				Status:  http.StatusBadRequest,
			}}) {
				return nil
			}
			continue
		}
		if !h.serveWSChat(ctx, conn, r, req, logger) {
			return nil
		}
	}
}

// serveWSChat handles one inbound chat message. It reports false once the
// socket is unusable and reading should stop.
func (h *Handler) serveWSChat(ctx context.Context, conn *websocket.Conn, r *http.Request, req api.ChatRequest, logger pslog.Logger) bool {
	required := scope.FormatGlobal("chat", "write")
	if err := requireScope(r, required); err != nil {
		logger.Debug("chat.ws.scope_denied", "required", required)
		return h.writeWSFrame(ctx, conn, api.ScopeDeniedResponse{
			Error:     scopeError{Required: required}.Error(),
			Permitted: false,
		})
	}

	stream, err := h.chat.CreateStreamingChat(chatRequestFromWire(req))
	if err != nil {
		code := codeGenerationError
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrEmptyMessages) {
			code = codeInvalidRequest
			status = http.StatusBadRequest
		}
		return h.writeWSFrame(ctx, conn, api.ErrorResponse{Error: api.ErrorDetail{
			Code:    code,
			Message: err.Error(),
			Status:  status,
		}})
	}

	for {
		tok, more := stream.Next()
		if !more {
			return true
		}
		if !h.writeWSFrame(ctx, conn, tok) {
			return false
		}
	}
}

func (h *Handler) writeWSFrame(ctx context.Context, conn *websocket.Conn, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return false
	}
	return true
}
