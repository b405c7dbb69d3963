package httpapi_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/chat"
	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/httpapi"
	"github.com/agnt-gg/slop-sub000/internal/memstore"
	"github.com/agnt-gg/slop-sub000/internal/pay"
	"github.com/agnt-gg/slop-sub000/internal/resstore"
	"github.com/agnt-gg/slop-sub000/internal/tools"
)

// sseFrame is one parsed server-sent event.
type sseFrame struct {
	event string
	data  string
}

func parseSSE(t *testing.T, body string) []sseFrame {
	t.Helper()
	var frames []sseFrame
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var frame sseFrame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				frame.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				frame.data = strings.TrimPrefix(line, "data: ")
			default:
				t.Fatalf("unexpected SSE line %q", line)
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestStreamFrameSequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := api.ChatRequest{Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("tell me a story")}}}

	rec := f.do(t, http.MethodPost, "/chat/stream", "chat.write", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	frames := parseSSE(t, rec.Body.String())
	if len(frames) < 4 {
		t.Fatalf("expected start, tokens, completion and sentinel, got %d frames", len(frames))
	}
	if frames[0].event != "start" {
		t.Fatalf("first frame event = %q, want start", frames[0].event)
	}
	last := frames[len(frames)-1]
	if last.data != "[DONE]" {
		t.Fatalf("last frame = %q, want [DONE]", last.data)
	}

	var assembled strings.Builder
	sawComplete := false
	for _, frame := range frames[1 : len(frames)-1] {
		var tok chat.Token
		if err := json.Unmarshal([]byte(frame.data), &tok); err != nil {
			t.Fatalf("decode token frame %q: %v", frame.data, err)
		}
		if tok.Done() {
			sawComplete = true
			continue
		}
		if sawComplete {
			t.Fatal("content token after completion frame")
		}
		assembled.WriteString(tok.Content)
	}
	if !sawComplete {
		t.Fatal("no completion frame before the sentinel")
	}

	// The assembled stream matches what the synchronous endpoint would say.
	var sync api.ChatResponse
	decodeInto(t, f.do(t, http.MethodPost, "/chat", "chat.write", body), &sync)
	if assembled.String() != sync.Message.Content {
		t.Fatalf("assembled %q, synchronous reply %q", assembled.String(), sync.Message.Content)
	}
}

func TestStreamEmptyMessagesFailsBeforeTransport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/chat/stream", "chat.write", api.ChatRequest{})
	wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestStreamRequiresWriteScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := api.ChatRequest{Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hi")}}}
	wantScopeDenied(t, f.do(t, http.MethodPost, "/chat/stream", "chat.read", body))
}

func TestStreamGenerationFailureEmitsErrorFrame(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	memory := memstore.New(clk, nil)
	t.Cleanup(memory.Close)
	broken := chat.GeneratorFunc(func([]chat.Message, string) (string, error) {
		return "", errors.New("model unavailable")
	})
	h, err := httpapi.New(httpapi.Config{
		Chat:      chat.New(broken, clk, nil),
		Tools:     tools.NewRegistry(nil),
		Memory:    memory,
		Resources: resstore.New(clk, nil),
		Ledger:    pay.New(clk, nil),
		Clock:     clk,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat/stream",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("X-SLOP-SCOPE", "chat.write")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("transport should be committed before failure, got %d", rec.Code)
	}
	frames := parseSSE(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("expected start, error and sentinel, got %d frames: %+v", len(frames), frames)
	}
	if frames[0].event != "start" {
		t.Fatalf("first frame event = %q", frames[0].event)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal([]byte(frames[1].data), &resp); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if resp.Error.Code != "GENERATION_ERROR" {
		t.Fatalf("error frame code = %q", resp.Error.Code)
	}
	if frames[2].data != "[DONE]" {
		t.Fatalf("stream must end with the sentinel, got %q", frames[2].data)
	}
}

func TestStreamPersistsThreadExchange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("remember this")}},
		ThreadID: "journal",
	}
	rec := f.do(t, http.MethodPost, "/chat/stream", "chat.write", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/chat/thread_journal", "chat.journal.read", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("thread after stream: %d %s", rec.Code, rec.Body.String())
	}
	var conv api.ConversationResponse
	decodeInto(t, rec, &conv)
	if len(conv.Messages) != 2 {
		t.Fatalf("expected the drained stream to persist 2 messages, got %d", len(conv.Messages))
	}
}
