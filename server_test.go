package slop_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	slop "github.com/agnt-gg/slop-sub000"
	"github.com/agnt-gg/slop-sub000/api"
)

func TestServerServesGatewayEndToEnd(t *testing.T) {
	ts := slop.NewTestServer(t, slop.Config{})

	resp, err := http.Get(ts.BaseURL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	body, err := json.Marshal(api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: api.TextContent("hello gateway")}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SLOP-SCOPE", "chat.write")
	chatResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	defer chatResp.Body.Close()
	if chatResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(chatResp.Body)
		t.Fatalf("chat status = %d, body %s", chatResp.StatusCode, data)
	}
	var out api.ChatResponse
	if err := json.NewDecoder(chatResp.Body).Decode(&out); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if out.ID == "" || out.Message.Role != "assistant" {
		t.Fatalf("unexpected chat response: %+v", out)
	}
}

func TestServerReportsConfiguredModels(t *testing.T) {
	ts := slop.NewTestServer(t, slop.Config{Models: []string{"alpha", "beta"}})

	resp, err := http.Get(ts.BaseURL + "/models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	defer resp.Body.Close()
	var models api.ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(models.Models) != 2 || models.Models[0] != "alpha" || models.Models[1] != "beta" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestServerShutdownIsIdempotent(t *testing.T) {
	ts := slop.NewTestServer(t, slop.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ts.Stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := ts.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := ts.Server.Shutdown(ctx); err != nil {
		t.Fatalf("direct shutdown after stop: %v", err)
	}
}

func TestServerHandlerIsMountable(t *testing.T) {
	srv, err := slop.NewServer(slop.Config{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()
	if srv.Handler() == nil {
		t.Fatal("handler is nil")
	}
}
