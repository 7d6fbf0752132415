package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/cgpt/internal/domain"
)

type openAIRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, choices []map[string]any, captured *openAIRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": choices,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestOpenAIClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: url + "/v1"}, nil)
}

func TestOpenAIComplete(t *testing.T) {
	var req openAIRequest
	server := newOpenAIServer(t, []map[string]any{
		{"index": 0, "message": map[string]any{"role": "assistant", "content": "Hello!"}},
		{"index": 1, "message": map[string]any{"role": "assistant", "content": "ignored"}},
	}, &req)

	reply, err := newTestOpenAIClient(server.URL).Complete(context.Background(), []domain.Message{
		domain.SystemMessage("persona"),
		domain.UserMessage("hi"),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	msg, ok := reply.Message()
	if !ok {
		t.Fatal("expected an answer")
	}
	if msg.Content != "Hello!" || msg.Role != domain.RoleAssistant {
		t.Fatalf("unexpected message %+v", msg)
	}

	if req.Model != DefaultOpenAIModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultOpenAIModel)
	}
	if req.MaxTokens != MaxTokens {
		t.Errorf("max_tokens = %d, want %d", req.MaxTokens, MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hi" {
		t.Errorf("unexpected request messages %+v", req.Messages)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	server := newOpenAIServer(t, []map[string]any{}, nil)

	reply, err := newTestOpenAIClient(server.URL).Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := reply.Message(); ok {
		t.Fatal("expected NoReply for empty choices")
	}
}

func TestOpenAICompleteEmptyContent(t *testing.T) {
	server := newOpenAIServer(t, []map[string]any{
		{"index": 0, "message": map[string]any{"role": "assistant", "content": ""}},
	}, nil)

	reply, err := newTestOpenAIClient(server.URL).Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	msg, ok := reply.Message()
	if !ok || msg.Content != NoContentText {
		t.Fatalf("expected placeholder answer, got %+v (ok=%v)", msg, ok)
	}
}

func TestOpenAICompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAIClient(server.URL).Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}
