package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var received struct {
		Model       string   `json:"model"`
		Temperature *float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","model":"gpt-4o-mini","choices":[` +
			`{"index":0,"message":{"role":"assistant","content":"summary"},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClientWithClient("test-key", server.Client(), server.URL+"/v1")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	reply, err := client.Complete(context.Background(), &interfaces.CompletionRequest{
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "sys"},
			{Role: models.RoleUser, Content: "hi"},
		},
		Model:       "gpt-4o-mini",
		Temperature: float32Ptr(0.5),
		SafePrompt:  true,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if reply.Content != "summary" || reply.Role != models.RoleAssistant {
		t.Errorf("Unexpected reply %+v", reply)
	}
	if received.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", received.Model)
	}
	if received.Temperature == nil || *received.Temperature != 0.5 {
		t.Errorf("Expected temperature 0.5, got %v", received.Temperature)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" {
		t.Errorf("Unexpected messages %+v", received.Messages)
	}
}

func TestOpenAIClient_CompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClientWithClient("test-key", server.Client(), server.URL)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Complete(context.Background(), &interfaces.CompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		Model:    "gpt-4o-mini",
	})
	if !errors.Is(err, ErrAPIRequestFailed) {
		t.Errorf("Expected ErrAPIRequestFailed, got %v", err)
	}
}

func TestNewOpenAIClientWithClient_MissingKey(t *testing.T) {
	if _, err := NewOpenAIClientWithClient("", nil, ""); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("Expected ErrAPIKeyNotSet, got %v", err)
	}
}
