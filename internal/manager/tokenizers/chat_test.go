package tokenizers

import (
	"strings"
	"testing"

	"github.com/code-sleuth/ike-wp/internal/manager/models"
)

func TestChatTokenizer_CountTokens(t *testing.T) {
	tok, err := NewChatTokenizer("cl100k_base")
	if err != nil {
		t.Fatalf("Failed to create tokenizer: %v", err)
	}

	tests := []struct {
		name     string
		messages []models.ChatMessage
		expected int
	}{
		{
			name:     "no messages",
			messages: nil,
			expected: 0,
		},
		{
			name:     "single user message",
			messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello world"}},
			// priming 3 + framing 3 + "user" 1 + "hello world" 2
			expected: 9,
		},
		{
			name: "two messages",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: "hello world"},
				{Role: models.RoleAssistant, Content: "hello"},
			},
			// 9 + framing 3 + "assistant" 1 + "hello" 1
			expected: 14,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tok.CountTokens(tt.messages, "open-mistral-7b")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %d tokens, got %d", tt.expected, got)
			}
		})
	}
}

func TestChatTokenizer_CountTokens_Grows(t *testing.T) {
	tok, err := NewChatTokenizer("cl100k_base")
	if err != nil {
		t.Fatalf("Failed to create tokenizer: %v", err)
	}

	short := []models.ChatMessage{{Role: models.RoleUser, Content: "question"}}
	long := []models.ChatMessage{{Role: models.RoleUser, Content: strings.Repeat("question ", 1200)}}

	shortCount, err := tok.CountTokens(short, "gpt-4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	longCount, err := tok.CountTokens(long, "gpt-4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if longCount <= 1000 || longCount <= shortCount {
		t.Errorf("Expected long conversation above 1000 tokens, got short=%d long=%d", shortCount, longCount)
	}
}
