package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

const DefaultMistralBaseURL = "https://api.mistral.ai/v1"

var _ interfaces.LLM = (*MistralClient)(nil)

// MistralClient completes conversations with Mistral's chat API, which
// supports the safe_prompt guardrail.
type MistralClient struct {
	apiKey     string
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MistralChatRequest represents the request structure for the Mistral chat API.
type MistralChatRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Temperature *float32         `json:"temperature,omitempty"`
	SafePrompt  bool             `json:"safe_prompt"`
}

// MistralChatResponse represents the response structure from the Mistral chat API.
type MistralChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int            `json:"index"`
		Message      mistralMessage `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewMistralClientWithClient creates a Mistral client with custom HTTP client and base URL.
func NewMistralClientWithClient(apiKey string, httpClient *http.Client, baseURL string) (*MistralClient, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("MISTRAL_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	if baseURL == "" {
		baseURL = DefaultMistralBaseURL
	}

	return &MistralClient{
		apiKey:     apiKey,
		httpClient: httpClient,
		apiURL:     strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		logger:     logger,
	}, nil
}

// Complete sends the conversation to the chat completions endpoint and returns the first choice.
func (m *MistralClient) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*models.ChatMessage, error) {
	messages := make([]mistralMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = mistralMessage{Role: string(msg.Role), Content: msg.Content}
	}

	requestBody, err := json.Marshal(MistralChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		SafePrompt:  req.SafePrompt,
	})
	if err != nil {
		m.logger.Err(err).Msg("failed to marshal request")
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		m.logger.Err(err).Msg("failed to create request")
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		m.logger.Err(err).Msg("failed to make request")
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		m.logger.Error().Int("status_code", resp.StatusCode).Str("body", string(body)).Msg("API request failed")
		return nil, fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
	}

	var response MistralChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		m.logger.Err(err).Msg("failed to decode response")
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, ErrNoChoices
	}

	m.logger.Debug().
		Str("model", response.Model).
		Int("prompt_tokens", response.Usage.PromptTokens).
		Int("completion_tokens", response.Usage.CompletionTokens).
		Msg("Completed chat")

	choice := response.Choices[0].Message
	return &models.ChatMessage{Role: models.Role(choice.Role), Content: choice.Content}, nil
}
