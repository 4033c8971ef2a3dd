package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var _ interfaces.LLM = (*OpenAIClient)(nil)

// OpenAIClient completes conversations against any OpenAI-compatible chat
// endpoint. Such endpoints have no safe_prompt switch, so SafePrompt is ignored.
type OpenAIClient struct {
	client *openai.Client
	logger zerolog.Logger
}

// NewOpenAIClientWithClient creates a client with custom HTTP client and base URL.
func NewOpenAIClientWithClient(apiKey string, httpClient *http.Client, baseURL string) (*OpenAIClient, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}
	config.HTTPClient = httpClient

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		logger: logger,
	}, nil
}

// Complete sends the conversation through go-openai and returns the first choice.
func (o *OpenAIClient) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*models.ChatMessage, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}

	request := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		request.Temperature = *req.Temperature
	}
	if req.SafePrompt {
		o.logger.Debug().Str("model", req.Model).Msg("safe prompt not supported by OpenAI-compatible endpoint")
	}

	resp, err := o.client.CreateChatCompletion(ctx, request)
	if err != nil {
		o.logger.Err(err).Str("model", req.Model).Msg("chat completion failed")
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: status %d: %w", ErrAPIRequestFailed, apiErr.HTTPStatusCode, err)
		}
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	o.logger.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Completed chat")

	choice := resp.Choices[0].Message
	return &models.ChatMessage{Role: models.Role(choice.Role), Content: choice.Content}, nil
}
