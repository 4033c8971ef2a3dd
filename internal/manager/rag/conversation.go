package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

const (
	DefaultTopK             = 5
	DefaultMaxHistoryTokens = 1000
	DefaultSummaryWords     = 400

	contextPreamble  = "You can use the following data to answer the user query:"
	snippetSeparator = "\n\n-----\n\n"
	chainOfThought   = "\nLet's think step by step."
)

var summaryTemperature float32 = 0.3

// ConversationController answers the last user message of a conversation
// with context retrieved from a site's namespace.
type ConversationController struct {
	retriever        *Retriever
	llm              interfaces.LLM
	tokenizer        interfaces.Tokenizer
	model            string
	safePrompt       bool
	topK             int
	maxHistoryTokens int
	summaryWords     int
	logger           zerolog.Logger
}

// NewConversationController creates a controller answering with client and
// model. Safe prompt is on, top-k is 5 and history over 1000 tokens is summarised.
func NewConversationController(
	retriever *Retriever,
	llm interfaces.LLM,
	tokenizer interfaces.Tokenizer,
	model string,
) *ConversationController {
	return &ConversationController{
		retriever:        retriever,
		llm:              llm,
		tokenizer:        tokenizer,
		model:            model,
		safePrompt:       true,
		topK:             DefaultTopK,
		maxHistoryTokens: DefaultMaxHistoryTokens,
		summaryWords:     DefaultSummaryWords,
		logger:           util.NewLogger(zerolog.InfoLevel),
	}
}

// SetSafePrompt toggles the provider's safety guardrail on answer requests.
func (c *ConversationController) SetSafePrompt(enabled bool) {
	c.safePrompt = enabled
}

// SetTopK sets how many snippets are retrieved per question.
func (c *ConversationController) SetTopK(k int) {
	if k > 0 {
		c.topK = k
	}
}

// SetMaxHistoryTokens sets the history size above which it is summarized.
func (c *ConversationController) SetMaxHistoryTokens(tokens int) {
	if tokens > 0 {
		c.maxHistoryTokens = tokens
	}
}

// SetLogger replaces the controller logger.
func (c *ConversationController) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Generate answers the last message of history and returns the conversation
// with the reply appended. When everything before the last message exceeds
// the token budget it is replaced by a summary first.
func (c *ConversationController) Generate(
	ctx context.Context,
	namespace string,
	history []models.ChatMessage,
	temperature *float32,
) ([]models.ChatMessage, error) {
	if err := validateHistory(history); err != nil {
		c.logger.Warn().Err(err).Str("namespace", namespace).Msg("Rejected conversation")
		return nil, err
	}

	last := history[len(history)-1]
	prefix := append([]models.ChatMessage(nil), history[:len(history)-1]...)

	tokens, err := c.tokenizer.CountTokens(prefix, c.model)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to count history tokens")
		return nil, err
	}

	if tokens > c.maxHistoryTokens {
		c.logger.Info().Int("tokens", tokens).Int("budget", c.maxHistoryTokens).Msg("Summarizing history")
		prefix, err = c.summarize(ctx, prefix)
		if err != nil {
			return nil, err
		}
	}

	snippets, err := c.retriever.RetrieveSimilar(ctx, last.Content, c.topK, namespace)
	if err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(prefix)+2)
	messages = append(messages, prefix...)
	messages = append(messages,
		models.ChatMessage{Role: models.RoleSystem, Content: contextMessage(snippets)},
		models.ChatMessage{Role: last.Role, Content: last.Content + chainOfThought},
	)

	reply, err := c.llm.Complete(ctx, &interfaces.CompletionRequest{
		Messages:    messages,
		Model:       c.model,
		Temperature: temperature,
		SafePrompt:  c.safePrompt,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("namespace", namespace).Msg("Answer request failed")
		return nil, err
	}

	output := make([]models.ChatMessage, 0, len(prefix)+2)
	output = append(output, prefix...)
	output = append(output, last, models.ChatMessage{Role: reply.Role, Content: reply.Content})
	return output, nil
}

// summarize replaces history with a leading system message, if any, and a
// single summary produced by the model.
func (c *ConversationController) summarize(
	ctx context.Context,
	history []models.ChatMessage,
) ([]models.ChatMessage, error) {
	var system []models.ChatMessage
	if len(history) > 0 && history[0].Role == models.RoleSystem {
		system = []models.ChatMessage{history[0]}
		history = history[1:]
	}

	messages := make([]models.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: summaryInstruction(c.summaryWords)})

	temperature := summaryTemperature
	summary, err := c.llm.Complete(ctx, &interfaces.CompletionRequest{
		Messages:    messages,
		Model:       c.model,
		Temperature: &temperature,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Summary request failed")
		return nil, err
	}

	return append(system, models.ChatMessage{Role: summary.Role, Content: summary.Content}), nil
}

func summaryInstruction(words int) string {
	return fmt.Sprintf("Summarize our conversation till now under %d words. ", words) +
		"Keep any important pieces of information and user queries " +
		"which may be necessary for future conversations."
}

func contextMessage(snippets []string) string {
	var b strings.Builder
	b.WriteString(contextPreamble)
	for _, snippet := range snippets {
		b.WriteString(snippetSeparator)
		b.WriteString(snippet)
	}
	return b.String()
}

func validateHistory(history []models.ChatMessage) error {
	if len(history) == 0 {
		return ErrEmptyConversation
	}
	for i, msg := range history {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: %q at index %d", ErrInvalidRole, msg.Role, i)
		}
	}
	if history[len(history)-1].Role != models.RoleUser {
		return ErrLastMessageNotUser
	}
	return nil
}
