package tokenizers

import (
	"sync"

	"github.com/code-sleuth/ike-wp/internal/manager/chunkers"
	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

const (
	// Framing tokens each message costs on top of its role and content.
	tokensPerMessage = 3
	// Tokens priming the assistant reply.
	tokensReplyPriming = 3
)

var _ interfaces.Tokenizer = (*ChatTokenizer)(nil)

// ChatTokenizer counts the tokens a conversation takes in a chat request.
// Models tiktoken knows use their own encoding; others use the fallback.
type ChatTokenizer struct {
	fallback tokenizer.Codec
	mu       sync.Mutex
	codecs   map[string]tokenizer.Codec
	logger   zerolog.Logger
}

// NewChatTokenizer creates a tokenizer using fallbackEncoding for unknown models.
func NewChatTokenizer(fallbackEncoding string) (*ChatTokenizer, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	fallback, err := chunkers.GetTokenizerEncoding(fallbackEncoding)
	if err != nil {
		logger.Error().Err(err).Str("encoding", fallbackEncoding).Msg("failed to get tokenizer")
		return nil, err
	}

	return &ChatTokenizer{
		fallback: fallback,
		codecs:   make(map[string]tokenizer.Codec),
		logger:   logger,
	}, nil
}

// CountTokens returns the token count of messages for model.
func (c *ChatTokenizer) CountTokens(messages []models.ChatMessage, model string) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	codec := c.codecFor(model)

	total := tokensReplyPriming
	for _, msg := range messages {
		roleTokens, _, err := codec.Encode(string(msg.Role))
		if err != nil {
			c.logger.Error().Err(err).Msg("failed to tokenize role")
			return 0, err
		}
		contentTokens, _, err := codec.Encode(msg.Content)
		if err != nil {
			c.logger.Error().Err(err).Msg("failed to tokenize content")
			return 0, err
		}
		total += tokensPerMessage + len(roleTokens) + len(contentTokens)
	}

	return total, nil
}

func (c *ChatTokenizer) codecFor(model string) tokenizer.Codec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if codec, ok := c.codecs[model]; ok {
		return codec
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		c.logger.Debug().Str("model", model).Msg("no tiktoken encoding for model, using fallback")
		codec = c.fallback
	}
	c.codecs[model] = codec
	return codec
}
