package chunkers

import (
	"errors"
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/pkg/util"
	"github.com/rs/zerolog"

	"github.com/tiktoken-go/tokenizer"
)

var (
	ErrContentEmpty     = errors.New("content cannot be empty")
	ErrInvalidMaxTokens = errors.New("maxTokens must be positive")
	ErrInvalidOverlap   = errors.New("overlapTokens must be between 0 and maxTokens")
)

var _ interfaces.Chunker = (*TokenChunker)(nil)

// TokenChunker implements token-based chunking using tiktoken.
type TokenChunker struct {
	encoding      tokenizer.Codec
	maxTokens     int
	overlapTokens int
	logger        zerolog.Logger
}

// NewTokenChunkerWithConfig creates a chunker with an explicit tokenizer and window.
func NewTokenChunkerWithConfig(tokenizerName string, maxTokens, overlapTokens int) (*TokenChunker, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	if maxTokens <= 0 {
		logger.Error().Int("max_tokens", maxTokens).Msg("maxTokens must be positive")
		return nil, ErrInvalidMaxTokens
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		logger.Error().Int("overlap_tokens", overlapTokens).Msg("overlapTokens must be between 0 and maxTokens")
		return nil, ErrInvalidOverlap
	}

	encoding, err := GetTokenizerEncoding(tokenizerName)
	if err != nil {
		logger.Error().Err(err).Str("tokenizer", tokenizerName).Msg("failed to get tokenizer")
		return nil, err
	}

	return &TokenChunker{
		encoding:      encoding,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		logger:        logger,
	}, nil
}

// SetLogger replaces the chunker's logger.
func (t *TokenChunker) SetLogger(logger zerolog.Logger) {
	t.logger = logger
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (t *TokenChunker) GetChunkingStrategy() string {
	return "token"
}

// Split splits text using the chunker's configured window and overlap.
func (t *TokenChunker) Split(text string) ([]string, error) {
	return t.ChunkDocumentWithOverlap(text, t.maxTokens, t.overlapTokens)
}

// ChunkDocumentWithOverlap splits a document with overlapping chunks for better context.
func (t *TokenChunker) ChunkDocumentWithOverlap(
	content string,
	maxTokens int,
	overlapTokens int,
) ([]string, error) {
	if content == "" {
		t.logger.Warn().Msg("content is empty")
		return nil, ErrContentEmpty
	}

	if maxTokens <= 0 {
		t.logger.Warn().Msg("maxTokens must be positive")
		return nil, ErrInvalidMaxTokens
	}

	if overlapTokens < 0 || overlapTokens >= maxTokens {
		t.logger.Warn().Msg("overlapTokens must be between 0 and maxTokens")
		return nil, ErrInvalidOverlap
	}

	tokens, _, err := t.encoding.Encode(content)
	if err != nil {
		t.logger.Err(err).Msg("failed to tokenize content")
		return nil, err
	}

	totalTokens := len(tokens)

	// If content fits in one chunk, return it as-is
	if totalTokens <= maxTokens {
		return []string{content}, nil
	}

	var chunks []string
	stepSize := maxTokens - overlapTokens

	for i := 0; i < totalTokens; i += stepSize {
		end := min(i+maxTokens, totalTokens)

		chunkText, err := t.encoding.Decode(tokens[i:end])
		if err != nil {
			t.logger.Err(err).Msg("failed to decode chunk tokens")
			return nil, err
		}

		if chunkText = strings.TrimSpace(chunkText); chunkText != "" {
			chunks = append(chunks, chunkText)
		}

		if end >= totalTokens {
			break
		}
	}

	return chunks, nil
}

// GetTokenizerEncoding returns the tokenizer encoding for the given name.
func GetTokenizerEncoding(name string) (tokenizer.Codec, error) {
	switch strings.ToLower(name) {
	case "cl100k_base":
		return tokenizer.Get(tokenizer.Cl100kBase)
	case "p50k_base":
		return tokenizer.Get(tokenizer.P50kBase)
	case "r50k_base":
		return tokenizer.Get(tokenizer.R50kBase)
	default:
		// Default to cl100k_base for unknown tokenizers
		return tokenizer.Get(tokenizer.Cl100kBase)
	}
}
