package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/internal/manager/models"
)

var ErrBatchTooLarge = errors.New("max batch size exceeded")

// FakeEmbedder returns deterministic vectors derived from each text's hash.
type FakeEmbedder struct {
	Dimension    int
	MaxBatchSize int
	Err          error

	mu    sync.Mutex
	Calls []EmbedCall
}

// EmbedCall records one Embed invocation.
type EmbedCall struct {
	Texts []string
	Mode  interfaces.EmbeddingMode
}

func (f *FakeEmbedder) Embed(
	_ context.Context,
	texts []string,
	mode interfaces.EmbeddingMode,
) ([][]float32, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, EmbedCall{Texts: append([]string(nil), texts...), Mode: mode})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.MaxBatchSize > 0 && len(texts) > f.MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = HashVector(text, f.GetDimension())
	}
	return vectors, nil
}

func (f *FakeEmbedder) GetModelName() string {
	return "fake-embedder"
}

func (f *FakeEmbedder) GetDimension() int {
	if f.Dimension == 0 {
		return 1024
	}
	return f.Dimension
}

// CallCount returns the number of Embed invocations.
func (f *FakeEmbedder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// HashVector builds a non-zero vector of the given dimension from text.
func HashVector(text string, dimension int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, dimension)
	for i := range vector {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vector[i] = float32(seed%1000)/1000 + 0.001
	}
	return vector
}

// WordChunker splits text into fixed-size word windows.
type WordChunker struct {
	Words int
}

func (c WordChunker) Split(text string) ([]string, error) {
	words := strings.Fields(text)
	size := c.Words
	if size <= 0 {
		size = 20
	}

	var chunks []string
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks, nil
}

func (c WordChunker) GetChunkingStrategy() string {
	return "word"
}

// FakeLLM answers with scripted replies and records every request.
type FakeLLM struct {
	Replies []string
	Err     error

	mu       sync.Mutex
	Requests []interfaces.CompletionRequest
}

func (f *FakeLLM) Complete(_ context.Context, req *interfaces.CompletionRequest) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *req
	copied.Messages = append([]models.ChatMessage(nil), req.Messages...)
	f.Requests = append(f.Requests, copied)

	if f.Err != nil {
		return nil, f.Err
	}

	reply := "reply"
	if idx := len(f.Requests) - 1; idx < len(f.Replies) {
		reply = f.Replies[idx]
	}
	return &models.ChatMessage{Role: models.RoleAssistant, Content: reply}, nil
}

// WordTokenizer counts whitespace separated words across message contents.
type WordTokenizer struct {
	Err error
}

func (w WordTokenizer) CountTokens(messages []models.ChatMessage, _ string) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	count := 0
	for _, msg := range messages {
		count += len(strings.Fields(msg.Content))
	}
	return count, nil
}
