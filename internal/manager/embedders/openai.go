package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/code-sleuth/ike-wp/internal/manager/interfaces"
	"github.com/code-sleuth/ike-wp/pkg/util"

	"github.com/rs/zerolog"
)

var _ interfaces.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder implements embedding using OpenAI's API.
// OpenAI models are symmetric, so the embedding mode is ignored.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

// OpenAIEmbeddingRequest represents the request structure for OpenAI embeddings API.
type OpenAIEmbeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

// OpenAIEmbeddingResponse represents the response structure from OpenAI embeddings API.
type OpenAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model  string `json:"model"`
	Object string `json:"object"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIEmbedderWithClient creates a new OpenAI embedder with custom HTTP client and API URL.
func NewOpenAIEmbedderWithClient(
	model string,
	apiKey string,
	httpClient *http.Client,
	apiURL string,
) (*OpenAIEmbedder, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	// text-embedding-3 models are shortened to 1024 dimensions so they share
	// the vector schema with the Voyage models.
	var dimension int
	switch model {
	case "text-embedding-3-small", "text-embedding-3-large":
		dimension = 1024
	case "text-embedding-ada-002":
		dimension = 1536
	default:
		logger.Error().Str("unsupported model", model).Err(ErrUnsupportedModel).Send()
		return nil, ErrUnsupportedModel
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	if apiURL == "" {
		apiURL = "https://api.openai.com/v1/embeddings"
	}

	return &OpenAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: httpClient,
		apiURL:     apiURL,
		logger:     logger,
	}, nil
}

// Embed creates one vector per text, in input order.
func (o *OpenAIEmbedder) Embed(
	ctx context.Context,
	texts []string,
	_ interfaces.EmbeddingMode,
) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		o.logger.Warn().Err(err).Int("batch_size", len(texts)).Msg("invalid embedding batch")
		return nil, err
	}

	// Clean the content (remove newlines and extra spaces)
	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	}

	request := OpenAIEmbeddingRequest{
		Input:          cleaned,
		Model:          o.model,
		EncodingFormat: "float",
	}
	if o.model != "text-embedding-ada-002" {
		request.Dimensions = o.dimension
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		o.logger.Err(err).Msg("failed to marshal request")
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		o.apiURL,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		o.logger.Err(err).Msg("failed to create request")
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Err(err).Msg("failed to make request")
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			o.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		o.logger.Error().Int("status_code", resp.StatusCode).Msg("API request failed")
		return nil, fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
	}

	var response OpenAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		o.logger.Err(err).Msg("failed to decode response")
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, ErrEmbeddingCount
		}
		embeddings[item.Index] = item.Embedding
	}
	if err := validateEmbeddings(embeddings, o.dimension); err != nil {
		o.logger.Error().Err(err).Str("model", o.model).Msg("invalid embeddings in response")
		return nil, err
	}

	o.logger.Debug().Str("model", o.model).Int("tokens_used", response.Usage.TotalTokens).Msg("Generated embeddings")
	return embeddings, nil
}

// GetModelName returns the name of the embedding model.
func (o *OpenAIEmbedder) GetModelName() string {
	return o.model
}

// GetDimension returns the dimension of the embedding vectors.
func (o *OpenAIEmbedder) GetDimension() int {
	return o.dimension
}
