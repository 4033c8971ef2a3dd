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

var _ interfaces.Embedder = (*VoyageEmbedder)(nil)

// VoyageEmbedder implements embedding using Voyage AI's API, which
// distinguishes document and query inputs.
type VoyageEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

// VoyageEmbeddingRequest represents the request structure for Voyage AI embeddings API.
type VoyageEmbeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

// VoyageEmbeddingResponse represents the response structure from Voyage AI embeddings API.
type VoyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewVoyageEmbedderWithClient creates a new Voyage AI embedder with custom HTTP client and API URL.
func NewVoyageEmbedderWithClient(
	model string,
	apiKey string,
	httpClient *http.Client,
	apiURL string,
) (*VoyageEmbedder, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("VOYAGE_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	var dimension int
	switch model {
	case "voyage-large-2-instruct", "voyage-large-2", "voyage-2", "voyage-3", "voyage-3-large", "voyage-code-3":
		dimension = 1024
	case "voyage-3-lite":
		dimension = 512
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
		apiURL = "https://api.voyageai.com/v1/embeddings"
	}

	return &VoyageEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: httpClient,
		apiURL:     apiURL,
		logger:     logger,
	}, nil
}

// Embed creates one vector per text, in input order.
func (v *VoyageEmbedder) Embed(
	ctx context.Context,
	texts []string,
	mode interfaces.EmbeddingMode,
) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		v.logger.Warn().Err(err).Int("batch_size", len(texts)).Msg("invalid embedding batch")
		return nil, err
	}

	request := VoyageEmbeddingRequest{
		Input:     texts,
		Model:     v.model,
		InputType: string(mode),
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		v.logger.Err(err).Msg("failed to marshal request")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		v.logger.Err(err).Msg("failed to create request")
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", v.apiKey))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Err(err).Msg("failed to make request")
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			v.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		v.logger.Error().Int("status_code", resp.StatusCode).Msg("API request failed")
		return nil, fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
	}

	var response VoyageEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		v.logger.Err(err).Msg("failed to decode response")
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
	if err := validateEmbeddings(embeddings, v.dimension); err != nil {
		v.logger.Error().Err(err).Str("model", v.model).Msg("invalid embeddings in response")
		return nil, err
	}

	v.logger.Debug().
		Str("model", v.model).
		Str("input_type", string(mode)).
		Int("batch_size", len(texts)).
		Int("tokens_used", response.Usage.TotalTokens).
		Msg("Generated embeddings")
	return embeddings, nil
}

// GetModelName returns the name of the embedding model.
func (v *VoyageEmbedder) GetModelName() string {
	return v.model
}

// GetDimension returns the dimension of the embedding vectors.
func (v *VoyageEmbedder) GetDimension() int {
	return v.dimension
}

func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return ErrContentEmpty
	}
	if len(texts) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return ErrContentEmpty
		}
	}
	return nil
}

func validateEmbeddings(embeddings [][]float32, dimension int) error {
	for _, embedding := range embeddings {
		if embedding == nil {
			return ErrEmbeddingCount
		}
		if len(embedding) != dimension {
			return ErrDimensionInvalid
		}
	}
	return nil
}
