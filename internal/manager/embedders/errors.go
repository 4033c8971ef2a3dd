package embedders

import (
	"errors"
	"time"
)

var timeout = 60 * time.Second

// MaxBatchSize is the largest number of texts one Embed call accepts.
const MaxBatchSize = 128

var (
	ErrAPIKeyNotSet     = errors.New("API key not set")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrContentEmpty     = errors.New("content is empty")
	ErrAPIRequestFailed = errors.New("API request failed")
	ErrNoEmbeddingData  = errors.New("no embedding data in response")
	ErrBatchTooLarge    = errors.New("embedding batch exceeds maximum size")
	ErrEmbeddingCount   = errors.New("embedding count does not match input count")
	ErrDimensionInvalid = errors.New("embedding dimension does not match model")
)
