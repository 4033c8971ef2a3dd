package services

import "errors"

const (
	// DefaultBatchSize is the number of chunks embedded and upserted together.
	DefaultBatchSize = 128
	// MaxBatchSize is the largest batch the embedding APIs accept.
	MaxBatchSize = 128
	// DefaultMinContentLength drops records whose extracted text has at most this many characters.
	DefaultMinContentLength = 200
)

var (
	ErrUnsupportedSite    = errors.New("site does not serve the wp/v2 REST API")
	ErrAssertionViolation = errors.New("zero-vector probe returned more than one match")
	ErrInvalidSiteURL     = errors.New("site URL has no hostname")
	ErrEmbeddingMismatch  = errors.New("embedder returned a different number of vectors than texts")
)
