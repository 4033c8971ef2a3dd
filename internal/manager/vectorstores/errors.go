package vectorstores

import "errors"

var (
	ErrNamespaceRequired = errors.New("namespace is required")
	ErrInvalidTopK       = errors.New("topK must be positive")
	ErrDimensionMismatch = errors.New("vector dimension does not match store")
	ErrUnknownStore      = errors.New("unknown vector store")
	ErrDatabaseRequired  = errors.New("libsql vector store needs a database connection")
)

func isZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}
