package rag

import "errors"

var (
	ErrEmptyConversation  = errors.New("conversation has no messages")
	ErrLastMessageNotUser = errors.New("last message must come from the user")
	ErrInvalidRole        = errors.New("invalid message role")
	ErrNoQueryEmbedding   = errors.New("embedder returned no vector for the query")
)
