package models

import (
	"fmt"
	"time"
)

type ContentType string

const (
	ContentTypePage    ContentType = "page"
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
)

// CommentTitle is assigned to comments, which have no title upstream.
const CommentTitle = "Comment"

// ContentRecord is one item fetched from a WordPress collection.
type ContentRecord struct {
	ID      string      `json:"id"`
	Type    ContentType `json:"type"`
	Title   string      `json:"title"`
	Link    string      `json:"link"`
	Content string      `json:"content"`
}

// ChunkRecord is a slice of a ContentRecord's extracted text.
type ChunkRecord struct {
	ID       string      `json:"id"`
	Type     ContentType `json:"type"`
	Title    string      `json:"title"`
	Link     string      `json:"link"`
	Chunk    string      `json:"chunk"`
	ChunkIdx int         `json:"chunk_idx"`
}

// VectorID returns the deterministic vector id "{type}s/{id}#chunk{idx}".
func (c ChunkRecord) VectorID() string {
	return fmt.Sprintf("%ss/%s#chunk%d", c.Type, c.ID, c.ChunkIdx)
}

// EmbeddingText returns the chunk prefixed with its title, as sent to the embedder.
func (c ChunkRecord) EmbeddingText() string {
	return fmt.Sprintf("Title=[%s]\n%s", c.Title, c.Chunk)
}

type VectorMetadata struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Text  string `json:"text"`
}

type VectorEntry struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata VectorMetadata `json:"metadata"`
}

// Match is a single vector store query hit. Metadata is zero unless requested.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata VectorMetadata `json:"metadata"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Site is the registry row written after a successful ingestion.
type Site struct {
	Host       string    `json:"host"`
	SiteURL    string    `json:"site_url"`
	APIRoot    string    `json:"api_root"`
	RunID      string    `json:"run_id"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
