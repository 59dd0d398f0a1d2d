// Package model holds the data types shared across the retrieval and chat
// pipeline. The core never writes Document or Chunk rows — ingestion owns
// that — it only reads them back through VectorStore.
package model

import "time"

// Document is an ingested source file. Immutable after ingestion.
type Document struct {
	ID         string
	Checksum   string
	SourceFile string
	Title      string
	CreatedAt  time.Time
}

// Chunk is a passage extracted from a Document, optionally embedded.
// Embedding is nil when the chunk has not yet been vectorized; search
// must skip such chunks.
type Chunk struct {
	ID           string
	DocumentID   string
	ChunkIndex   int
	Content      string
	SectionTitle string
	Embedding    []float32
}

// EmbeddingDimensions is the fixed vector length for query and chunk
// embeddings (§3 — "fixed-length vector of 1536 floats").
const EmbeddingDimensions = 1536

// Role distinguishes speakers in a chat conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a transient conversation. A conversation is an
// ordered sequence of Messages; the last entry must have Role == RoleUser.
type Message struct {
	Role    Role
	Content string
}

// RetrievedChunk pairs a Chunk and its owning Document with the
// similarity score computed for one query.
type RetrievedChunk struct {
	Chunk      Chunk
	Document   Document
	Similarity float64
}
