// Package retrieval implements query embedding, vector similarity search,
// and the similarity-floor filtering described for the core's search
// operation. It depends on its collaborators only through the Embedder and
// VectorStore interfaces, so the Vertex AI and Postgres adapters never leak
// into this package.
package retrieval

import (
	"context"
	"time"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
)

// Per-call bounds applied by Search to the embedder and the vector store.
const (
	embeddingTimeout = 10 * time.Second
	storeReadTimeout = 5 * time.Second
)

// EmbeddedText pairs one input string with its embedding vector.
type EmbeddedText struct {
	Text   string
	Vector []float32
}

// Embedder produces embeddings for one or more query strings. Output is
// assumed to be L2-normalized.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]EmbeddedText, error)
}

// SearchFilter narrows a vector search to chunks of a single document.
type SearchFilter struct {
	DocumentID string // empty means unfiltered
}

// SearchHit is one result from a vector store query: a chunk, its owning
// document, and the cosine distance to the query vector.
type SearchHit struct {
	Chunk    model.Chunk
	Document model.Document
	Distance float64
}

// VectorStore finds the chunks nearest a query embedding.
type VectorStore interface {
	Search(ctx context.Context, queryVec []float32, topK int, filter SearchFilter) ([]SearchHit, error)
}

// Service implements the search operation over an Embedder and a
// VectorStore.
type Service struct {
	Embedder Embedder
	Store    VectorStore
}

// New returns a Service over the given collaborators.
func New(embedder Embedder, store VectorStore) *Service {
	return &Service{Embedder: embedder, Store: store}
}

// Search embeds query, asks the store for topK nearest chunks (optionally
// restricted to one document), converts distance to similarity, and drops
// entries below minSimilarity. The store's ordering is preserved; an empty
// result is a successful outcome.
func (s *Service) Search(ctx context.Context, query string, topK int, minSimilarity float64, filter SearchFilter) ([]model.RetrievedChunk, error) {
	embedCtx, cancelEmbed := context.WithTimeout(ctx, embeddingTimeout)
	defer cancelEmbed()
	embedded, err := s.Embedder.Embed(embedCtx, []string{query})
	if err != nil {
		return nil, classifyEmbedderError(embedCtx, err)
	}
	if len(embedded) == 0 {
		return nil, apperror.InternalError("embedder returned no vectors")
	}

	storeCtx, cancelStore := context.WithTimeout(ctx, storeReadTimeout)
	defer cancelStore()
	hits, err := s.Store.Search(storeCtx, embedded[0].Vector, topK, filter)
	if err != nil {
		return nil, classifyStoreError(storeCtx, err)
	}

	results := make([]model.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		sim := Similarity(h.Distance)
		if sim < minSimilarity {
			continue
		}
		results = append(results, model.RetrievedChunk{
			Chunk:      h.Chunk,
			Document:   h.Document,
			Similarity: sim,
		})
	}
	return results, nil
}

// Similarity converts a cosine distance in [0,1] to a similarity score in
// [0,1], clamping against out-of-range inputs from a misbehaving store.
func Similarity(distance float64) float64 {
	sim := 1 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func classifyEmbedderError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperror.GatewayTimeout("embedding request timed out")
	}
	return apperror.ServiceUnavailable("embedder unavailable")
}

func classifyStoreError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperror.GatewayTimeout("vector store request timed out")
	}
	return apperror.InternalError("vector store error")
}
