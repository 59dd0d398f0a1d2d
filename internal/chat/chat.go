// Package chat implements the end-to-end pipeline behind the chat
// endpoint: retrieval scoped to the last user message, prompt assembly,
// and a streaming or debug-materialized LLM completion.
package chat

import (
	"context"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
	"github.com/jacobkus/intelligent-hr-assistant/internal/prompt"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
)

// retrievalTopK and retrievalMinSimilarity intentionally admit weaker
// evidence than the standalone retrieval endpoint's defaults, so the LLM
// has material to cite or explicitly decline from.
const (
	retrievalTopK          = 5
	retrievalMinSimilarity = 0.3
)

// StreamChunk is one increment of a streaming completion. Exactly one of
// Text or Err is meaningful per value received from Stream.Tokens.
type StreamChunk struct {
	Text string
	Err  error
}

// ContentFilteredError marks a completion rejected by the LLM's content
// filter. FinishReason carries the provider's raw reason for logging only.
type ContentFilteredError struct {
	FinishReason string
}

func (e *ContentFilteredError) Error() string {
	return "completion rejected by content filter"
}

// Stream is a live completion in progress. Tokens is closed when the
// completion ends, successfully or not; the final receive on Tokens
// before the channel closes carries any terminal error.
type Stream struct {
	Tokens <-chan StreamChunk
	cancel context.CancelFunc
}

// Cancel releases resources held by the in-flight completion. Safe to call
// after the stream has already finished.
func (s *Stream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewStream builds a Stream for an LLM implementation. cancel may be nil if
// the adapter has no separate cancellation handle beyond ctx.
func NewStream(tokens <-chan StreamChunk, cancel context.CancelFunc) *Stream {
	return &Stream{Tokens: tokens, cancel: cancel}
}

// LLM streams a completion for systemText plus the conversation history.
// Implementations must honor ctx cancellation by ending the stream and
// releasing the underlying connection.
type LLM interface {
	Stream(ctx context.Context, systemText string, messages []model.Message) (*Stream, error)
}

// Orchestrator wires retrieval, prompt assembly, and the LLM together.
type Orchestrator struct {
	Retriever *retrieval.Service
	LLM       LLM
}

// New returns an Orchestrator over the given collaborators.
func New(retriever *retrieval.Service, llm LLM) *Orchestrator {
	return &Orchestrator{Retriever: retriever, LLM: llm}
}

// RetrievedDoc is the per-chunk artifact surfaced in debug responses.
type RetrievedDoc struct {
	ChunkID       string  `json:"chunk_id"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	SourceFile    string  `json:"source_file"`
	DocumentTitle string  `json:"document_title"`
}

// Run executes retrieval and prompt assembly, then opens a completion
// stream. The last entry of messages must already be a user message; that
// invariant is enforced by the validator before Run is called. The
// returned RetrievedDoc slice is provided regardless of debug mode so
// callers can build either response shape without re-running retrieval.
func (o *Orchestrator) Run(ctx context.Context, messages []model.Message) (*Stream, []RetrievedDoc, error) {
	query := messages[len(messages)-1].Content

	results, err := o.Retriever.Search(ctx, query, retrievalTopK, retrievalMinSimilarity, retrieval.SearchFilter{})
	if err != nil {
		return nil, nil, err
	}

	systemText := prompt.Build(results)

	stream, err := o.LLM.Stream(ctx, systemText, messages)
	if err != nil {
		return nil, nil, classifyLLMError(err)
	}

	docs := make([]RetrievedDoc, 0, len(results))
	for _, r := range results {
		docs = append(docs, RetrievedDoc{
			ChunkID:       r.Chunk.ID,
			Content:       r.Chunk.Content,
			Similarity:    r.Similarity,
			SourceFile:    r.Document.SourceFile,
			DocumentTitle: r.Document.Title,
		})
	}

	return stream, docs, nil
}

func classifyLLMError(err error) error {
	if cf, ok := err.(*ContentFilteredError); ok {
		return apperror.ValidationFailed("response withheld by content filter", map[string]string{
			"reason":       "content_filtered",
			"finishReason": cf.FinishReason,
		})
	}
	return apperror.ServiceUnavailable("language model unavailable")
}
