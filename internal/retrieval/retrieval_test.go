package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddedText, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]EmbeddedText, len(texts))
	for i, t := range texts {
		out[i] = EmbeddedText{Text: t, Vector: s.vec}
	}
	return out, nil
}

type stubStore struct {
	hits []SearchHit
	err  error
}

func (s *stubStore) Search(ctx context.Context, queryVec []float32, topK int, filter SearchFilter) ([]SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.hits) {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func TestSimilarity_ConvertsAndClamps(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{1, 0},
		{0.28, 0.72},
		{-1, 1},
		{2, 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.distance); got != tt.want {
			t.Errorf("Similarity(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestSearch_FiltersByMinSimilarity(t *testing.T) {
	svc := New(&stubEmbedder{vec: []float32{0.1, 0.2}}, &stubStore{hits: []SearchHit{
		{Chunk: model.Chunk{ID: "c1"}, Document: model.Document{ID: "d1"}, Distance: 0.1},
		{Chunk: model.Chunk{ID: "c2"}, Document: model.Document{ID: "d1"}, Distance: 0.8},
	}})

	results, err := svc.Search(context.Background(), "vacation days", 5, 0.5, SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("unexpected surviving chunk: %s", results[0].Chunk.ID)
	}
	for _, r := range results {
		if r.Similarity < 0.5 {
			t.Errorf("result similarity %v below floor 0.5", r.Similarity)
		}
	}
}

func TestSearch_EmptyResultIsSuccess(t *testing.T) {
	svc := New(&stubEmbedder{vec: []float32{0.1}}, &stubStore{hits: nil})
	results, err := svc.Search(context.Background(), "cafeteria menu", 5, 0.3, SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d entries", len(results))
	}
}

func TestSearch_EmbedderUnavailable(t *testing.T) {
	svc := New(&stubEmbedder{err: errors.New("connection refused")}, &stubStore{})
	_, err := svc.Search(context.Background(), "q", 5, 0.3, SearchFilter{})

	appErr, ok := err.(*apperror.Error)
	if !ok || appErr.Code != apperror.CodeServiceUnavailable {
		t.Fatalf("expected service_unavailable, got %v", err)
	}
}

func TestSearch_EmbedderTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	svc := New(&stubEmbedder{err: errors.New("deadline exceeded")}, &stubStore{})
	_, err := svc.Search(ctx, "q", 5, 0.3, SearchFilter{})

	appErr, ok := err.(*apperror.Error)
	if !ok || appErr.Code != apperror.CodeGatewayTimeout {
		t.Fatalf("expected gateway_timeout, got %v", err)
	}
}

func TestSearch_StoreError(t *testing.T) {
	svc := New(&stubEmbedder{vec: []float32{0.1}}, &stubStore{err: errors.New("query failed")})
	_, err := svc.Search(context.Background(), "q", 5, 0.3, SearchFilter{})

	appErr, ok := err.(*apperror.Error)
	if !ok || appErr.Code != apperror.CodeInternalError {
		t.Fatalf("expected internal_error, got %v", err)
	}
}

func TestSearch_ResultLengthNeverExceedsTopK(t *testing.T) {
	hits := make([]SearchHit, 10)
	for i := range hits {
		hits[i] = SearchHit{Chunk: model.Chunk{ID: "c"}, Document: model.Document{ID: "d"}, Distance: 0.1}
	}
	svc := New(&stubEmbedder{vec: []float32{0.1}}, &stubStore{hits: hits})

	results, err := svc.Search(context.Background(), "q", 3, 0.0, SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) > 3 {
		t.Errorf("len(results) = %d, want <= 3", len(results))
	}
}
