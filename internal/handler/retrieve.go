package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/injection"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
	"github.com/jacobkus/intelligent-hr-assistant/internal/validator"
)

type retrievedChunk struct {
	ChunkID       string  `json:"chunk_id"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	SourceFile    string  `json:"source_file"`
	DocumentTitle string  `json:"document_title"`
}

type retrieveResponse struct {
	Results   []retrievedChunk `json:"results"`
	RequestID string           `json:"requestId"`
}

// Retrieve implements POST /api/v1/retrieve: similarity search without
// prompt assembly or completion, for callers that want raw evidence.
func Retrieve(svc *retrieval.Service, requestIDFn func(context.Context) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFn(r.Context())

		req, err := validator.DecodeRetrieve(r)
		if err != nil {
			apperror.WriteJSON(w, requestID, err)
			return
		}

		if injection.Suspicious(req.Query) {
			apperror.WriteJSON(w, requestID, apperror.ValidationFailed(
				"query rejected", map[string]string{"reason": "suspicious_input"}))
			return
		}

		results, err := svc.Search(r.Context(), req.Query, req.TopK, req.MinSimilarity, retrieval.SearchFilter{DocumentID: req.DocumentID})
		if err != nil {
			apperror.WriteJSON(w, requestID, err)
			return
		}

		out := make([]retrievedChunk, 0, len(results))
		for _, res := range results {
			out = append(out, retrievedChunk{
				ChunkID:       res.Chunk.ID,
				Content:       res.Chunk.Content,
				Similarity:    res.Similarity,
				SourceFile:    res.Document.SourceFile,
				DocumentTitle: res.Document.Title,
			})
		}

		setCacheHeaders(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(retrieveResponse{Results: out, RequestID: requestID})
	}
}
