// Package validator decodes and schema-checks the two request bodies the
// HTTP surface accepts. Unknown fields are ignored; none is rejected.
package validator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
)

// MaxBodyBytes is the hard ceiling on a request body's declared or actual
// size (§4.5).
const MaxBodyBytes = 51200

// FieldError describes one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RetrieveRequest is the decoded, defaulted, and validated body of
// POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query         string
	TopK          int
	MinSimilarity float64
	DocumentID    string // empty when absent
}

// ChatRequest is the decoded, defaulted, and validated body of
// POST /api/v1/chat.
type ChatRequest struct {
	Messages        []model.Message
	MaxOutputTokens int
	Locale          string
}

// CheckContentLength rejects the request before any decoding if the
// declared Content-Length exceeds MaxBodyBytes.
func CheckContentLength(r *http.Request) error {
	if r.ContentLength > MaxBodyBytes {
		return apperror.PayloadTooLarge("request body exceeds maximum size")
	}
	return nil
}

// limitedBody enforces MaxBodyBytes even when Content-Length is absent,
// by capping the reader at one byte past the limit and detecting overflow.
func limitedBody(r *http.Request) io.Reader {
	return io.LimitReader(r.Body, MaxBodyBytes+1)
}

type rawRetrieveBody struct {
	Query         string `json:"query"`
	TopK          *int   `json:"top_k"`
	MinSimilarity *float64 `json:"min_similarity"`
	Filters       *struct {
		DocumentID string `json:"document_id"`
	} `json:"filters"`
}

// DecodeRetrieve decodes and validates a retrieval request body.
func DecodeRetrieve(r *http.Request) (RetrieveRequest, error) {
	if err := CheckContentLength(r); err != nil {
		return RetrieveRequest{}, err
	}

	body, overflowed, err := readCapped(r)
	if err != nil {
		return RetrieveRequest{}, apperror.BadRequest("malformed request body")
	}
	if overflowed {
		return RetrieveRequest{}, apperror.PayloadTooLarge("request body exceeds maximum size")
	}

	var raw rawRetrieveBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return RetrieveRequest{}, apperror.BadRequest("malformed request body")
	}

	out := RetrieveRequest{
		Query:         raw.Query,
		TopK:          8,
		MinSimilarity: 0.5,
	}
	if raw.TopK != nil {
		out.TopK = *raw.TopK
	}
	if raw.MinSimilarity != nil {
		out.MinSimilarity = *raw.MinSimilarity
	}
	if raw.Filters != nil {
		out.DocumentID = raw.Filters.DocumentID
	}

	var fieldErrs []FieldError
	if l := len(out.Query); l < 1 || l > 500 {
		fieldErrs = append(fieldErrs, FieldError{"query", "must be 1..500 characters"})
	}
	if out.TopK < 1 || out.TopK > 50 {
		fieldErrs = append(fieldErrs, FieldError{"top_k", "must be between 1 and 50"})
	}
	if out.MinSimilarity < 0 || out.MinSimilarity > 1 {
		fieldErrs = append(fieldErrs, FieldError{"min_similarity", "must be between 0 and 1"})
	}
	if out.DocumentID != "" {
		if _, err := uuid.Parse(out.DocumentID); err != nil {
			fieldErrs = append(fieldErrs, FieldError{"filters.document_id", "must be a UUID"})
		}
	}
	if len(fieldErrs) > 0 {
		return RetrieveRequest{}, apperror.ValidationFailed("validation failed", fieldErrs)
	}

	return out, nil
}

type rawMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type rawChatBody struct {
	Messages        []rawMessage `json:"messages"`
	MaxOutputTokens *int         `json:"max_output_tokens"`
	Locale          *string      `json:"locale"`
}

// DecodeChat decodes and validates a chat request body.
func DecodeChat(r *http.Request) (ChatRequest, error) {
	if err := CheckContentLength(r); err != nil {
		return ChatRequest{}, err
	}

	body, overflowed, err := readCapped(r)
	if err != nil {
		return ChatRequest{}, apperror.BadRequest("malformed request body")
	}
	if overflowed {
		return ChatRequest{}, apperror.PayloadTooLarge("request body exceeds maximum size")
	}

	var raw rawChatBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return ChatRequest{}, apperror.BadRequest("malformed request body")
	}

	out := ChatRequest{
		MaxOutputTokens: 800,
		Locale:          "en",
	}
	if raw.MaxOutputTokens != nil {
		out.MaxOutputTokens = *raw.MaxOutputTokens
	}
	if raw.Locale != nil {
		out.Locale = *raw.Locale
	}

	var fieldErrs []FieldError
	if len(raw.Messages) < 1 || len(raw.Messages) > 50 {
		fieldErrs = append(fieldErrs, FieldError{"messages", "must contain 1..50 entries"})
	}
	for i, m := range raw.Messages {
		role := model.Role(strings.ToLower(m.Role))
		if role != model.RoleUser && role != model.RoleAssistant {
			fieldErrs = append(fieldErrs, FieldError{fmt.Sprintf("messages[%d].role", i), "must be user or assistant"})
			continue
		}
		if l := len(m.Content); l < 1 || l > 500 {
			fieldErrs = append(fieldErrs, FieldError{fmt.Sprintf("messages[%d].content", i), "must be 1..500 characters"})
		}
		out.Messages = append(out.Messages, model.Message{Role: role, Content: m.Content})
	}
	if len(out.Messages) > 0 && out.Messages[len(out.Messages)-1].Role != model.RoleUser {
		fieldErrs = append(fieldErrs, FieldError{"messages", "last message must have role user"})
	}
	if out.MaxOutputTokens < 1 || out.MaxOutputTokens > 2000 {
		fieldErrs = append(fieldErrs, FieldError{"max_output_tokens", "must be between 1 and 2000"})
	}
	if len(fieldErrs) > 0 {
		return ChatRequest{}, apperror.ValidationFailed("validation failed", fieldErrs)
	}

	return out, nil
}

// readCapped reads up to MaxBodyBytes+1 bytes from r.Body. overflowed is
// true when the body was at least MaxBodyBytes+1 bytes long.
func readCapped(r *http.Request) (body []byte, overflowed bool, err error) {
	body, err = io.ReadAll(limitedBody(r))
	if err != nil {
		return nil, false, err
	}
	if len(body) > MaxBodyBytes {
		return nil, true, nil
	}
	return body, false, nil
}
