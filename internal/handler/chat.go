package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/chat"
	"github.com/jacobkus/intelligent-hr-assistant/internal/injection"
	"github.com/jacobkus/intelligent-hr-assistant/internal/validator"
)

// chatDoneResponse is the single JSON object returned for a debug chat
// request, per §4.9 step 5.
type chatDoneResponse struct {
	Answer        string              `json:"answer"`
	RequestID     string              `json:"requestId"`
	RetrievedDocs []chat.RetrievedDoc `json:"retrieved_docs"`
}

// Chat implements POST /api/v1/chat. Auth, the body-size check, and the
// rate limiter have already run as middleware by the time this handler
// starts; Chat decodes and validates the body itself, then runs the
// injection filter over the last user message before business logic
// (§4.9) and the response write.
func Chat(orch *chat.Orchestrator, requestIDFn func(context.Context) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFn(r.Context())

		req, err := validator.DecodeChat(r)
		if err != nil {
			apperror.WriteJSON(w, requestID, err)
			return
		}

		last := req.Messages[len(req.Messages)-1]
		if injection.Suspicious(last.Content) {
			apperror.WriteJSON(w, requestID, apperror.ValidationFailed(
				"message rejected", map[string]string{"reason": "suspicious_input"}))
			return
		}

		debug := r.URL.Query().Get("debug") == "1"

		stream, docs, err := orch.Run(r.Context(), req.Messages)
		if err != nil {
			apperror.WriteJSON(w, requestID, err)
			return
		}
		defer stream.Cancel()

		setCacheHeaders(w)

		if debug {
			writeDebugResponse(w, requestID, stream, docs)
			return
		}
		streamTokens(w, r, stream)
	}
}

// setCacheHeaders applies the no-cache directives required on every
// response (§4.10). SecurityHeaders middleware also sets these before the
// handler runs; handlers set them again so they are present even when the
// handler is served without that middleware.
func setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func writeDebugResponse(w http.ResponseWriter, requestID string, stream *chat.Stream, docs []chat.RetrievedDoc) {
	var full string
	var streamErr error
	for chunk := range stream.Tokens {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		full += chunk.Text
	}
	if streamErr != nil {
		apperror.WriteJSON(w, requestID, classifyStreamError(streamErr))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(chatDoneResponse{Answer: full, RequestID: requestID, RetrievedDocs: docs})
}

func streamTokens(w http.ResponseWriter, r *http.Request, stream *chat.Stream) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apperror.WriteJSON(w, "", apperror.InternalError("streaming unsupported by this response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case chunk, open := <-stream.Tokens:
			if !open {
				sendEvent(w, flusher, "done", "[DONE]")
				return
			}
			if chunk.Err != nil {
				sendEvent(w, flusher, "error", chunk.Err.Error())
				return
			}
			sendEvent(w, flusher, "token", chunk.Text)
		case <-r.Context().Done():
			stream.Cancel()
			return
		}
	}
}

func sendEvent(w http.ResponseWriter, f http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	f.Flush()
}

// classifyStreamError maps a terminal stream error observed only after
// headers for a debug response have not yet been written, to the
// canonical envelope. The chat orchestrator already classifies errors
// surfaced from Run; this covers errors that surface later, mid-stream,
// such as a content-filter rejection on a later token.
func classifyStreamError(err error) error {
	if appErr, ok := err.(*apperror.Error); ok {
		return appErr
	}
	if cf, ok := err.(*chat.ContentFilteredError); ok {
		return apperror.ValidationFailed("response withheld by content filter", map[string]string{
			"reason":       "content_filtered",
			"finishReason": cf.FinishReason,
		})
	}
	return apperror.ServiceUnavailable("language model unavailable")
}
