// Package llm adapts Vertex AI Gemini to the chat.LLM streaming interface.
// Regional locations use the vertexai/genai SDK; the global endpoint falls
// back to the REST streaming API, which the SDK does not support.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"

	"github.com/jacobkus/intelligent-hr-assistant/internal/chat"
	"github.com/jacobkus/intelligent-hr-assistant/internal/gcpclient"
	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
)

// finishReasonsTreatedAsFiltered are the Gemini finish reasons that mean the
// model declined to produce (or finish producing) a response for safety
// reasons, as opposed to ending normally or hitting a length cap.
var finishReasonsTreatedAsFiltered = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
}

const defaultRESTHost = "https://aiplatform.googleapis.com"

// Adapter implements chat.LLM over Vertex AI Gemini.
type Adapter struct {
	client     *genai.Client
	httpClient *http.Client
	project    string
	location   string
	model      string
	useREST    bool
	restHost   string // overridable in tests; defaults to defaultRESTHost
}

func (a *Adapter) host() string {
	if a.restHost != "" {
		return a.restHost
	}
	return defaultRESTHost
}

// New constructs an Adapter. For location "global" it uses the REST
// streaming endpoint; any other location uses the regional SDK client.
func New(ctx context.Context, project, location, modelName string) (*Adapter, error) {
	if location == "global" {
		httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("llm.New: default credentials: %w", err)
		}
		return &Adapter{httpClient: httpClient, project: project, location: location, model: modelName, useREST: true}, nil
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("llm.New: %w", err)
	}
	return &Adapter{client: client, project: project, location: location, model: modelName}, nil
}

// Close releases the SDK client, if one was constructed.
func (a *Adapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// Stream implements chat.LLM.
func (a *Adapter) Stream(ctx context.Context, systemText string, messages []model.Message) (*chat.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	opener := a.streamContentSDK
	if a.useREST {
		opener = a.streamContentREST
	}

	raw, err := gcpclient.WithRetry(streamCtx, "StreamChat", func() (<-chan rawChunk, error) {
		return opener(streamCtx, systemText, messages)
	})
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan chat.StreamChunk)
	go relay(streamCtx, raw, out)

	return chat.NewStream(out, cancel), nil
}

// rawChunk is the provider-agnostic unit produced by the SDK and REST
// streaming loops before they are adapted onto chat.StreamChunk.
type rawChunk struct {
	text         string
	finishReason string
	err          error
}

// relay forwards raw provider chunks onto the public channel, translating a
// content-filter finish reason into a terminal ContentFilteredError and
// honoring cancellation the way sseutil.ReadSSEStream does in the gateway
// this pattern is grounded on: never block forever on a full channel once
// the caller has walked away.
func relay(ctx context.Context, raw <-chan rawChunk, out chan<- chat.StreamChunk) {
	defer close(out)

	for c := range raw {
		var chunk chat.StreamChunk
		switch {
		case c.err != nil:
			chunk = chat.StreamChunk{Err: c.err}
		case finishReasonsTreatedAsFiltered[c.finishReason]:
			chunk = chat.StreamChunk{Err: &chat.ContentFilteredError{FinishReason: c.finishReason}}
		default:
			chunk = chat.StreamChunk{Text: c.text}
		}

		select {
		case out <- chunk:
		case <-ctx.Done():
			select {
			case out <- chat.StreamChunk{Err: ctx.Err()}:
			default:
			}
			return
		}

		if chunk.Err != nil {
			return
		}
	}
}

func (a *Adapter) streamContentSDK(ctx context.Context, systemText string, messages []model.Message) (<-chan rawChunk, error) {
	gm := a.client.GenerativeModel(a.model)
	gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemText)}}

	history, last := toGenAIHistory(messages)
	cs := gm.StartChat()
	cs.History = history

	iter := cs.SendMessageStream(ctx, genai.Text(last))
	ch := make(chan rawChunk, 8)

	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				ch <- rawChunk{err: fmt.Errorf("llm.Stream: %w", err)}
				return
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if reason := cand.FinishReason.String(); reason != "" && reason != "FINISH_REASON_UNSPECIFIED" && reason != "STOP" && reason != "MAX_TOKENS" {
				ch <- rawChunk{finishReason: reason}
				continue
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					ch <- rawChunk{text: string(t)}
				}
			}
		}
	}()

	return ch, nil
}

func toGenAIHistory(messages []model.Message) (history []*genai.Content, lastUserText string) {
	if len(messages) == 0 {
		return nil, ""
	}
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history, messages[len(messages)-1].Content
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restGenerateRequest struct {
	Contents          []restContent `json:"contents"`
	SystemInstruction *restContent  `json:"systemInstruction,omitempty"`
}

type restStreamResponse struct {
	Candidates []struct {
		Content      restContent `json:"content"`
		FinishReason string      `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Adapter) streamContentREST(ctx context.Context, systemText string, messages []model.Message) (<-chan rawChunk, error) {
	url := fmt.Sprintf(
		"%s/v1/projects/%s/locations/global/publishers/google/models/%s:streamGenerateContent?alt=sse",
		a.host(), a.project, a.model,
	)

	contents := make([]restContent, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, restContent{Role: role, Parts: []restPart{{Text: m.Content}}})
	}

	reqBody := restGenerateRequest{
		Contents:          contents,
		SystemInstruction: &restContent{Role: "user", Parts: []restPart{{Text: systemText}}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm.Stream: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("llm.Stream: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm.Stream: call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm.Stream: status %d: %s", resp.StatusCode, body)
	}

	ch := make(chan rawChunk, 8)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk restStreamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				ch <- rawChunk{err: fmt.Errorf("llm.Stream: API error %d: %s", chunk.Error.Code, chunk.Error.Message)}
				return
			}
			for _, cand := range chunk.Candidates {
				if cand.FinishReason != "" && cand.FinishReason != "STOP" && cand.FinishReason != "MAX_TOKENS" {
					ch <- rawChunk{finishReason: cand.FinishReason}
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						ch <- rawChunk{text: part.Text}
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- rawChunk{err: fmt.Errorf("llm.Stream: read stream: %w", err)}
		}
	}()

	return ch, nil
}

// Ping performs a minimal non-streaming completion to verify connectivity,
// used by the health endpoint. It does not reuse Stream to avoid opening a
// long-lived connection just to check liveness.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.useREST {
		return a.pingREST(ctx)
	}
	gm := a.client.GenerativeModel(a.model)
	resp, err := gm.GenerateContent(ctx, genai.Text("ping"))
	if err != nil {
		return fmt.Errorf("llm ping: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("llm ping: empty response")
	}
	return nil
}

func (a *Adapter) pingREST(ctx context.Context) error {
	url := fmt.Sprintf(
		"%s/v1/projects/%s/locations/global/publishers/google/models/%s:generateContent",
		a.host(), a.project, a.model,
	)
	reqBody := restGenerateRequest{Contents: []restContent{{Role: "user", Parts: []restPart{{Text: "ping"}}}}}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("llm ping: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm ping: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llm ping: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
