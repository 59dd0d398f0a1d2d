// Package embedder adapts the Vertex AI text embedding REST API to the
// retrieval.Embedder interface. It shares the retry/backoff policy used
// for every other Vertex AI call in this service.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/jacobkus/intelligent-hr-assistant/internal/gcpclient"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
)

// Dimensions is the output width of the configured embedding model. It must
// match the vector column width in the documents/chunks schema.
const Dimensions = 1536

// taskType is fixed to RETRIEVAL_QUERY: this adapter only ever embeds user
// queries at request time, never document chunks, so the asymmetric
// RETRIEVAL_DOCUMENT task type has no caller here.
const taskType = "RETRIEVAL_QUERY"

// Adapter calls the Vertex AI embedding endpoint.
type Adapter struct {
	project  string
	location string
	model    string
	client   *http.Client
}

// New constructs an Adapter using application default credentials scoped to
// the cloud-platform OAuth scope.
func New(ctx context.Context, project, location, model string) (*Adapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("embedder.New: %w", err)
	}
	return &Adapter{project: project, location: location, model: model, client: client}, nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// Embed implements retrieval.Embedder.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([]retrieval.EmbeddedText, error) {
	vectors, err := gcpclient.WithRetry(ctx, "EmbedQuery", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder.Embed: got %d vectors for %d texts", len(vectors), len(texts))
	}

	out := make([]retrieval.EmbeddedText, len(texts))
	for i, t := range texts {
		v := vectors[i]
		if len(v) != Dimensions {
			return nil, fmt.Errorf("embedder.Embed: unexpected vector width %d", len(v))
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if norm := math.Sqrt(sum); norm > 0 {
			for j := range v {
				v[j] = float32(float64(v[j]) / norm)
			}
		}
		out[i] = retrieval.EmbeddedText{Text: t, Vector: v}
	}
	return out, nil
}

func (a *Adapter) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: taskType}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("embedder.Embed marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpointURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedder.Embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder.Embed call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder.Embed: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("embedder.Embed decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, p := range embResp.Predictions {
		results[i] = p.Embeddings.Values
	}
	return results, nil
}

func (a *Adapter) endpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}

// Ping verifies the embedding endpoint is reachable and returns
// Dimensions-wide vectors, without involving retrieval or the vector store.
// Used by the health endpoint's embedder probe.
func (a *Adapter) Ping(ctx context.Context) error {
	vectors, err := a.doEmbed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedder ping: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) != Dimensions {
		return fmt.Errorf("embedder ping: unexpected vector width %d", len(vectors[0]))
	}
	return nil
}
