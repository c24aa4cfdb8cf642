package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// fakeServer answers every request with vectors {len(input), index, 1},
// listed in reverse order to exercise index-based placement.
func fakeServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data := make([]embeddingItem, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embeddingItem{
				Object:    "embedding",
				Index:     i,
				Embedding: []float64{float64(len(req.Input[i])), float64(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, baseURL string, batchSize, retries int) *Client {
	t.Helper()
	t.Setenv("STUDYRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{
		BaseURL:      baseURL,
		APIKeyEnv:    "STUDYRAG_TEST_KEY",
		Model:        "test-embedding",
		Dimension:    3,
		Timeout:      5 * time.Second,
		BatchSize:    batchSize,
		Concurrency:  2,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("ShouldRequireAPIKey", func(t *testing.T) {
		t.Setenv("STUDYRAG_MISSING_KEY", "")
		_, err := NewClient(Config{APIKeyEnv: "STUDYRAG_MISSING_KEY"})
		assert.Error(t, err)
	})

	t.Run("ShouldUseKnownModelDimension", func(t *testing.T) {
		t.Setenv("STUDYRAG_TEST_KEY", "sk-test")
		c, err := NewClient(Config{APIKeyEnv: "STUDYRAG_TEST_KEY"})
		require.NoError(t, err)
		assert.Equal(t, 1536, c.Dimension())
		assert.Equal(t, "openai/text-embedding-3-small", c.Model())
	})

	t.Run("ShouldRequireDimensionForUnknownModel", func(t *testing.T) {
		t.Setenv("STUDYRAG_TEST_KEY", "sk-test")
		_, err := NewClient(Config{APIKeyEnv: "STUDYRAG_TEST_KEY", Model: "nomic-embed-text"})
		assert.Error(t, err)
	})
}

func TestClient_EmbedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldKeepInputOrderAcrossBatches", func(t *testing.T) {
		srv, calls := fakeServer(t, 0)
		c := newTestClient(t, srv.URL, 2, 0)

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		out, err := c.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, out, len(texts))
		for i, text := range texts {
			assert.Equal(t, float64(len(text)), out[i][0])
		}
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("ShouldEmbedSingleText", func(t *testing.T) {
		srv, _ := fakeServer(t, 0)
		c := newTestClient(t, srv.URL, 8, 0)
		v, err := c.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 0, 1}, v)
	})

	t.Run("ShouldRetryServerErrors", func(t *testing.T) {
		srv, calls := fakeServer(t, 2)
		c := newTestClient(t, srv.URL, 8, 3)
		v, err := c.Embed(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 0, 1}, v)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("ShouldFailWhenRetriesExhausted", func(t *testing.T) {
		srv, _ := fakeServer(t, 10)
		c := newTestClient(t, srv.URL, 8, 1)
		_, err := c.Embed(ctx, "hi")
		assert.Error(t, err)
	})

	t.Run("ShouldReturnEmptyForNoTexts", func(t *testing.T) {
		srv, calls := fakeServer(t, 0)
		c := newTestClient(t, srv.URL, 8, 0)
		out, err := c.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, int32(0), calls.Load())
	})
}
