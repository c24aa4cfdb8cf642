package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"studyrag/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
)

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension requests shortened vectors from models that support it.
	// Zero means the model's native size.
	Dimension    int
	Timeout      time.Duration
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxTokens truncates inputs longer than this many tokens. Zero disables truncation.
	MaxTokens int
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	api       openai.Client
	cfg       Config
	dimension int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = knownDimensions[cfg.Model]
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("openai: dimension must be configured for model %q", cfg.Model)
	}
	api := openai.NewClient(
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return &Client{api: api, cfg: cfg, dimension: dimension}, nil
}

// Model identifies the remote model, including the provider.
func (c *Client) Model() string { return "openai/" + c.cfg.Model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch splits texts into requests of at most BatchSize inputs and runs
// up to Concurrency of them at once. Output order matches input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vectors, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("openai: batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: c.truncate(texts)},
	}
	if c.cfg.Dimension > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.Dimension))
	}

	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries), retry.NewExponential(c.cfg.RetryBackoff)) // #nosec G115 -- clamped in NewClient
	var resp *openai.CreateEmbeddingResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.api.Embeddings.New(ctx, params)
		if err != nil {
			if retryable(ctx, err) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: openai returned %d values, want %d", domain.ErrDimensionMismatch, len(d.Embedding), c.dimension)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

// truncate cuts inputs to MaxTokens tokens. When the tokenizer cannot be
// loaded the texts are sent unchanged and the API decides.
func (c *Client) truncate(texts []string) []string {
	if c.cfg.MaxTokens <= 0 {
		return texts
	}
	c.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.cfg.Model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return texts
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		tokens := c.enc.Encode(text, nil, nil)
		if len(tokens) > c.cfg.MaxTokens {
			text = c.enc.Decode(tokens[:c.cfg.MaxTokens])
		}
		out[i] = text
	}
	return out
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

var _ domain.Embedder = (*Client)(nil)
