// Package encoderclient implements classifier.Encoder and
// memvectorstore.Embedder by calling out to an OpenAI-compatible embeddings
// endpoint, reusing the same go-openai client the OpenAI provider wraps
// (internal/providers/openai) rather than hand-rolling a second HTTP client.
package encoderclient

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Config configures the embeddings client. BaseURL is required; most
// self-hosted encoder services (e.g. a text-embeddings-inference sidecar)
// speak the OpenAI /v1/embeddings wire format.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client wraps go-openai's embeddings call behind classifier.Encoder and
// memvectorstore.Embedder.
type Client struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
	logger  *logrus.Logger
}

// New builds a Client. cfg.Model is passed through to openai.EmbeddingModel;
// an unrecognized model string is accepted as-is by go-openai and sent
// verbatim on the wire, so self-hosted encoders with nonstandard model
// names still work.
func New(cfg Config, logger *logrus.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   openai.EmbeddingModel(cfg.Model),
		timeout: timeout,
		logger:  logger,
	}
}

// Encode satisfies classifier.Encoder.
func (c *Client) Encode(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("encoderclient: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("encoderclient: empty embeddings response")
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float64(f)
	}
	return vec, nil
}

// Embed satisfies memvectorstore.Embedder. The RAG fixture corpus is
// embedded once at startup. A failure is logged here and Embed returns nil;
// memvectorstore scores a nil vector as 0 similarity, so a single bad chunk
// doesn't prevent the rest of the corpus from loading.
func (c *Client) Embed(text string) []float64 {
	vec, err := c.Encode(context.Background(), text)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("text", text).Warn("encoderclient: embedding fixture chunk failed")
		}
		return nil
	}
	return vec
}
