package analysis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Inference generates text for a prompt with a named model
type Inference interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// OllamaClient calls the /api/generate endpoint of an Ollama server
type OllamaClient struct {
	client *api.Client
}

func NewOllamaClient(baseURL string, httpClient *http.Client) (*OllamaClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid inference URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid inference URL %q: scheme and host are required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{client: api.NewClient(base, httpClient)}, nil
}

// Generate runs a single non-streaming completion and returns its text
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &stream,
	}

	var out strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return out.String(), nil
}
