package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"versus-backend/pkg/errors"
	"versus-backend/pkg/logger"
)

// Gemini implements TextGenerator over the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *logger.Logger
}

// GeminiOption adjusts the client configuration before it is built.
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) GeminiOption {
	return func(cc *genai.ClientConfig) { cc.HTTPOptions.BaseURL = url }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(cc *genai.ClientConfig) { cc.HTTPClient = c }
}

// NewGemini creates a Gemini client authenticated with an API key.
func NewGemini(ctx context.Context, apiKey, model string, log *logger.Logger, opts ...GeminiOption) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.NewInternalError("Failed to initialize Gemini client", err)
	}

	return &Gemini{
		client: client,
		model:  strings.TrimPrefix(model, "models/"),
		logger: log.Component("gemini"),
	}, nil
}

// Generate sends prompt as a single user turn and joins the text parts of
// the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.WithField("model", g.model).Debug("Generating content")

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", errors.NewExternalError("Failed to generate content", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}

// String names the backing model for logs.
func (g *Gemini) String() string {
	return fmt.Sprintf("gemini(%s)", g.model)
}
