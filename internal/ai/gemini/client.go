// Package gemini implements ai.Generator on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/ats-scorer/internal/ai"

	"google.golang.org/genai"
)

const (
	Provider = "gemini"

	BackendGeminiAPI = "gemini-api"
	BackendVertexAI  = "vertex-ai"

	defaultTemperature = 0.2
	jsonMIMEType       = "application/json"
)

type Config struct {
	APIKey string
	Model  string
	// Backend selects the Gemini API (default) or Vertex AI.
	Backend  string
	Project  string
	Location string
	// Temperature defaults to 0.2 when zero.
	Temperature float32
	// Timeout bounds a single GenerateContent call. Zero means no extra bound.
	Timeout time.Duration
}

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client for single-shot JSON generation.
type Generator struct {
	models      contentModels
	modelName   string
	temperature float32
	timeout     time.Duration
}

// NewGenerator validates cfg and creates the GenAI client. Missing
// credentials or model are reported as ai.ErrMissingConfiguration.
func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: gemini model is required", ai.ErrMissingConfiguration)
	}

	clientCfg := &genai.ClientConfig{}
	switch strings.TrimSpace(cfg.Backend) {
	case "", BackendGeminiAPI:
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: gemini api key is required", ai.ErrMissingConfiguration)
		}
		clientCfg.APIKey = apiKey
		clientCfg.Backend = genai.BackendGeminiAPI
	case BackendVertexAI:
		if strings.TrimSpace(cfg.Project) == "" || strings.TrimSpace(cfg.Location) == "" {
			return nil, fmt.Errorf("%w: vertex ai project and location are required", ai.ErrMissingConfiguration)
		}
		clientCfg.Project = strings.TrimSpace(cfg.Project)
		clientCfg.Location = strings.TrimSpace(cfg.Location)
		clientCfg.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("%w: unknown gemini backend %q", ai.ErrMissingConfiguration, cfg.Backend)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, cfg.Temperature, cfg.Timeout), nil
}

func newGenerator(models contentModels, model string, temperature float32, timeout time.Duration) *Generator {
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Generator{
		models:      models,
		modelName:   model,
		temperature: temperature,
		timeout:     timeout,
	}
}

// GenerateContent sends prompt in JSON response mode and returns the
// concatenated text parts of the response.
func (g *Generator) GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: jsonMIMEType,
	}
	if system := strings.TrimSpace(systemInstruction); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
