// Package gemini implements rehearsal.Invoker on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/rehearsal"
	"google.golang.org/genai"
)

// Provider implements rehearsal.Invoker for the Gemini API.
type Provider struct {
	client      *genai.Client
	model       string
	system      string
	temperature float32
	jsonMode    bool
	name        string
}

// Config holds configuration for the Gemini provider.
type Config struct {
	APIKey            string
	Model             string        // e.g. "gemini-2.5-flash"
	BaseURL           string        // Optional custom endpoint
	SystemInstruction string        // Optional, defaults to rehearsal.DefaultSystemInstruction
	Temperature       float32       // Optional, defaults to rehearsal.DefaultTemperature
	Timeout           time.Duration // Optional, defaults to 60s
	// JSONMode asks the API for an application/json response. Output is
	// still extracted and validated by the engine.
	JSONMode bool
}

// New creates a new Gemini provider.
func New(ctx context.Context, config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.SystemInstruction == "" {
		config.SystemInstruction = rehearsal.DefaultSystemInstruction
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: config.BaseURL,
		},
		HTTPClient: &http.Client{Timeout: config.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Provider{
		client:      client,
		model:       config.Model,
		system:      config.SystemInstruction,
		temperature: rehearsal.ResolveTemperature(config.Temperature),
		jsonMode:    config.JSONMode,
		name:        "gemini",
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the prompt and concatenates the text parts of the first candidate.
func (p *Provider) Call(ctx context.Context, prompt string) (*rehearsal.Output, error) {
	startTime := time.Now()

	capitan.Info(ctx, rehearsal.ProviderCallStarted,
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
	)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: p.system}},
		},
		Temperature: genai.Ptr[float32](p.temperature),
	}
	if p.jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, p.callFailed(ctx, startTime, err)
	}
	if res == nil {
		res = &genai.GenerateContentResponse{}
	}

	text, finish := responseText(res)
	usage := rehearsal.TokenUsage{}
	if res.UsageMetadata != nil {
		usage.Prompt = int(res.UsageMetadata.PromptTokenCount)
		usage.Completion = int(res.UsageMetadata.CandidatesTokenCount)
		usage.Total = int(res.UsageMetadata.TotalTokenCount)
	}

	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
		rehearsal.PromptTokensKey.Field(usage.Prompt),
		rehearsal.CompletionTokensKey.Field(usage.Completion),
		rehearsal.TotalTokensKey.Field(usage.Total),
		rehearsal.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
	}
	if res.ResponseID != "" {
		fields = append(fields, rehearsal.ResponseIDKey.Field(res.ResponseID))
	}
	if finish != "" {
		fields = append(fields, rehearsal.FinishReasonKey.Field(finish))
	}
	capitan.Info(ctx, rehearsal.ProviderCallCompleted, fields...)

	return &rehearsal.Output{Text: text, Usage: usage}, nil
}

// callFailed emits the failure hook and classifies err. API errors with
// status 401 or 403 are permanent.
func (p *Provider) callFailed(ctx context.Context, start time.Time, err error) error {
	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
		rehearsal.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		rehearsal.ErrorKey.Field(err.Error()),
	}

	te := &rehearsal.TransportError{Provider: p.name, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		te.StatusCode = apiErr.Code
		te.Permanent = apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
		fields = append(fields,
			rehearsal.HTTPStatusCodeKey.Field(apiErr.Code),
			rehearsal.APIErrorTypeKey.Field(apiErr.Status),
		)
	}

	capitan.Error(ctx, rehearsal.ProviderCallFailed, fields...)
	return te
}

func responseText(res *genai.GenerateContentResponse) (string, string) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ""
	}
	candidate := res.Candidates[0]
	var parts []string
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n"), string(candidate.FinishReason)
}
