// Package openai implements rehearsal.Invoker on the go-openai client. Any
// OpenAI-compatible endpoint can be targeted through BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/rehearsal"
)

// Provider implements rehearsal.Invoker for the OpenAI chat completions API.
type Provider struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
	jsonMode    bool
	name        string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey            string
	Model             string        // e.g. "gpt-4o-mini"
	BaseURL           string        // Optional, defaults to "https://api.openai.com/v1"
	SystemInstruction string        // Optional, defaults to rehearsal.DefaultSystemInstruction
	Temperature       float32       // Optional, defaults to rehearsal.DefaultTemperature
	Timeout           time.Duration // Optional, defaults to 60s
	JSONMode          bool          // Request response_format json_object
}

// New creates a new OpenAI provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.SystemInstruction == "" {
		config.SystemInstruction = rehearsal.DefaultSystemInstruction
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Provider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		system:      config.SystemInstruction,
		temperature: rehearsal.ResolveTemperature(config.Temperature),
		jsonMode:    config.JSONMode,
		name:        "openai",
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the prompt as the user turn after the system instruction.
func (p *Provider) Call(ctx context.Context, prompt string) (*rehearsal.Output, error) {
	startTime := time.Now()

	capitan.Info(ctx, rehearsal.ProviderCallStarted,
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
	)

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
	}
	if p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.callFailed(ctx, startTime, err)
	}

	var content, finish string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finish = string(resp.Choices[0].FinishReason)
	}

	usage := rehearsal.TokenUsage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
	}

	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(resp.Model),
		rehearsal.PromptTokensKey.Field(usage.Prompt),
		rehearsal.CompletionTokensKey.Field(usage.Completion),
		rehearsal.TotalTokensKey.Field(usage.Total),
		rehearsal.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		rehearsal.ResponseIDKey.Field(resp.ID),
	}
	if finish != "" {
		fields = append(fields, rehearsal.FinishReasonKey.Field(finish))
	}
	capitan.Info(ctx, rehearsal.ProviderCallCompleted, fields...)

	return &rehearsal.Output{Text: content, Usage: usage}, nil
}

func (p *Provider) callFailed(ctx context.Context, start time.Time, err error) error {
	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
		rehearsal.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		rehearsal.ErrorKey.Field(err.Error()),
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if apiErr.Type != "" {
			fields = append(fields, rehearsal.APIErrorTypeKey.Field(apiErr.Type))
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status != 0 {
		fields = append(fields, rehearsal.HTTPStatusCodeKey.Field(status))
	}
	capitan.Error(ctx, rehearsal.ProviderCallFailed, fields...)

	return &rehearsal.TransportError{
		Provider:   p.name,
		StatusCode: status,
		Permanent:  status == http.StatusUnauthorized || status == http.StatusForbidden,
		Err:        fmt.Errorf("openai: %w", err),
	}
}
