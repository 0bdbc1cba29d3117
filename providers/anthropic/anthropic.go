// Package anthropic implements rehearsal.Invoker against the Anthropic
// Messages API over plain HTTP.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/rehearsal"
)

// Provider implements rehearsal.Invoker for the Anthropic API.
type Provider struct {
	apiKey      string
	model       string
	baseURL     string
	system      string
	maxTokens   int
	temperature float32
	httpClient  *http.Client
	name        string
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey            string
	Model             string        // e.g. "claude-sonnet-4-20250514"
	BaseURL           string        // Optional, defaults to "https://api.anthropic.com"
	SystemInstruction string        // Optional, defaults to rehearsal.DefaultSystemInstruction
	MaxTokens         int           // Optional, defaults to 4096
	Temperature       float32       // Optional, defaults to rehearsal.DefaultTemperature
	Timeout           time.Duration // Optional, defaults to 60s
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.SystemInstruction == "" {
		config.SystemInstruction = rehearsal.DefaultSystemInstruction
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:      config.APIKey,
		model:       config.Model,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		system:      config.SystemInstruction,
		maxTokens:   config.MaxTokens,
		temperature: rehearsal.ResolveTemperature(config.Temperature),
		name:        "anthropic",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends the prompt as a single user message and returns the first text
// block of the reply.
func (p *Provider) Call(ctx context.Context, prompt string) (*rehearsal.Output, error) {
	startTime := time.Now()

	capitan.Info(ctx, rehearsal.ProviderCallStarted,
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
	)

	requestBody := messagesRequest{
		Model:       p.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		System:      p.system,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.failed(ctx, startTime, 0, err.Error(), "")
		return nil, &rehearsal.TransportError{Provider: p.name, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &rehearsal.TransportError{Provider: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("status %d", resp.StatusCode)
		apiType := ""
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			message = errorResp.Error.Message
			apiType = errorResp.Error.Type
		}
		p.failed(ctx, startTime, resp.StatusCode, message, apiType)

		return nil, &rehearsal.TransportError{
			Provider:   p.name,
			StatusCode: resp.StatusCode,
			Permanent:  resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
			Err:        fmt.Errorf("anthropic error (%d): %s", resp.StatusCode, message),
		}
	}

	var messagesResp messagesResponse
	if err := json.Unmarshal(body, &messagesResp); err != nil {
		return nil, &rehearsal.TransportError{Provider: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	var content string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	usage := rehearsal.TokenUsage{
		Prompt:     messagesResp.Usage.InputTokens,
		Completion: messagesResp.Usage.OutputTokens,
		Total:      messagesResp.Usage.InputTokens + messagesResp.Usage.OutputTokens,
	}

	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(messagesResp.Model),
		rehearsal.PromptTokensKey.Field(usage.Prompt),
		rehearsal.CompletionTokensKey.Field(usage.Completion),
		rehearsal.TotalTokensKey.Field(usage.Total),
		rehearsal.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		rehearsal.HTTPStatusCodeKey.Field(resp.StatusCode),
		rehearsal.ResponseIDKey.Field(messagesResp.ID),
	}
	if messagesResp.StopReason != "" {
		fields = append(fields, rehearsal.FinishReasonKey.Field(messagesResp.StopReason))
	}
	capitan.Info(ctx, rehearsal.ProviderCallCompleted, fields...)

	// Blank content is returned as is; the engine classifies it.
	return &rehearsal.Output{Text: content, Usage: usage}, nil
}

func (p *Provider) failed(ctx context.Context, start time.Time, status int, message, apiType string) {
	fields := []capitan.Field{
		rehearsal.ProviderKey.Field(p.name),
		rehearsal.ModelKey.Field(p.model),
		rehearsal.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		rehearsal.ErrorKey.Field(message),
	}
	if status != 0 {
		fields = append(fields, rehearsal.HTTPStatusCodeKey.Field(status))
	}
	if apiType != "" {
		fields = append(fields, rehearsal.APIErrorTypeKey.Field(apiType))
	}
	capitan.Error(ctx, rehearsal.ProviderCallFailed, fields...)
}

// Request/Response types for Anthropic API

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
