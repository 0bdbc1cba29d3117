package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/zoobzio/rehearsal"
)

func TestProviderCall(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header, got %s", r.Header.Get("anthropic-version"))
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if req.Model != "claude-sonnet-4-20250514" {
			t.Errorf("Expected default model, got %s", req.Model)
		}
		if req.Temperature != 0.5 {
			t.Errorf("Expected temperature 0.5, got %f", req.Temperature)
		}
		if req.System != rehearsal.DefaultSystemInstruction {
			t.Errorf("Expected default system instruction, got %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "test prompt" {
			t.Errorf("Unexpected messages: %v", req.Messages)
		}

		resp := messagesResponse{
			ID:    "msg_test123",
			Type:  "message",
			Role:  "assistant",
			Model: "claude-sonnet-4-20250514",
			Content: []contentBlock{
				{Type: "text", Text: "```json\n{\"hint_message\": \"ask why\"}\n```"},
			},
			StopReason: "end_turn",
			Usage:      usage{InputTokens: 10, OutputTokens: 5},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := New(Config{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Temperature: 0.5,
	})

	out, err := provider.Call(ctx, "test prompt")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out.Text, "hint_message") {
		t.Errorf("Expected fenced JSON, got %q", out.Text)
	}
	if out.Usage.Prompt != 10 || out.Usage.Completion != 5 || out.Usage.Total != 15 {
		t.Errorf("Unexpected usage: %+v", out.Usage)
	}
}

func TestProviderErrorHandling(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		expectedError string
		permanent     bool
	}{
		{
			name:          "Rate limit error",
			statusCode:    http.StatusTooManyRequests,
			responseBody:  `{"type": "error", "error": {"type": "rate_limit_error", "message": "Rate limit exceeded"}}`,
			expectedError: "anthropic error (429): Rate limit exceeded",
		},
		{
			name:          "Authentication error",
			statusCode:    http.StatusUnauthorized,
			responseBody:  `{"type": "error", "error": {"type": "authentication_error", "message": "Invalid API key"}}`,
			expectedError: "anthropic error (401): Invalid API key",
			permanent:     true,
		},
		{
			name:          "Generic error",
			statusCode:    http.StatusInternalServerError,
			responseBody:  `not json`,
			expectedError: "anthropic error (500): status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			provider := New(Config{APIKey: "test-key", BaseURL: server.URL})

			_, err := provider.Call(context.Background(), "test")
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.expectedError, err.Error())
			}
			if !errors.Is(err, rehearsal.ErrTransport) {
				t.Errorf("Expected transport error, got %T", err)
			}
			if rehearsal.IsPermanent(err) != tt.permanent {
				t.Errorf("Expected permanent=%v for status %d", tt.permanent, tt.statusCode)
			}
		})
	}
}

func TestProviderEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messagesResponse{Model: "m", Content: []contentBlock{}})
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})

	out, err := provider.Call(context.Background(), "test")
	if err != nil {
		t.Fatalf("Expected blank output to be returned, got error %v", err)
	}
	if out.Text != "" {
		t.Errorf("Expected empty text, got %q", out.Text)
	}
}

func TestProviderName(t *testing.T) {
	provider := New(Config{APIKey: "test-key"})

	if name := provider.Name(); name != "anthropic" {
		t.Errorf("Expected 'anthropic', got '%s'", name)
	}
}

func TestProviderDefaults(t *testing.T) {
	provider := New(Config{APIKey: "test-key", BaseURL: "http://localhost:9999/"})

	if provider.model != "claude-sonnet-4-20250514" {
		t.Errorf("Expected default model, got %s", provider.model)
	}
	if provider.baseURL != "http://localhost:9999" {
		t.Errorf("Expected trailing slash trimmed, got %s", provider.baseURL)
	}
	if provider.maxTokens != 4096 {
		t.Errorf("Expected default maxTokens 4096, got %d", provider.maxTokens)
	}
	if provider.temperature != rehearsal.DefaultTemperature {
		t.Errorf("Expected default temperature, got %f", provider.temperature)
	}
}

func TestAnthropicIntegration(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("ANTHROPIC_API_KEY not set, skipping integration test")
	}

	provider := New(Config{APIKey: apiKey, Model: "claude-3-5-haiku-20241022"})

	out, err := provider.Call(context.Background(), "Respond with exactly: {\"test\": true}")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out.Text == "" {
		t.Error("Expected non-empty response")
	}
	t.Logf("Response: %s", out.Text)
}
