package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RemoteConfig configures one remote translation backend. The API
// key is only ever placed in the Authorization header; it is never
// logged.
type RemoteConfig struct {
	Name        string // provider id used in the fallback chain and cache keys
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	ContextHint string // optional free text folded into the system prompt
}

func (c RemoteConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("remote provider name is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("remote provider %s: API URL is required", c.Name)
	}
	if c.APIKey == "" {
		return fmt.Errorf("remote provider %s: API key is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("remote provider %s: model is required", c.Name)
	}
	return nil
}

// RemoteProvider translates batches through an OpenAI-compatible
// chat-completions API.
type RemoteProvider struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *RemoteProvider) ID() string {
	return p.cfg.Name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *RemoteProvider) TranslateBatch(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	formatted := make([]string, len(texts))
	for i, text := range texts {
		formatted[i] = strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder)
	}

	request := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.buildSystemPrompt(targetLang)},
			{Role: "user", Content: strings.Join(formatted, "\n"+subtitleLineBreaker+"\n")},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}

	content, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(content, subtitleLineBreaker)
	translations := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.ReplaceAll(part, inlineBreakerPlaceholder, "\n")
		translations = append(translations, part)
	}
	return translations, nil
}

func (p *RemoteProvider) makeRequest(ctx context.Context, payload chatRequest) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", WrapProviderError(p.cfg.Name, MalformedResponse, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", WrapProviderError(p.cfg.Name, Unavailable, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", WrapProviderError(p.cfg.Name, Timeout, "request timed out", err)
		}
		return "", WrapProviderError(p.cfg.Name, Unavailable, "request failed", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapProviderError(p.cfg.Name, Unavailable, "failed to read response body", err)
	}

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return "", NewProviderError(p.cfg.Name, kind,
			fmt.Sprintf("API request failed with status %d", resp.StatusCode))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(responseBody, &chatResp); err != nil {
		return "", WrapProviderError(p.cfg.Name, MalformedResponse, "failed to parse response", err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return "", NewProviderError(p.cfg.Name, Unavailable, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", NewProviderError(p.cfg.Name, MalformedResponse, "no choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *RemoteProvider) buildSystemPrompt(targetLang string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translator. Translate each subtitle line to " + targetLang + ".\n")
	if p.cfg.ContextHint != "" {
		prompt.WriteString("\nContext: " + p.cfg.ContextHint + "\n")
	}
	prompt.WriteString("\nRules:\n")
	prompt.WriteString("1. Preserve the original meaning and tone; use natural, fluent " + targetLang + ".\n")
	prompt.WriteString("2. Lines are separated by " + subtitleLineBreaker + "; keep the separators and the line count exactly as given.\n")
	prompt.WriteString("3. Preserve " + inlineBreakerPlaceholder + " inline break markers.\n")
	prompt.WriteString("4. Tokens of the form {NMXXXXXXXX} are protected names; copy them through unchanged.\n")
	prompt.WriteString("5. Return only the translated lines, no explanations.\n")

	return prompt.String()
}

// classifyStatus maps HTTP status codes onto the provider error
// taxonomy. The boolean is false for success statuses.
func classifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusTooManyRequests:
		return RateLimited, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthFailure, true
	case status == http.StatusRequestTimeout:
		return Timeout, true
	default:
		return Unavailable, true
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
