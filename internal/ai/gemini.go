package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-1.5-flash"
	defaultHTTPTimeout = 30 * time.Second
	jsonMimeType       = "application/json"
)

// Config captures the settings needed to talk to the Gemini API
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Gemini is a client for the generative-language generateContent endpoint
type Gemini struct {
	cfg        Config
	httpClient *http.Client
}

// NewGemini creates a client. An empty API key yields a client whose calls
// fail with ErrAIDisabled.
func NewGemini(cfg Config, httpClient *http.Client) *Gemini {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gemini{cfg: cfg, httpClient: httpClient}
}

// Enabled reports whether an API key is configured
func (c *Gemini) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *apiErrorBody `json:"error,omitempty"`
}

type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateJSON sends a single prompt in JSON response mode and returns the
// model's text
func (c *Gemini) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrAIDisabled
	}
	request := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: jsonMimeType,
			Temperature:      0.7,
		},
	}
	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var response generateResponse
	decodeErr := json.Unmarshal(body, &response)
	if resp.StatusCode >= http.StatusMultipleChoices || response.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if resp.StatusCode < http.StatusMultipleChoices {
			apiErr.StatusCode = 0
		}
		if decodeErr == nil && response.Error != nil {
			apiErr.Code = response.Error.Code
			apiErr.Status = response.Error.Status
			apiErr.Message = response.Error.Message
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	for _, candidate := range response.Candidates {
		var text strings.Builder
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		if out := strings.TrimSpace(text.String()); out != "" {
			return out, nil
		}
	}
	return "", fmt.Errorf("no response candidates returned")
}
