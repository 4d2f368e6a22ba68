package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderGrok     Provider = "grok"
	ProviderDeepSeek Provider = "deepseek"
)

var providers = map[Provider]struct {
	baseURL string
	model   string
	images  bool
}{
	ProviderOpenAI:   {"https://api.openai.com/v1", "gpt-4o", true},
	ProviderGrok:     {"https://api.x.ai/v1", "grok-beta", false},
	ProviderDeepSeek: {"https://api.deepseek.com", "deepseek-chat", false},
}

var (
	ErrMissingKey      = errors.New("api key required")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrTruncated       = errors.New("the response was cut off; ask for fewer slides or split the request")
	ErrEmptyResponse   = errors.New("empty response from model")
)

const maxTokens = 8192

type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the provider's endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	images  bool
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	p, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingKey, cfg.Provider)
	}
	c := &OpenAIClient{
		http:    cfg.HTTPClient,
		baseURL: strings.TrimRight(p.baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   p.model,
		images:  p.images,
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model != "" {
		c.model = cfg.Model
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 2 * time.Minute}
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	MaxTokens      int               `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (*Result, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt + "\n\nIMPORTANT: Return ONLY valid, minified JSON. Do not include markdown formatting like ```json."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		MaxTokens:      maxTokens,
	}
	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	choice := resp.Choices[0]
	content := stripFences(choice.Message.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	var res Result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		if choice.FinishReason == "length" {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return &res, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage returns a PNG data URL. Providers without an image endpoint
// return an empty URL.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if !c.images {
		return "", nil
	}
	req := imageRequest{
		Model:          "dall-e-3",
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}
	var resp imageResponse
	if err := c.post(ctx, "/images/generations", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", nil
	}
	return "data:image/png;base64," + resp.Data[0].B64JSON, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("api error (%s): %d %s", c.baseURL, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
