package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edu-video-studio/internal/studioerr"

	"github.com/tidwall/gjson"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.0-flash-exp"
)

// Request is one text-generation call.
type Request struct {
	Task              Task
	SystemInstruction string
	Prompt            string
}

// Generator issues a single text-generation request and returns the text payload.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (string, error)
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiGenerator calls the generateContent REST endpoint.
type GeminiGenerator struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewGeminiGenerator(cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("content: gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiGenerator{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

func (g *GeminiGenerator) GenerateContent(ctx context.Context, req Request) (string, error) {
	body := generateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", studioerr.NewProviderError("encode request", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", studioerr.NewProviderError("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		// the URL carries the key; never surface it
		return "", studioerr.NewProviderError("generateContent request failed", redactKey(err, g.apiKey))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", studioerr.NewProviderError("read response", err)
	}
	if resp.StatusCode >= 300 {
		return "", classifyFailure(resp.StatusCode, data)
	}
	return extractText(data)
}

// classifyFailure turns a non-2xx response into ErrProviderQuotaExceeded or a ProviderError.
func classifyFailure(statusCode int, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	status := gjson.GetBytes(body, "error.status").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	if statusCode == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED" || isQuotaMessage(msg) {
		return fmt.Errorf("%w: %s", studioerr.ErrProviderQuotaExceeded, msg)
	}
	return &studioerr.ProviderError{Message: msg, StatusCode: statusCode}
}

func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "rate limit") || strings.Contains(m, "resource exhausted")
}

func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", studioerr.NewProviderError("malformed response", nil)
	}
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason").String(); reason != "" {
		return "", studioerr.NewProviderError("prompt blocked: "+reason, nil)
	}

	var b strings.Builder
	for _, part := range gjson.GetBytes(body, "candidates.0.content.parts").Array() {
		if part.Get("thought").Bool() {
			continue
		}
		b.WriteString(part.Get("text").String())
	}
	if b.Len() == 0 {
		return "", studioerr.NewProviderError("missing text payload", nil)
	}
	return b.String(), nil
}

func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED"))
}
