package video

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
)

const (
	DefaultHeyGenBaseURL = "https://api.heygen.com"
	headerAPIKey         = "X-Api-Key"
	avatarStyleNormal    = "normal"
)

type HeyGenConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// HeyGenProvider implements Provider against the HeyGen REST API.
type HeyGenProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewHeyGenProvider(cfg HeyGenConfig) (*HeyGenProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("video: heygen api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHeyGenBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HeyGenProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Wire types. Field names are fixed by the provider.

type envelope[T any] struct {
	Code    int             `json:"code"`
	Data    *T              `json:"data"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type avatarItem struct {
	AvatarID        string `json:"avatar_id"`
	AvatarName      string `json:"avatar_name"`
	PreviewImageURL string `json:"preview_image_url"`
	Gender          string `json:"gender"`
}

type voiceItem struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

type character struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatar_id"`
	AvatarStyle string `json:"avatar_style"`
}

type voiceInput struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id,omitempty"`
}

type videoInput struct {
	Character character  `json:"character"`
	Voice     voiceInput `json:"voice"`
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Title       string       `json:"title"`
	Test        bool         `json:"test"`
}

type generateData struct {
	VideoID string `json:"video_id"`
}

func (p *HeyGenProvider) ListAvatars(ctx context.Context) ([]Avatar, error) {
	var env envelope[struct {
		Avatars []avatarItem `json:"avatars"`
	}]
	if err := p.do(ctx, http.MethodGet, "/v2/avatars", nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []Avatar{}, nil
	}
	out := make([]Avatar, 0, len(env.Data.Avatars))
	for _, a := range env.Data.Avatars {
		out = append(out, Avatar{ID: a.AvatarID, Name: a.AvatarName, PreviewImageURL: a.PreviewImageURL, Gender: a.Gender})
	}
	return out, nil
}

func (p *HeyGenProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	var env envelope[struct {
		Voices []voiceItem `json:"voices"`
	}]
	if err := p.do(ctx, http.MethodGet, "/v2/voices", nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []Voice{}, nil
	}
	out := make([]Voice, 0, len(env.Data.Voices))
	for _, v := range env.Data.Voices {
		out = append(out, Voice{ID: v.VoiceID, Name: v.Name, Language: v.Language, Gender: v.Gender})
	}
	return out, nil
}

// CreateVideo submits a render and returns the provider's video id, or ""
// when the response carried none. The poller owns that contract check.
func (p *HeyGenProvider) CreateVideo(ctx context.Context, req RenderRequest) (string, error) {
	body := generateRequest{
		VideoInputs: []videoInput{{
			Character: character{Type: "avatar", AvatarID: req.AvatarID, AvatarStyle: avatarStyleNormal},
			Voice:     voiceInput{Type: "text", InputText: req.Script, VoiceID: req.VoiceID},
		}},
		Title: req.Title,
		Test:  false,
	}
	var env envelope[generateData]
	if err := p.do(ctx, http.MethodPost, "/v2/video/generate", nil, body, &env); err != nil {
		return "", err
	}
	if env.Data == nil {
		return "", nil
	}
	return env.Data.VideoID, nil
}

func (p *HeyGenProvider) VideoStatus(ctx context.Context, videoID string) (StatusPayload, error) {
	var env envelope[StatusPayload]
	q := url.Values{"video_id": {videoID}}
	if err := p.do(ctx, http.MethodGet, "/v1/video_status.get", q, nil, &env); err != nil {
		return StatusPayload{}, err
	}
	if env.Data == nil {
		return StatusPayload{}, studioerr.NewProviderError("status response missing data", nil)
	}
	return *env.Data, nil
}

// Download streams a finished video to w. Video URLs are pre-signed, so no
// API key is sent.
func (p *HeyGenProvider) Download(ctx context.Context, videoURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: video url: %v", studioerr.ErrInvalidRequest, err)
	}
	// downloads can outlast the API timeout
	client := &http.Client{Transport: p.http.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return 0, studioerr.NewProviderError("download request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, &studioerr.ProviderError{Message: "download failed: " + resp.Status, StatusCode: resp.StatusCode}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, studioerr.NewProviderError("download interrupted", err)
	}
	return n, nil
}

func (p *HeyGenProvider) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := p.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return studioerr.NewProviderError("encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return studioerr.NewProviderError("build request", err)
	}
	req.Header.Set(headerAPIKey, p.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return studioerr.NewProviderError(method+" "+path+" failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return studioerr.NewProviderError("read response", err)
	}
	if resp.StatusCode >= 300 {
		return &studioerr.ProviderError{
			Message:    fmt.Sprintf("%s %s: %s", method, path, failureMessage(resp.Status, raw)),
			StatusCode: resp.StatusCode,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return studioerr.NewProviderError("malformed response", err)
	}
	return nil
}

// failureMessage picks the most specific message out of an error body.
func failureMessage(status string, body []byte) string {
	var env envelope[json.RawMessage]
	if json.Unmarshal(body, &env) == nil {
		if msg := errorText(env.Error); msg != "" {
			return msg
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return status
}

// errorText reads an error field that may be a string or an object with a
// message and optional detail.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		switch {
		case obj.Message != "" && obj.Detail != "":
			return obj.Message + ": " + obj.Detail
		case obj.Message != "":
			return obj.Message
		case obj.Detail != "":
			return obj.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}
