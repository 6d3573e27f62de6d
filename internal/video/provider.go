package video

import (
	"context"
	"encoding/json"
	"io"
)

// Provider is the render service boundary. Implementations issue exactly one
// network round trip per call and do not retry.
type Provider interface {
	CreateVideo(ctx context.Context, req RenderRequest) (string, error)
	VideoStatus(ctx context.Context, videoID string) (StatusPayload, error)
	ListAvatars(ctx context.Context) ([]Avatar, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	Download(ctx context.Context, videoURL string, w io.Writer) (int64, error)
}

// RenderRequest is the provider-agnostic submit input.
type RenderRequest struct {
	Script   string
	AvatarID string
	VoiceID  string
	Title    string
}

// StatusPayload is the raw status document. Pointer fields distinguish
// absent from zero so contract checks can tell them apart.
type StatusPayload struct {
	Status       string          `json:"status"`
	VideoURL     *string         `json:"video_url"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	Duration     *float64        `json:"duration"`
	Error        json.RawMessage `json:"error"`
	CallbackID   *string         `json:"callback_id"`
}
