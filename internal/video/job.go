package video

// Status is the render job state reported by the provider.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps the provider vocabulary. Unknown values map to processing
// so callers keep polling instead of failing on a new upstream state.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(raw)
	default:
		return StatusProcessing
	}
}

// Job is one render job. VideoURL and DurationSeconds are set only when
// Status is completed; ErrorDetail only when it is failed.
type Job struct {
	ID              string  `json:"id"`
	Status          Status  `json:"status"`
	RawStatus       string  `json:"raw_status,omitempty"`
	VideoURL        string  `json:"video_url,omitempty"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ErrorDetail     string  `json:"error_detail,omitempty"`
	CallbackID      string  `json:"callback_id,omitempty"`
}

// Avatar is a selectable presenter.
type Avatar struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PreviewImageURL string `json:"preview_image_url"`
	Gender          string `json:"gender,omitempty"`
}

// Voice is a selectable narration voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}
