package reporting

import (
	"time"

	"edu-video-studio/internal/ratelimit"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RenderSummary aggregates render outcomes recorded in history.
type RenderSummary struct {
	Range TimeRange `json:"range"`

	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`

	// SuccessRate is completed / (completed + failed + timed_out); 0 with no finished renders.
	SuccessRate float64 `json:"success_rate"`

	ContentCalls int `json:"content_calls"`
}

// UsageReport combines render outcomes with the live content quota snapshot.
type UsageReport struct {
	Renders RenderSummary   `json:"renders"`
	Content ratelimit.Usage `json:"content"`
}
