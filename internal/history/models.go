package history

import "time"

// Event is an immutable record of a content or render action.
//
// Invariants:
//   - events are never updated or deleted
//   - recording is best-effort; callers never fail a request because of it
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	JobID    string `json:"job_id,omitempty" db:"job_id"`
	AvatarID string `json:"avatar_id,omitempty" db:"avatar_id"`
	Status   string `json:"status,omitempty" db:"status"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventRenderSubmitted  EventType = "render_submitted"
	EventRenderCompleted  EventType = "render_completed"
	EventRenderFailed     EventType = "render_failed"
	EventRenderTimeout    EventType = "render_timeout"
	EventContentGenerated EventType = "content_generated"
)

func (t EventType) terminal() bool {
	return t == EventRenderCompleted || t == EventRenderFailed
}

// Filter narrows a List call. Zero fields match everything.
type Filter struct {
	From        time.Time
	To          time.Time
	ActorUserID string
	JobID       string
	Limit       int
}

func (f Filter) matches(e Event) bool {
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	if f.ActorUserID != "" && e.ActorUserID != f.ActorUserID {
		return false
	}
	if f.JobID != "" && e.JobID != f.JobID {
		return false
	}
	return true
}
