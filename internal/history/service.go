package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// Repository is the persistence contract for history events.
// It is append-only: no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("history: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// List returns matching events, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) RenderSubmitted(ctx context.Context, userID, jobID, avatarID string) error {
	return s.Append(ctx, Event{
		Type:        EventRenderSubmitted,
		ActorUserID: userID,
		JobID:       jobID,
		AvatarID:    avatarID,
		Status:      "pending",
		Message:     "render submitted",
	})
}

// RenderFinished records the outcome of a wait on a job. A job's completion
// or failure is recorded once; later waits on the same job are not.
func (s *Service) RenderFinished(ctx context.Context, userID, jobID string, t EventType, status, message string) error {
	if t.terminal() && jobID != "" {
		seen, err := s.terminalRecorded(ctx, jobID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	return s.Append(ctx, Event{
		Type:        t,
		ActorUserID: userID,
		JobID:       jobID,
		Status:      status,
		Message:     message,
	})
}

func (s *Service) terminalRecorded(ctx context.Context, jobID string) (bool, error) {
	events, err := s.List(ctx, Filter{JobID: jobID})
	if err != nil {
		return false, err
	}
	for _, e := range events {
		if e.Type.terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ContentGenerated(ctx context.Context, userID, task string, chars int) error {
	meta, err := sjson.Set(`{}`, "chars", chars)
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		Type:        EventContentGenerated,
		ActorUserID: userID,
		Status:      task,
		Message:     "content generated",
		Metadata:    meta,
	})
}
