package reporting

import (
	"context"
	"errors"

	"edu-video-studio/internal/history"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/studioerr"
)

// EventSource is the read side of the history log.
type EventSource interface {
	List(ctx context.Context, f history.Filter) ([]history.Event, error)
}

// UsageSource reports the content limiter state.
type UsageSource interface {
	Usage() ratelimit.Usage
}

type Service struct {
	events EventSource
	usage  UsageSource
}

func NewService(events EventSource, usage UsageSource) *Service {
	return &Service{events: events, usage: usage}
}

func (s *Service) RenderSummary(ctx context.Context, r TimeRange) (RenderSummary, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return RenderSummary{}, studioerr.ErrInvalidRequest
	}
	if s.events == nil {
		return RenderSummary{}, errors.New("reporting: event source not configured")
	}

	rows, err := s.events.List(ctx, history.Filter{From: r.From, To: r.To})
	if err != nil {
		return RenderSummary{}, err
	}

	out := RenderSummary{Range: r}
	for _, e := range rows {
		switch e.Type {
		case history.EventRenderSubmitted:
			out.Submitted++
		case history.EventRenderCompleted:
			out.Completed++
		case history.EventRenderFailed:
			out.Failed++
		case history.EventRenderTimeout:
			out.TimedOut++
		case history.EventContentGenerated:
			out.ContentCalls++
		}
	}
	if finished := out.Completed + out.Failed + out.TimedOut; finished > 0 {
		out.SuccessRate = float64(out.Completed) / float64(finished)
	}
	return out, nil
}

func (s *Service) UsageReport(ctx context.Context, r TimeRange) (UsageReport, error) {
	renders, err := s.RenderSummary(ctx, r)
	if err != nil {
		return UsageReport{}, err
	}
	out := UsageReport{Renders: renders}
	if s.usage != nil {
		out.Content = s.usage.Usage()
	}
	return out, nil
}
