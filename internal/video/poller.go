package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"edu-video-studio/internal/studioerr"
	"edu-video-studio/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTitle        = "Educational Video"
	DefaultPollInterval = 10 * time.Second
	DefaultMaxWait      = 600 * time.Second

	unknownFailure = "unknown error"
)

// SubmitRequest is the input to Poller.Submit. VoiceID is optional; the
// avatar's default voice is used when it is empty.
type SubmitRequest struct {
	Script   string `json:"script"`
	AvatarID string `json:"avatar_id"`
	Title    string `json:"title,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
}

type AwaitOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (o AwaitOptions) withDefaults() AwaitOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	return o
}

// Poller drives render jobs from submission to a terminal state.
//
// Invariants:
//   - a completed Job always carries a video URL and a duration
//   - once a job is observed terminal, a different later status is a ProviderError
//   - concurrent AwaitCompletion calls for one job share a single polling loop
//   - every AwaitCompletion call is bounded by its own MaxWait, measured from its own start
type Poller struct {
	provider Provider

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	terminal *lru.Cache[string, Status]
	watches  map[string]*watch

	// flight collapses concurrent status requests for one job.
	flight singleflight.Group
}

// terminalMemory bounds how many terminal jobs the poller remembers.
const terminalMemory = 4096

func NewPoller(provider Provider) *Poller {
	terminal, _ := lru.New[string, Status](terminalMemory)
	return &Poller{
		provider: provider,
		clock:    time.Now,
		sleep:    sleepCtx,
		terminal: terminal,
		watches:  make(map[string]*watch),
	}
}

// Provider exposes the underlying provider for catalogue and download calls.
func (p *Poller) Provider() Provider { return p.provider }

// Submit validates req and starts a render, returning the provider job id.
func (p *Poller) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.AvatarID) == "" {
		return "", fmt.Errorf("%w: avatar_id is required", studioerr.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Script) == "" {
		return "", fmt.Errorf("%w: script is required", studioerr.ErrInvalidRequest)
	}
	if req.Title == "" {
		req.Title = DefaultTitle
	}

	id, err := p.provider.CreateVideo(ctx, RenderRequest{
		Script:   req.Script,
		AvatarID: req.AvatarID,
		VoiceID:  req.VoiceID,
		Title:    req.Title,
	})
	if err != nil {
		return "", asProviderError("create video", err)
	}
	if id == "" {
		return "", studioerr.NewProviderError("missing job id", nil)
	}

	logger.From(ctx).Info("render submitted", "job_id", id, "avatar_id", req.AvatarID, "script_chars", len(req.Script))
	return id, nil
}

// Poll issues one status request and returns the job's current state.
// Concurrent calls for the same job share one request.
func (p *Poller) Poll(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, fmt.Errorf("%w: job id is required", studioerr.ErrInvalidRequest)
	}

	for {
		ch := p.flight.DoChan(jobID, func() (any, error) {
			return p.poll(ctx, jobID)
		})
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case res := <-ch:
			// A shared request aborted by another caller's cancellation; issue our own.
			if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return Job{}, res.Err
			}
			return res.Val.(Job), nil
		}
	}
}

func (p *Poller) poll(ctx context.Context, jobID string) (Job, error) {
	payload, err := p.provider.VideoStatus(ctx, jobID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Job{}, ctxErr
		}
		return Job{}, asProviderError("video status", err)
	}

	job, err := toJob(jobID, payload)
	if err != nil {
		return Job{}, err
	}
	if err := p.observe(job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// AwaitCompletion polls until the job completes, fails, or opts.MaxWait elapses.
// The returned Job is always completed. A failed job is reported as
// *studioerr.JobFailedError and an expired wait as *studioerr.TimeoutError.
//
// Callers waiting on the same job share one polling loop, but each keeps its
// own deadline. The loop stops once the job is terminal or every caller left.
func (p *Poller) AwaitCompletion(ctx context.Context, jobID string, opts AwaitOptions) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, fmt.Errorf("%w: job id is required", studioerr.ErrInvalidRequest)
	}
	opts = opts.withDefaults()

	now := p.clock()
	w := &waiter{
		start:    now,
		deadline: now.Add(opts.MaxWait),
		interval: opts.PollInterval,
		result:   make(chan awaitResult, 1),
	}
	p.join(ctx, jobID, w)

	select {
	case <-ctx.Done():
		p.leave(jobID, w)
		return Job{}, ctx.Err()
	case res := <-w.result:
		return res.job, res.err
	}
}

// Forget drops the remembered terminal state of a job.
func (p *Poller) Forget(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminal.Remove(jobID)
}

type awaitResult struct {
	job Job
	err error
}

type waiter struct {
	start    time.Time
	deadline time.Time
	interval time.Duration
	result   chan awaitResult
}

// watch is the shared polling loop of one job.
type watch struct {
	waiters map[*waiter]struct{}
	cancel  context.CancelFunc

	lastPoll  time.Time
	interrupt context.CancelFunc
}

func (p *Poller) join(ctx context.Context, jobID string, w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wt, ok := p.watches[jobID]; ok {
		wt.waiters[w] = struct{}{}
		// Wake a sleeping loop so a shorter deadline is honoured.
		if wt.interrupt != nil {
			wt.interrupt()
		}
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wt := &watch{waiters: map[*waiter]struct{}{w: {}}, cancel: cancel}
	p.watches[jobID] = wt
	go p.run(loopCtx, jobID, wt)
}

func (p *Poller) leave(jobID string, w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wt, ok := p.watches[jobID]
	if !ok {
		return
	}
	delete(wt.waiters, w)
	if len(wt.waiters) == 0 {
		delete(p.watches, jobID)
		wt.cancel()
	}
}

func (p *Poller) run(ctx context.Context, jobID string, wt *watch) {
	defer wt.cancel()
	log := logger.From(ctx).With("job_id", jobID)
	polls := 0

	for {
		job, err := p.Poll(ctx, jobID)
		if err != nil {
			if ctx.Err() == nil {
				p.finish(jobID, wt, Job{}, err)
			}
			return
		}
		polls++

		switch job.Status {
		case StatusCompleted:
			log.Info("render completed", "polls", polls, "duration_seconds", job.DurationSeconds)
			p.finish(jobID, wt, job, nil)
			return
		case StatusFailed:
			log.Warn("render failed", "polls", polls, "detail", job.ErrorDetail)
			p.finish(jobID, wt, Job{}, &studioerr.JobFailedError{JobID: jobID, Detail: job.ErrorDetail})
			return
		}

		p.mu.Lock()
		wt.lastPoll = p.clock()
		p.mu.Unlock()

		for {
			wait, napCtx, ok := p.next(ctx, log, jobID, wt, polls)
			if !ok {
				return
			}
			if wait <= 0 {
				break
			}
			log.Debug("render in progress", "status", string(job.Status), "next_poll_in", wait.String())
			err := p.sleep(napCtx, wait)
			p.mu.Lock()
			wt.interrupt()
			wt.interrupt = nil
			p.mu.Unlock()
			if err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}

// next times out expired waiters and reports how long the loop sleeps before
// its next poll. A zero wait means poll now; ok is false once no waiter remains.
func (p *Poller) next(ctx context.Context, log *slog.Logger, jobID string, wt *watch, polls int) (time.Duration, context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	var interval, wait time.Duration
	for w := range wt.waiters {
		if !now.Before(w.deadline) {
			elapsed := now.Sub(w.start)
			log.Warn("render wait timed out", "polls", polls, "elapsed_seconds", elapsed.Seconds())
			w.result <- awaitResult{err: &studioerr.TimeoutError{JobID: jobID, ElapsedSeconds: elapsed.Seconds()}}
			delete(wt.waiters, w)
			continue
		}
		if interval == 0 || w.interval < interval {
			interval = w.interval
		}
		if rest := w.deadline.Sub(now); wait == 0 || rest < wait {
			wait = rest
		}
	}
	if len(wt.waiters) == 0 {
		if p.watches[jobID] == wt {
			delete(p.watches, jobID)
		}
		return 0, nil, false
	}

	due := wt.lastPoll.Add(interval)
	if !now.Before(due) {
		return 0, nil, true
	}
	if rest := due.Sub(now); rest < wait {
		wait = rest
	}

	napCtx, interrupt := context.WithCancel(ctx)
	wt.interrupt = interrupt
	return wait, napCtx, true
}

// finish delivers the loop's outcome to every remaining waiter.
func (p *Poller) finish(jobID string, wt *watch, job Job, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for w := range wt.waiters {
		w.result <- awaitResult{job: job, err: err}
	}
	wt.waiters = nil
	if p.watches[jobID] == wt {
		delete(p.watches, jobID)
	}
}

// observe enforces terminal absorption for a freshly polled job.
func (p *Poller) observe(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.terminal.Get(job.ID); ok {
		if job.Status != prev {
			return studioerr.NewProviderError(
				fmt.Sprintf("terminal status changed from %s to %s", prev, job.Status), nil)
		}
		return nil
	}
	if job.Status.Terminal() {
		p.terminal.Add(job.ID, job.Status)
	}
	return nil
}

func toJob(jobID string, sp StatusPayload) (Job, error) {
	job := Job{
		ID:        jobID,
		Status:    ParseStatus(sp.Status),
		RawStatus: sp.Status,
	}
	if sp.ThumbnailURL != nil {
		job.ThumbnailURL = *sp.ThumbnailURL
	}
	if sp.CallbackID != nil {
		job.CallbackID = *sp.CallbackID
	}

	switch job.Status {
	case StatusCompleted:
		if sp.VideoURL == nil || *sp.VideoURL == "" {
			return Job{}, studioerr.NewProviderError("completed job missing video_url", nil)
		}
		if sp.Duration == nil {
			return Job{}, studioerr.NewProviderError("completed job missing duration", nil)
		}
		job.VideoURL = *sp.VideoURL
		job.DurationSeconds = *sp.Duration
	case StatusFailed:
		job.ErrorDetail = errorText(sp.Error)
		if job.ErrorDetail == "" {
			job.ErrorDetail = unknownFailure
		}
	}
	return job, nil
}

func asProviderError(op string, err error) error {
	if studioerr.KindOf(err) != studioerr.KindInternal {
		return err
	}
	return studioerr.NewProviderError(op+" failed", err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
