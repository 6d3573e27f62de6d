package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/studioerr"
	"edu-video-studio/pkg/logger"
)

// Client authors and refines narration scripts through a Generator,
// gated by a shared ratelimit.Limiter.
//
// Every operation either returns a RateLimitedError without touching the
// network, or records exactly one admission and issues exactly one request.
type Client struct {
	gen     Generator
	limiter *ratelimit.Limiter
	clock   func() time.Time
}

func NewClient(gen Generator, limiter *ratelimit.Limiter) *Client {
	return &Client{gen: gen, limiter: limiter, clock: time.Now}
}

// Generate writes educational content from prompt using the default instruction.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithInstruction(ctx, prompt, "")
}

// GenerateWithInstruction is Generate with a caller-supplied system instruction.
// An empty instruction selects the default.
func (c *Client) GenerateWithInstruction(ctx context.Context, prompt, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		instruction = defaultSystemInstruction
	}
	return c.do(ctx, prompt, Request{Task: TaskGenerate, SystemInstruction: instruction, Prompt: prompt})
}

// Enhance rewrites script for a 2-5 minute spoken video, preserving its meaning.
func (c *Client) Enhance(ctx context.Context, script string) (string, error) {
	return c.do(ctx, script, Request{Task: TaskEnhance, Prompt: enhancePrompt(script)})
}

// Summarize condenses script to about maxChars characters.
func (c *Client) Summarize(ctx context.Context, script string, maxChars int) (string, error) {
	return c.do(ctx, script, Request{Task: TaskSummarize, Prompt: summarizePrompt(script, maxChars)})
}

// Usage reports the shared limiter state.
func (c *Client) Usage() ratelimit.Usage {
	return c.limiter.Stats(c.clock())
}

func (c *Client) do(ctx context.Context, input string, req Request) (string, error) {
	log := logger.From(ctx).With("task", string(req.Task))

	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: text is required", studioerr.ErrInvalidRequest)
	}
	if c.gen == nil || c.limiter == nil {
		return "", errors.New("content: client not configured")
	}

	if ok, retry := c.limiter.Acquire(c.clock()); !ok {
		log.Warn("content call rate limited", "retry_after_seconds", retry)
		return "", &studioerr.RateLimitedError{RetryAfterSeconds: retry}
	}

	start := c.clock()
	out, err := c.gen.GenerateContent(ctx, req)
	if err != nil {
		err = classify(err)
		log.Error("content call failed", "kind", string(studioerr.KindOf(err)), "err", err)
		return "", err
	}

	log.Info("content call succeeded",
		"chars", len(out),
		"duration_ms", float64(c.clock().Sub(start).Milliseconds()),
		"remaining", c.limiter.Stats(c.clock()).Remaining,
	)
	return out, nil
}

// classify normalizes generator errors into the taxonomy. Errors that already
// carry a kind pass through; anything else is a ProviderError, unless its text
// reports a quota condition.
func classify(err error) error {
	switch studioerr.KindOf(err) {
	case studioerr.KindQuotaExceeded, studioerr.KindProvider, studioerr.KindRateLimited:
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return studioerr.NewProviderError("request aborted", err)
	}
	if isQuotaMessage(err.Error()) {
		return fmt.Errorf("%w: %v", studioerr.ErrProviderQuotaExceeded, err)
	}
	return studioerr.NewProviderError("text generation failed", err)
}
