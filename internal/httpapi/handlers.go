package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"edu-video-studio/internal/auth"
	"edu-video-studio/internal/history"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/rbac"
	"edu-video-studio/internal/reporting"
	"edu-video-studio/internal/scripts"
	"edu-video-studio/internal/studioerr"
	"edu-video-studio/internal/video"
	"edu-video-studio/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ContentService interface {
	GenerateWithInstruction(ctx context.Context, prompt, instruction string) (string, error)
	Enhance(ctx context.Context, script string) (string, error)
	Summarize(ctx context.Context, script string, maxChars int) (string, error)
	Usage() ratelimit.Usage
}

type Renderer interface {
	Submit(ctx context.Context, req video.SubmitRequest) (string, error)
	Poll(ctx context.Context, jobID string) (video.Job, error)
	AwaitCompletion(ctx context.Context, jobID string, opts video.AwaitOptions) (video.Job, error)
}

type Catalog interface {
	ListAvatars(ctx context.Context) ([]video.Avatar, error)
	ListVoices(ctx context.Context) ([]video.Voice, error)
}

type JobCache interface {
	Put(ctx context.Context, job video.Job) error
	Get(ctx context.Context, id string) (video.Job, error)
}

type RenderSlots interface {
	AcquireRenderSlot(ctx context.Context, userID string) (bool, error)
	ReleaseRenderSlot(ctx context.Context, userID string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Cache, Slots and History are optional.
type Handlers struct {
	Auth *auth.Manager
	// AllowTokenIssue enables POST /v1/auth/token. Local and dev only.
	AllowTokenIssue bool

	Content  ContentService
	Renderer Renderer
	Catalog  Catalog
	Await    video.AwaitOptions

	Cache   JobCache
	Slots   RenderSlots
	Scripts *scripts.Service
	History *history.Service
	Reports *reporting.Service
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken issues a JWT token pair without credential checks.
func (h Handlers) IssueToken(c *gin.Context) {
	if !h.AllowTokenIssue {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a known role are required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- errors ---

// statusClientClosedRequest is reported when the caller went away mid-request.
const statusClientClosedRequest = 499

// respondError maps err to a JSON error response. Rate limited responses
// carry retry_after_seconds and a Retry-After header.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
		logger.FromGin(c).Info("client closed request", "path", c.FullPath())
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	status := studioerr.HTTPStatus(err)
	body := gin.H{"error": err.Error(), "kind": studioerr.KindOf(err)}

	var rl *studioerr.RateLimitedError
	if errors.As(err, &rl) {
		body["retry_after_seconds"] = rl.RetryAfterSeconds
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
	}
	var jf *studioerr.JobFailedError
	if errors.As(err, &jf) {
		body["job_id"] = jf.JobID
		body["detail"] = jf.Detail
	}
	var te *studioerr.TimeoutError
	if errors.As(err, &te) {
		body["job_id"] = te.JobID
		body["elapsed_seconds"] = te.ElapsedSeconds
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func userID(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// record appends a history event. Failures are logged and never surface.
func (h Handlers) record(c *gin.Context, fn func(ctx context.Context, svc *history.Service) error) {
	if h.History == nil {
		return
	}
	if err := fn(c.Request.Context(), h.History); err != nil {
		logger.FromGin(c).Warn("history append failed", "err", err)
	}
}
