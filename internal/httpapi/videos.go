package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"edu-video-studio/internal/history"
	"edu-video-studio/internal/jobcache"
	"edu-video-studio/internal/studioerr"
	"edu-video-studio/internal/video"
	"edu-video-studio/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListAvatars(c *gin.Context) {
	avatars, err := h.Catalog.ListAvatars(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatars": avatars})
}

func (h Handlers) ListVoices(c *gin.Context) {
	voices, err := h.Catalog.ListVoices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

type submitRequest struct {
	video.SubmitRequest
	// ScriptID renders a saved script when Script is empty.
	ScriptID string `json:"script_id,omitempty"`
}

func (h Handlers) SubmitVideo(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()

	if strings.TrimSpace(req.Script) == "" && req.ScriptID != "" && h.Scripts != nil {
		sc, err := h.Scripts.Get(ctx, req.ScriptID)
		if err != nil {
			respondScriptErr(c, err)
			return
		}
		req.Script = sc.Content
	}

	id, err := h.Renderer.Submit(ctx, req.SubmitRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	uid := userID(c)
	h.record(c, func(ctx context.Context, svc *history.Service) error {
		return svc.RenderSubmitted(ctx, uid, id, req.AvatarID)
	})
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": video.StatusPending})
}

// GetVideo returns the job's current state. Terminal jobs are served from
// the cache when present.
func (h Handlers) GetVideo(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if job, ok := h.cachedJob(c, id); ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, job)
		return
	}

	job, err := h.Renderer.Poll(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cachePut(c, job)
	c.JSON(http.StatusOK, job)
}

type awaitRequest struct {
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`
	MaxWaitSeconds      int `json:"max_wait_seconds,omitempty"`
}

// awaitOptions applies caller overrides. The wait never exceeds the configured maximum.
func (h Handlers) awaitOptions(req awaitRequest) video.AwaitOptions {
	opts := h.Await
	if req.PollIntervalSeconds > 0 {
		opts.PollInterval = time.Duration(req.PollIntervalSeconds) * time.Second
	}
	if req.MaxWaitSeconds > 0 {
		d := time.Duration(req.MaxWaitSeconds) * time.Second
		if opts.MaxWait <= 0 || d < opts.MaxWait {
			opts.MaxWait = d
		}
	}
	return opts
}

// AwaitVideo blocks until the job completes, fails, or the wait expires.
// A job already cached as terminal is answered without polling or recording.
func (h Handlers) AwaitVideo(c *gin.Context) {
	id := c.Param("id")
	var req awaitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	ctx := c.Request.Context()
	log := logger.FromGin(c)
	uid := userID(c)

	if job, ok := h.cachedJob(c, id); ok {
		c.Header("X-Cache", "HIT")
		if job.Status == video.StatusFailed {
			respondError(c, &studioerr.JobFailedError{JobID: id, Detail: job.ErrorDetail})
			return
		}
		c.JSON(http.StatusOK, job)
		return
	}

	if h.Slots != nil && uid != "" {
		ok, err := h.Slots.AcquireRenderSlot(ctx, uid)
		switch {
		case err != nil:
			log.Warn("render slot acquire failed; continuing", "err", err)
		case !ok:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many concurrent render waits"})
			return
		default:
			defer func() {
				if err := h.Slots.ReleaseRenderSlot(context.WithoutCancel(ctx), uid); err != nil {
					log.Warn("render slot release failed", "err", err)
				}
			}()
		}
	}

	job, err := h.Renderer.AwaitCompletion(ctx, id, h.awaitOptions(req))
	if err != nil {
		h.recordOutcome(c, uid, id, err)
		respondError(c, err)
		return
	}
	h.cachePut(c, job)
	h.record(c, func(ctx context.Context, svc *history.Service) error {
		return svc.RenderFinished(ctx, uid, id, history.EventRenderCompleted, string(job.Status),
			fmt.Sprintf("completed in %.0fs of video", job.DurationSeconds))
	})
	c.JSON(http.StatusOK, job)
}

func (h Handlers) recordOutcome(c *gin.Context, uid, id string, err error) {
	var (
		jf *studioerr.JobFailedError
		te *studioerr.TimeoutError
	)
	switch {
	case errors.As(err, &jf):
		h.record(c, func(ctx context.Context, svc *history.Service) error {
			return svc.RenderFinished(ctx, uid, id, history.EventRenderFailed, string(video.StatusFailed), jf.Detail)
		})
	case errors.As(err, &te):
		h.record(c, func(ctx context.Context, svc *history.Service) error {
			return svc.RenderFinished(ctx, uid, id, history.EventRenderTimeout, "", te.Error())
		})
	}
}

func (h Handlers) cachedJob(c *gin.Context, id string) (video.Job, bool) {
	if h.Cache == nil {
		return video.Job{}, false
	}
	job, err := h.Cache.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, jobcache.ErrNotFound) {
			logger.FromGin(c).Warn("job cache read failed", "job_id", id, "err", err)
		}
		return video.Job{}, false
	}
	return job, true
}

func (h Handlers) cachePut(c *gin.Context, job video.Job) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(c.Request.Context(), job); err != nil {
		logger.FromGin(c).Warn("job cache write failed", "job_id", job.ID, "err", err)
	}
}
