package httpapi

import (
	"context"
	"net/http"

	"edu-video-studio/internal/content"
	"edu-video-studio/internal/history"

	"github.com/gin-gonic/gin"
)

type generateRequest struct {
	Prompt            string `json:"prompt"`
	SystemInstruction string `json:"system_instruction,omitempty"`
}

type scriptRequest struct {
	Script   string `json:"script"`
	MaxChars int    `json:"max_chars,omitempty"`
}

type contentResponse struct {
	Content string `json:"content"`
}

func (h Handlers) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Content.GenerateWithInstruction(c.Request.Context(), req.Prompt, req.SystemInstruction)
	h.respondContent(c, content.TaskGenerate, out, err)
}

func (h Handlers) Enhance(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	out, err := h.Content.Enhance(c.Request.Context(), req.Script)
	h.respondContent(c, content.TaskEnhance, out, err)
}

func (h Handlers) Summarize(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.MaxChars <= 0 {
		req.MaxChars = content.DefaultSummaryChars
	}
	out, err := h.Content.Summarize(c.Request.Context(), req.Script, req.MaxChars)
	h.respondContent(c, content.TaskSummarize, out, err)
}

func (h Handlers) ContentUsage(c *gin.Context) {
	c.JSON(http.StatusOK, h.Content.Usage())
}

func (h Handlers) respondContent(c *gin.Context, task content.Task, out string, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	uid := userID(c)
	h.record(c, func(ctx context.Context, svc *history.Service) error {
		return svc.ContentGenerated(ctx, uid, string(task), len(out))
	})
	c.JSON(http.StatusOK, contentResponse{Content: out})
}
