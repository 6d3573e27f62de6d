package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"edu-video-studio/internal/reporting"
	"edu-video-studio/internal/scripts"

	"github.com/gin-gonic/gin"
)

type saveScriptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h Handlers) ListScripts(c *gin.Context) {
	list, err := h.Scripts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scripts": list})
}

// SaveScript accepts JSON {name, content} or a multipart form with a .txt "file".
func (h Handlers) SaveScript(c *gin.Context) {
	var req saveScriptRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
			return
		}
		defer f.Close()
		text, err := scripts.ReadUpload(fh.Filename, f)
		if err != nil {
			respondError(c, err)
			return
		}
		req.Content = text
		req.Name = c.PostForm("name")
		if req.Name == "" {
			req.Name = fh.Filename
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sc, err := h.Scripts.Save(c.Request.Context(), req.Name, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h Handlers) GetScript(c *gin.Context) {
	sc, err := h.Scripts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondScriptErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h Handlers) DeleteScript(c *gin.Context) {
	ok, err := h.Scripts.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "script not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func respondScriptErr(c *gin.Context, err error) {
	if errors.Is(err, scripts.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "script not found"})
		return
	}
	respondError(c, err)
}

// UsageReport reports render outcomes between from and to (RFC 3339),
// defaulting to the last 24 hours.
func (h Handlers) UsageReport(c *gin.Context) {
	now := time.Now().UTC()
	r := reporting.TimeRange{From: now.Add(-24 * time.Hour), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		r.To = t
	}
	out, err := h.Reports.UsageReport(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
