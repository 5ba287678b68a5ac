package handlers

import (
	stderrors "errors"
	"net/http"
	"path/filepath"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/transcode"
	"github.com/gin-gonic/gin"
)

const statusFile = "status"

var outputTypes = map[string]string{
	".mp4":  "video/mp4",
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
}

func (h *Handler) transcodeDisabled(c *gin.Context) bool {
	if h.transcoder != nil && h.transcoder.Enabled() {
		return false
	}
	body := errors.Body(errors.NewConfigurationError("transcoding is disabled", nil))
	body["status"] = "error"
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, body)
	return true
}

func (h *Handler) handleTranscodeFile(c *gin.Context) {
	if h.transcodeDisabled(c) {
		return
	}
	id, file := c.Param("id"), c.Param("file")

	// Any request for a registered fallback starts its job.
	session, err := h.transcoder.Acquire(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if file == statusFile {
		c.JSON(http.StatusOK, session)
		return
	}

	f, info, err := h.transcoder.Open(id, file)
	if stderrors.Is(err, transcode.ErrNotReady) {
		c.Header("Retry-After", "2")
		c.JSON(http.StatusAccepted, session)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	if ct, ok := outputTypes[filepath.Ext(file)]; ok {
		c.Header("Content-Type", ct)
	}
	if file == transcode.OutputPlaylist {
		c.Header("Cache-Control", "no-cache")
	}
	http.ServeContent(c.Writer, c.Request, file, info.ModTime(), f)
}

func (h *Handler) handleTranscodeDelete(c *gin.Context) {
	if h.transcodeDisabled(c) {
		return
	}
	if err := h.transcoder.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) handleTranscodeClear(c *gin.Context) {
	if h.transcodeDisabled(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": h.transcoder.Clear()})
}
