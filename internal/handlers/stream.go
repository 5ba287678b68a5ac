package handlers

import (
	"net/url"
	"strings"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/gin-gonic/gin"
)

// handleStream proxies /stream/<escaped upstream URL>. The escaped path is
// used so that encoded slashes and query separators survive routing.
func (h *Handler) handleStream(c *gin.Context) {
	raw := strings.TrimPrefix(c.Request.URL.EscapedPath(), "/stream/")
	target, err := url.PathUnescape(raw)
	if err != nil || target == "" {
		respondError(c, errors.NewInvalidRequestError("stream path must carry an escaped URL"))
		return
	}
	if c.Request.URL.RawQuery != "" {
		target += "?" + c.Request.URL.RawQuery
	}

	if err := h.proxy.Serve(c.Writer, c.Request, target); err != nil {
		h.services.Logger.Debugf("[Stream] %v", err)
	}
}
