package handlers

import (
	"net/http"
	"strings"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleLinksUnlock(c *gin.Context) {
	var req models.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewInvalidRequestError("body must be JSON with text or links"))
		return
	}

	links := mergeLinks(req.Links, h.services.Links.ExtractLinks(req.Text))
	if len(links) == 0 {
		respondError(c, errors.NewInvalidRequestError("no links found"))
		return
	}

	results := h.services.Links.UnlockBatch(c.Request.Context(), links)
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"total":      len(results),
		"successful": successful,
	})
}

func mergeLinks(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, link := range list {
			link = strings.TrimSpace(link)
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			out = append(out, link)
		}
	}
	return out
}
