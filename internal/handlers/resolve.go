package handlers

import (
	"net/http"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/internal/resolver"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleResolve(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewInvalidRequestError("body must be JSON with a link"))
		return
	}
	prefer, err := resolver.ParsePrefer(req.Prefer)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), req.Link, req.Provider, prefer)
	if err != nil {
		h.services.Logger.Warnf("[Resolve] %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) handleDebridStatus(c *gin.Context) {
	prefer, err := resolver.ParsePrefer(c.Query("prefer"))
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.resolver.Status(c.Request.Context(), c.Param("provider"), c.Param("id"), prefer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
