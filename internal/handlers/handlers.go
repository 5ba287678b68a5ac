// Package handlers implements the HTTP API: search, resolution, transcode
// sessions, the streaming proxy and hoster link tools.
package handlers

import (
	"net/http"

	"github.com/amaumene/debridstream/internal/config"
	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/proxy"
	"github.com/amaumene/debridstream/internal/resolver"
	"github.com/amaumene/debridstream/internal/services"
	"github.com/amaumene/debridstream/internal/transcode"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler handles HTTP requests for the streaming API.
type Handler struct {
	services   *services.Container
	resolver   *resolver.Resolver
	transcoder *transcode.Manager
	proxy      *proxy.Proxy
	config     *config.Config
}

func New(container *services.Container, res *resolver.Resolver, transcoder *transcode.Manager, p *proxy.Proxy, cfg *config.Config) *Handler {
	return &Handler{
		services:   container,
		resolver:   res,
		transcoder: transcoder,
		proxy:      p,
		config:     cfg,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.handleHealth)
	r.GET("/providers/health", h.handleProvidersHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/search", h.handleSearch)

	r.POST("/resolve", h.handleResolve)
	r.GET("/debrid/status/:provider/:id", h.handleDebridStatus)

	// "status" shares the file position with output names.
	r.GET("/transcode/:id/:file", h.handleTranscodeFile)
	r.DELETE("/transcode", h.handleTranscodeClear)
	r.DELETE("/transcode/:id", h.handleTranscodeDelete)

	r.GET("/stream/*url", h.handleStream)
	r.HEAD("/stream/*url", h.handleStream)

	r.POST("/links/unlock", h.handleLinksUnlock)
}

func (h *Handler) handleHealth(c *gin.Context) {
	transcodeInfo := gin.H{"enabled": false}
	if h.transcoder != nil {
		transcodeInfo = gin.H{
			"enabled":  h.transcoder.Enabled(),
			"mode":     h.transcoder.Mode(),
			"sessions": h.transcoder.Len(),
		}
	}
	catalog := h.services.Secrets != nil &&
		h.services.Secrets.IsConfigured(constants.ScopeCatalog, constants.SecretTMDB)

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"version":           constants.AppVersion,
		"debridConfigured":  h.services.Debrid != nil && h.services.Debrid.IsConfigured(),
		"catalogConfigured": catalog,
		"providers":         h.services.Registry.Providers(),
		"transcode":         transcodeInfo,
	})
}

func (h *Handler) handleProvidersHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.services.Registry.HealthCheck(c.Request.Context())})
}

// respondError writes err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	body := errors.Body(err)
	body["status"] = "error"
	c.AbortWithStatusJSON(errors.HTTPStatus(err), body)
}
