// Package server exposes the HTTP trigger for scheduled or manual
// scans. Identity resolution is cheap-first: an organization id in the
// request body avoids an auth round-trip, then the bearer token, then
// the first known organization for unattended cron execution.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oseghale/riskradar/internal/llm"
	"github.com/oseghale/riskradar/internal/model"
	"github.com/oseghale/riskradar/internal/pipeline"
	"github.com/oseghale/riskradar/internal/store"
)

// Server handles scan trigger requests.
type Server struct {
	cfg        *model.Config
	store      store.Store
	classifier llm.Provider
}

// New creates a server.
func New(cfg *model.Config, st store.Store, classifier llm.Provider) *Server {
	return &Server{cfg: cfg, store: st, classifier: classifier}
}

type scanRequest struct {
	OrganizationID string `json:"organization_id"`
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/scan", s.handleScan)

	return router
}

// handleScan runs one pipeline invocation. Completion is 200 even with
// partial per-event failures; 500 is reserved for environment failures
// where no work was possible.
func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	token := bearerToken(c.GetHeader("Authorization"))

	org, err := pipeline.ResolveOrganization(c.Request.Context(), s.store, req.OrganizationID, token)
	if err != nil {
		slog.Error("organization resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, model.ScanSummary{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	// A fresh pipeline per invocation keeps per-scan counters isolated.
	summary := pipeline.New(s.cfg, s.store, s.classifier).Run(c.Request.Context(), org)
	if !summary.Success {
		c.JSON(http.StatusInternalServerError, summary)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Run starts the HTTP server on the configured address.
func (s *Server) Run() error {
	return s.Router().Run(s.cfg.Server.Addr)
}
