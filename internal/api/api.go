// Package api exposes the scraping core's HTTP surface: triggering a
// brand scrape, health, and metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mediawatch/internal/coordinator"
	"mediawatch/internal/metrics"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/store"
)

// Server wires the gin engine to the coordinator and the store.
type Server struct {
	engine      *gin.Engine
	store       store.Store
	coordinator *coordinator.Coordinator
	budgets     orchestrator.Budgets
	log         *slog.Logger
}

// New builds the HTTP surface described in spec §4.11/§4.13.
func New(st store.Store, c *coordinator.Coordinator, budgets orchestrator.Budgets, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{store: st, coordinator: c, budgets: budgets, log: log}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/metrics/scraping", gin.WrapH(metrics.ScrapingHandler()))
	engine.POST("/scrape/brand/:id", s.handleScrapeBrand)

	s.engine = engine
	return s
}

// Handler returns the http.Handler to mount on an *http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleScrapeBrand triggers a synchronous scrape for one brand, per spec
// §4.11: 202 on success, 404 for an unknown brand, 409 if it is already
// being scraped.
func (s *Server) handleScrapeBrand(c *gin.Context) {
	brandID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid brand id"})
		return
	}

	if _, err := s.store.GetBrand(c.Request.Context(), brandID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "brand not found"})
			return
		}
		s.log.Error("get brand", "brand_id", brandID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	runID, inserted, err := s.coordinator.Run(c.Request.Context(), brandID, coordinator.TriggerAPI, s.budgets)
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			started, startedErr := s.runningSince(c.Request.Context(), brandID)
			if startedErr != nil {
				s.log.Error("get brand", "brand_id", brandID, "error", startedErr)
			}
			c.JSON(http.StatusConflict, gin.H{"error": "scrape already in progress", "started_at": started})
			return
		}
		s.log.Error("scrape brand", "brand_id", brandID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scrape failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"brand_id": brandID, "run_id": runID, "mentions_inserted": inserted})
}

// runningSince fetches the started-at timestamp of a brand's in-progress
// run, for the 409 response spec §7/§8 scenario 4 require.
func (s *Server) runningSince(ctx context.Context, brandID int64) (*time.Time, error) {
	brand, err := s.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	return brand.ScrapeStartedAt, nil
}
