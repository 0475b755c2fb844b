// Package server exposes evaluations, the violation ledger and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/violation"
)

// #region collaborators

// Evaluator runs one evaluation. orchestrator.Orchestrator satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, req orchestrator.Request) (orchestrator.Outcome, error)
}

// PersonaLister lists the configured personas. persona.Registry satisfies it.
type PersonaLister interface {
	List() []persona.Persona
}

// PointLister reads the durable ledger. violation.Store satisfies it.
type PointLister interface {
	List(limit int) ([]violation.Point, error)
}

// #endregion collaborators

// #region types

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// #endregion types

// #region handlers

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	evaluator Evaluator
	personas  PersonaLister
	ledger    *violation.Map
	store     PointLister
	log       zerolog.Logger
}

// NewHandlers creates handlers. store may be nil, in which case exports read
// the in-memory ledger only.
func NewHandlers(evaluator Evaluator, personas PersonaLister, ledger *violation.Map, store PointLister, log zerolog.Logger) *Handlers {
	if ledger == nil {
		ledger = violation.NewMap()
	}
	return &Handlers{
		evaluator: evaluator,
		personas:  personas,
		ledger:    ledger,
		store:     store,
		log:       log.With().Str("component", "server").Logger(),
	}
}

// HandleEvaluate evaluates one utterance.
//
//	200 OK: orchestrator.Outcome
//	400 Bad Request: malformed or invalid request
//	404 Not Found: unknown persona
//	502 Bad Gateway: embedding or generation backend failed
func (h *Handlers) HandleEvaluate(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	out, err := h.evaluator.Evaluate(c.Request.Context(), req)
	if err != nil {
		status, code := http.StatusInternalServerError, "EVALUATION_FAILED"
		switch {
		case errors.Is(err, orchestrator.ErrInvalidRequest):
			status, code = http.StatusBadRequest, "INVALID_REQUEST"
		case errors.Is(err, orchestrator.ErrUnknownPersona):
			status, code = http.StatusNotFound, "UNKNOWN_PERSONA"
		case errors.Is(err, provider.ErrProviderFailure):
			status, code = http.StatusBadGateway, "PROVIDER_FAILURE"
		}
		h.log.Error().Err(err).Str("persona", req.PersonaID).Msg("evaluation failed")
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleExport returns the violation export. ?source=store reads the durable
// ledger instead of the in-memory map.
func (h *Handlers) HandleExport(c *gin.Context) {
	if c.Query("source") != "store" {
		c.JSON(http.StatusOK, h.ledger.Export())
		return
	}
	if h.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no durable ledger configured", Code: "NO_STORE"})
		return
	}
	points, err := h.store.List(0)
	if err != nil {
		h.log.Error().Err(err).Msg("list points failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, violation.Summarize(points))
}

// HandlePersonas lists the configured personas.
func (h *Handlers) HandlePersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": h.personas.List()})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// #endregion handlers

// #region routes

// NewRouter builds the engine. gatherer may be nil to omit /metrics.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", h.HandleHealth)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/evaluate", h.HandleEvaluate)
	v1.GET("/violations/export", h.HandleExport)
	v1.GET("/personas", h.HandlePersonas)
	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// #endregion routes

// #region serve

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// #endregion serve
