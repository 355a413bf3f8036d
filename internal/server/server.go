// internal/server/server.go

// Package server expone el motor por HTTP: ciclo de vida de escaneos con
// su feed de terminal, inventario de subdominios, catálogo de
// herramientas, settings, sondeo de liveness y exportación.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/core/usecases"
	"github.com/lcalzada-xor/subsentry/internal/platform/control"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
)

// Server es la capa HTTP sobre el motor de escaneos.
type Server struct {
	store   ports.Store
	seq     *usecases.Sequencer
	probes  *usecases.ProbeService
	control *control.Controller
	output  *termlog.Broadcaster
	logger  logx.Logger
	engine  *gin.Engine
}

// Options configura el servidor HTTP. Todos los colaboradores son
// obligatorios: el servidor no arranca motor propio.
type Options struct {
	Store     ports.Store
	Sequencer *usecases.Sequencer
	Probes    *usecases.ProbeService
	Control   *control.Controller
	Output    *termlog.Broadcaster
	Logger    logx.Logger
}

// New crea el servidor y monta sus rutas.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	s := &Server{
		store:   opts.Store,
		seq:     opts.Sequencer,
		probes:  opts.Probes,
		control: opts.Control,
		output:  opts.Output,
		logger:  opts.Logger.With("component", "http"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes(engine)
	s.engine = engine
	return s
}

// Handler retorna el http.Handler montado, útil para tests con httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run atiende en addr hasta que el contexto se cancela; entonces apaga con
// gracia dejando terminar las peticiones en vuelo.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "serving on %s", addr)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down http server")
		}
		<-errCh
		s.logger.Info("http server stopped")
		return nil
	}
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.POST("/scans", s.createScan)
		api.GET("/scans", s.listScans)
		api.GET("/scans/:id", s.getScan)
		api.DELETE("/scans/:id", s.deleteScan)
		api.POST("/scans/:id/stop", s.stopScan)
		api.GET("/scans/:id/terminal", s.scanTerminal)
		api.GET("/scans/:id/subdomains", s.scanSubdomains)

		api.GET("/subdomains", s.listSubdomains)
		api.POST("/subdomains/:id/probe", s.probeSubdomain)

		api.GET("/tools", s.listTools)
		api.GET("/tools/api-keys", s.listAPIKeys)
		api.GET("/tools/:name", s.getTool)
		api.PUT("/tools/:name", s.updateTool)
		api.POST("/tools/:name/toggle", s.toggleTool)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.POST("/probe", s.probeBatch)
		api.GET("/probe-jobs", s.listProbeJobs)
		api.GET("/probe-jobs/:id", s.getProbeJob)
		api.DELETE("/probe-jobs/:id", s.deleteProbeJob)

		api.GET("/export/subdomains", s.exportSubdomains)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger deja una línea por petición atendida.
func requestLogger(logger logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// fail responde un error JSON con el código dado.
func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// notFoundOr responde 404 para errores not-found y 500 para el resto.
func (s *Server) notFoundOr(c *gin.Context, err error, notFoundMsg string) {
	if errors.IsNotFound(err) {
		fail(c, http.StatusNotFound, notFoundMsg)
		return
	}
	s.logger.Err(err, "handler", c.FullPath())
	fail(c, http.StatusInternalServerError, err.Error())
}

// pathID parsea el parámetro :id de la ruta como uint.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// queryInt lee un query param entero con valor por defecto.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
