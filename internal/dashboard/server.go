// Package dashboard serves the operator HTTP API: bot control, channel and
// record editing, stats, report requests and live logs.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/logger"
	"github.com/Dev-PGVAA/tg-group-bot/internal/metrics"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
	"github.com/Dev-PGVAA/tg-group-bot/internal/supervisor"
)

// BotController is the supervisor surface the API drives.
type BotController interface {
	List() []supervisor.BotStatus
	Control(ctx context.Context, name, action string) (supervisor.Result, error)
	Tail(name string, n int) ([]string, error)
	LogDir() string
}

// DataStore is the store surface the API edits.
type DataStore interface {
	Channels(ctx context.Context) []string
	AddChannel(ctx context.Context, id string) (string, store.Outcome)
	RemoveChannel(ctx context.Context, id string) (string, store.Outcome)
	RenameChannel(ctx context.Context, oldID, newID string) (string, store.Outcome)
	AggregateStats(ctx context.Context) []store.ChannelStat
	Records(ctx context.Context) []store.Record
	AddRecord(ctx context.Context, rec store.Record) store.Outcome
	UpdateRecord(ctx context.Context, index int, rec store.Record) store.Outcome
	DeleteRecord(ctx context.Context, index int) store.Outcome
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     *config.Config
	bots    BotController
	store   DataStore
	metrics metrics.Provider
	logger  *slog.Logger
	engine  *gin.Engine
	http    *http.Server
}

// New builds the router. m may be nil.
func New(cfg *config.Config, bots BotController, st DataStore, m metrics.Provider, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Noop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		bots:    bots,
		store:   st,
		metrics: m,
		logger:  log.With("component", "dashboard"),
		engine:  gin.New(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Dashboard.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), requestID(), logger.GinMiddleware(s.logger), s.observe())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if s.cfg.Dashboard.Metrics {
		if h := metrics.Handler(s.metrics); h != nil {
			r.GET("/metrics", gin.WrapH(h))
		}
	}

	api := r.Group("/api")
	api.GET("/bots", s.listBots)
	api.POST("/bots/:action", s.controlBot)
	api.GET("/bots/:name/tail", s.tailBot)

	api.GET("/channels", s.listChannels)
	api.POST("/channels/add", s.addChannel)
	api.POST("/channels/delete", s.deleteChannel)
	api.POST("/channels/edit", s.editChannel)

	api.GET("/stats", s.stats)

	api.GET("/records", s.listRecords)
	api.POST("/records/add", s.addRecord)
	api.POST("/records/delete", s.deleteRecord)
	api.POST("/records/edit", s.editRecord)

	api.POST("/reports/trigger", s.triggerReport)

	api.GET("/logs", s.listLogs)
	api.GET("/logs/:file", s.readLog)
	api.GET("/logs/:file/stream", s.streamLog)
}

// Run serves until ctx is done, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	s.logger.Info("Dashboard stopped")
	return nil
}

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": "error", "message": msg})
}
