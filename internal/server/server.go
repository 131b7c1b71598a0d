//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

const defaultAwaitTimeout = 2 * time.Second

// Actions are the row commands behind the per-row menus.
type Actions interface {
	Delete(ctx context.Context, collection, id string) error
	MarkAsSent(ctx context.Context, id string) error
	Track(ctx context.Context, id string) error
	Send(ctx context.Context, collection, id string, channel returns.Channel) error
	Upload(ctx context.Context, collection, id, filename, contentType string, body io.Reader, size int64) (string, error)
	DownloadURL(ctx context.Context, collection, id string) (string, error)
	AttachNew(ctx context.Context, requestID string) (string, error)
	AttachExisting(ctx context.Context, requestID, orderDocID string) error
	History(ctx context.Context, orderDocID string) ([]storage.HistoryEntry, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions *cache.SessionCache[*dashboard.Session]
	Actions  Actions
	Health   Pinger
	Audit    *AuditManager
	Logger   *zap.Logger

	// AwaitTimeout bounds how long a page render waits for in-flight
	// queries before rendering the current state.
	AwaitTimeout time.Duration
}

type Server struct {
	sessions     *cache.SessionCache[*dashboard.Session]
	actions      Actions
	health       Pinger
	audit        *AuditManager
	logger       *zap.Logger
	awaitTimeout time.Duration
	pages        *renderer

	server *http.Server
}

func New(deps Deps) *Server {
	timeout := deps.AwaitTimeout
	if timeout <= 0 {
		timeout = defaultAwaitTimeout
	}
	return &Server{
		sessions:     deps.Sessions,
		actions:      deps.Actions,
		health:       deps.Health,
		audit:        deps.Audit,
		logger:       deps.Logger.With(zap.String("component", "http")),
		awaitTimeout: timeout,
		pages:        newRenderer(),
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if s.audit != nil {
		s.audit.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http server shutdown completed")

	if s.audit != nil {
		s.audit.Shutdown(ctx)
	}
	s.sessions.Close()
	s.logger.Info("server shutdown completed")
	return nil
}

func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/returns", http.StatusFound)
	}).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name("health")
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	ui := router.NewRoute().Subrouter()
	ui.Use(s.sessionMiddleware, s.auditLogMiddleware)

	ui.HandleFunc("/returns", s.handlePage).Methods(http.MethodGet).Name("page")
	ui.HandleFunc("/api/returns/{tab}", s.handleProjection).Methods(http.MethodGet).Name("projection")

	ui.HandleFunc("/returns/tab/{tab}", s.handleSelectTab).Methods(http.MethodPost).Name("select_tab")
	ui.HandleFunc("/returns/nav/collapse", s.handleCollapse).Methods(http.MethodPost).Name("collapse_nav")

	ui.HandleFunc("/returns/order/filter/{status}", s.handleQuickFilter).Methods(http.MethodPost).Name("quick_filter")
	ui.HandleFunc("/returns/order/rows/{id}/mark-sent", s.handleMarkAsSent).Methods(http.MethodPost).Name("mark_sent")
	ui.HandleFunc("/returns/order/rows/{id}/track", s.handleTrack).Methods(http.MethodPost).Name("track")
	ui.HandleFunc("/returns/order/rows/{id}/history", s.handleHistory).Methods(http.MethodGet).Name("history")
	ui.HandleFunc("/returns/requests/rows/{id}/attach", s.handleAttach).Methods(http.MethodPost).Name("attach")

	ui.HandleFunc("/returns/{tab}/search", s.handleSearch).Methods(http.MethodPost).Name("search")
	ui.HandleFunc("/returns/{tab}/suggestions", s.handleSuggestions).Methods(http.MethodGet).Name("suggestions")
	ui.HandleFunc("/returns/{tab}/suggestions/pick", s.handlePickSuggestion).Methods(http.MethodPost).Name("pick_suggestion")
	ui.HandleFunc("/returns/{tab}/sort/{field}", s.handleSort).Methods(http.MethodPost).Name("sort")
	ui.HandleFunc("/returns/{tab}/select-all", s.handleSelectAll).Methods(http.MethodPost).Name("select_all")
	ui.HandleFunc("/returns/{tab}/select/{id}", s.handleSelectRow).Methods(http.MethodPost).Name("select_row")
	ui.HandleFunc("/returns/{tab}/menu/{id}", s.handleMenu).Methods(http.MethodPost).Name("toggle_menu")
	ui.HandleFunc("/returns/{tab}/notice/dismiss", s.handleDismissNotice).Methods(http.MethodPost).Name("dismiss_notice")
	ui.HandleFunc("/returns/{tab}/refresh", s.handleRefresh).Methods(http.MethodPost).Name("refresh")
	ui.HandleFunc("/returns/{tab}/rows/{id}/actions/{action}", s.handleRowAction).Methods(http.MethodPost).Name("row_action")

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			respondError(w, http.StatusServiceUnavailable, "document store unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
