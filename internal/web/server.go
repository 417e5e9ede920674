// Package web implements the HTTP server and datastar-backed dashboard for
// the marketplace client. It serves the page, pushes re-rendered market
// fragments over SSE after every sync cycle, and mounts the JSON API.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"propmarket.dapp/pmc/internal/api"
	"propmarket.dapp/pmc/internal/docs"
	"propmarket.dapp/pmc/internal/logger"
	"propmarket.dapp/pmc/internal/types"
	"propmarket.dapp/pmc/internal/view"
)

// Market is the session behind the dashboard.
type Market interface {
	api.Market
	Updates() <-chan struct{}
}

// Options configures a Server.
type Options struct {
	Market         Market
	Logger         *logger.Logger
	Docs           *docs.Service
	Log            *slog.Logger
	AllowedOrigins []string
}

// Server is the web server for the dashboard and API.
type Server struct {
	market     Market
	logger     *logger.Logger
	log        *slog.Logger
	templates  *view.Templates
	sseBroker  *sseBroker
	apiService *api.Service
	docService *docs.Service
	router     chi.Router
}

// NewServer creates a new web server.
func NewServer(opts Options) (*Server, error) {
	templates, err := view.ParseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Docs == nil {
		opts.Docs = docs.NewService("")
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		market:     opts.Market,
		logger:     opts.Logger,
		log:        opts.Log,
		templates:  templates,
		sseBroker:  newSSEBroker(),
		apiService: api.NewService(opts.Market, opts.Logger),
		docService: opts.Docs,
	}
	s.router = s.routes(opts.AllowedOrigins)
	return s, nil
}

func (s *Server) routes(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, LoggerMiddleware(s.log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		MaxAge:         300,
	}))

	// Page routes
	r.Get("/", s.handlePageLoad)
	r.Get("/views/market", s.handleMarketView)
	r.Get("/views/docs", s.handleDocsView)
	r.Get("/market/stream", s.handleMarketStream)

	// Form actions
	r.Post("/actions/refresh", s.handleRefreshAction)
	r.Post("/actions/buy/{id}", s.handleBuyAction)
	r.Post("/actions/rent/{id}", s.handleRentAction)
	r.Post("/actions/edit/{id}", s.handleEditAction)
	r.Post("/actions/list", s.handleListAction)

	r.Route("/api", s.apiService.Routes)

	r.Get("/ws/status", s.handleStatusWS)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on addr and the update fan-out until ctx is done.
// The returned channel receives the listener's terminal error.
func (s *Server) Start(ctx context.Context, addr string) <-chan error {
	s.log.Info("web UI starting", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)

	go s.watchMarketUpdates(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
		close(errCh)
	}()

	return errCh
}

// page assembles template data from the current session.
func (s *Server) page() view.Page {
	p := view.Page{
		Version:   types.Version,
		BuildTime: types.BuildTime,
		Viewer:    s.market.Viewer(),
		State:     string(s.market.State()),
	}
	if snap := s.market.Snapshot(); snap != nil {
		p.Owned = snap.OwnedViews
		p.Public = snap.PublicViews
		p.SyncedAt = snap.SyncedAt
	}
	if err := s.market.LastError(); err != nil {
		p.Error = err.Error()
	}
	return p
}

func (s *Server) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, s.page())
}

func (s *Server) renderPage(w http.ResponseWriter, status int, p view.Page) {
	var buf bytes.Buffer
	if err := s.templates.Page(&buf, p); err != nil {
		s.log.Error("render page", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.setCacheHeaders(w)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleMarketView(w http.ResponseWriter, r *http.Request) {
	data, err := s.renderMarketFragment()
	if err != nil {
		s.log.Error("render market view", "error", err)
		http.Error(w, "Failed to render view", http.StatusInternalServerError)
		return
	}
	s.writeEventStreamHeaders(w)
	w.Write(data)
}

func (s *Server) handleDocsView(w http.ResponseWriter, r *http.Request) {
	docName := r.URL.Query().Get("doc")
	docList, err := s.docService.ListDocs()
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to list docs: %v", err))
	}
	if docName == "" && len(docList) > 0 {
		docName = docList[0]
	}

	p := s.page()
	p.ShowDocs = true
	p.DocList = docList
	p.CurrentDoc = docName
	if docName != "" {
		content, err := s.docService.GetDoc(r.Context(), docName)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Failed to load doc %s: %v", docName, err))
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		p.DocContent = template.HTML(content)
	}
	s.renderPage(w, http.StatusOK, p)
}

func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
