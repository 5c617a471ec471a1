// Package server exposes the companion HTTP API and an HTML dashboard.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/metrics"
	"github.com/TobiSchelling/SocialAgent/internal/oauth"
	"github.com/TobiSchelling/SocialAgent/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// DefaultCORSOrigins are the local front-end dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Options configures a Server. OAuth and Metrics may be nil.
type Options struct {
	OAuth       *oauth.Manager
	Metrics     *metrics.Metrics
	UserID      string
	CORSOrigins []string
	AccessLog   io.Writer
}

// Server is the HTTP server for the API and dashboard.
type Server struct {
	db      *database.DB
	svc     *service.Service
	auth    *oauth.Manager
	metrics *metrics.Metrics
	userID  string
	pages   map[string]*template.Template
	router  *mux.Router
	handler http.Handler
}

// New creates a new Server.
func New(db *database.DB, svc *service.Service, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"join":     strings.Join,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "idea.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:      db,
		svc:     svc,
		auth:    opts.OAuth,
		metrics: opts.Metrics,
		userID:  opts.UserID,
		pages:   pages,
		router:  mux.NewRouter(),
	}
	if s.userID == "" {
		s.userID = "demo-user"
	}
	s.routes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}
	var h http.Handler = s.router
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	s.handler = h
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.observe)

	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/trends/refresh", s.handleRefreshTrends).Methods("POST")
	api.HandleFunc("/trends", s.handleListTrends).Methods("GET")
	api.HandleFunc("/ideas/generate", s.handleGenerateIdeas).Methods("POST")
	api.HandleFunc("/ideas", s.handleListIdeas).Methods("GET")
	api.HandleFunc("/ideas/{id:[0-9]+}", s.handleGetIdea).Methods("GET")
	api.HandleFunc("/ideas/{id:[0-9]+}/approve", s.handleApproveIdea).Methods("POST")
	api.HandleFunc("/schedule", s.handleCreateSchedule).Methods("POST")
	api.HandleFunc("/schedule", s.handleListSchedule).Methods("GET")
	api.HandleFunc("/publisher/run", s.handleRunPublisher).Methods("POST")
	api.HandleFunc("/analytics/refresh", s.handleRefreshAnalytics).Methods("POST")
	api.HandleFunc("/analytics", s.handleListAnalytics).Methods("GET")
	api.HandleFunc("/analytics/posts/{id:[0-9]+}", s.handlePostHistory).Methods("GET")
	api.HandleFunc("/brand", s.handleGetBrand).Methods("GET")
	api.HandleFunc("/brand", s.handleUpdateBrand).Methods("PUT")
	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods("DELETE")

	r.HandleFunc("/auth/{platform}/login", s.handleLogin).Methods("GET")
	r.HandleFunc("/auth/{platform}/callback", s.handleCallback).Methods("GET")

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/ideas/{id:[0-9]+}", s.handleIdeaPage).Methods("GET")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records request metrics under the matched route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := ""
		if cr := mux.CurrentRoute(r); cr != nil {
			route, _ = cr.GetPathTemplate()
		}
		s.metrics.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	lastRun, _ := s.db.GetLastRun()
	ideas, _ := s.db.ListIdeas("", 10, 0)
	entries, _ := s.db.ListSchedule("")
	if len(entries) > 20 {
		entries = entries[:20]
	}

	s.render(w, "index.html", map[string]any{
		"Stats":    stats,
		"LastRun":  lastRun,
		"Ideas":    ideas,
		"Schedule": entries,
	})
}

func (s *Server) handleIdeaPage(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	idea, err := s.db.GetIdea(id)
	if errors.Is(err, database.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		s.render(w, "idea.html", map[string]any{"Idea": nil})
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	items, _ := s.db.GetIdeaContent(id)
	entries, _ := s.ideaSchedule(id)

	s.render(w, "idea.html", map[string]any{
		"Idea":     idea,
		"Content":  items,
		"Schedule": entries,
	})
}

func (s *Server) ideaSchedule(id int64) ([]database.ScheduleEntry, error) {
	all, err := s.db.ListSchedule("")
	if err != nil {
		return nil, err
	}
	out := []database.ScheduleEntry{}
	for _, e := range all {
		if e.IdeaID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on 127.0.0.1:port until ctx is canceled.
func Serve(ctx context.Context, srv *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
