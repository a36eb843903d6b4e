package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/NewsGrade/internal/digest"
	"github.com/TobiSchelling/NewsGrade/internal/gateway"
	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// NewsService returns graded news for a request.
type NewsService interface {
	News(ctx context.Context, req gateway.Request) ([]news.Item, error)
}

// Server is the HTTP server for the news API and digest pages.
type Server struct {
	svc        NewsService
	categories []string
	pages      map[string]*template.Template
	mux        *http.ServeMux
}

type newsResponse struct {
	Items []news.Item `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Error string      `json:"error,omitempty"`
}

// New creates a new Server.
func New(svc NewsService, categories []string) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "digest.html"}
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

	s := &Server{svc: svc, categories: categories, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/news/{category}", s.handleNews)
	s.mux.HandleFunc("GET /digest/{category}", s.handleDigest)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", map[string]any{
		"Categories": s.categories,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePositive(q.Get("page"), defaultPage)
	limit := parsePositive(q.Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	var grade sentiment.Grade
	if raw := q.Get("grade"); raw != "" {
		g, err := sentiment.ParseGrade(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, newsResponse{Items: []news.Item{}, Page: page, Limit: limit, Error: err.Error()})
			return
		}
		grade = g
	}

	items, err := s.svc.News(r.Context(), gateway.Request{
		Category: r.PathValue("category"),
		Region:   q.Get("region"),
		Search:   q.Get("q"),
	})
	if errors.Is(err, gateway.ErrUnknownCategory) {
		writeJSON(w, http.StatusNotFound, newsResponse{Items: []news.Item{}, Page: page, Limit: limit, Error: err.Error()})
		return
	}
	if err != nil {
		log.Printf("News request for %s failed: %v", r.PathValue("category"), err)
		writeJSON(w, http.StatusInternalServerError, newsResponse{Items: []news.Item{}, Page: defaultPage, Limit: defaultLimit, Error: "failed to fetch news"})
		return
	}

	if grade != "" {
		filtered := items[:0:0]
		for _, it := range items {
			if it.Grade == grade {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	writeJSON(w, http.StatusOK, newsResponse{
		Items: paginate(items, page, limit),
		Total: len(items),
		Page:  page,
		Limit: limit,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	region := r.URL.Query().Get("region")

	items, err := s.svc.News(r.Context(), gateway.Request{Category: category, Region: region})
	if errors.Is(err, gateway.ErrUnknownCategory) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Digest for %s failed: %v", category, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	d := digest.Compose(category, region, items)
	s.render(w, "digest.html", map[string]any{
		"Digest":   d,
		"Category": category,
		"Region":   region,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func parsePositive(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func paginate(items []news.Item, page, limit int) []news.Item {
	start := (page - 1) * limit
	if start < 0 || start >= len(items) {
		return []news.Item{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Serve starts the HTTP server on the given port.
func Serve(svc NewsService, categories []string, port int) error {
	srv, err := New(svc, categories)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Server listening on http://%s", addr)
	return httpServer.ListenAndServe()
}
