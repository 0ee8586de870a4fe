// Package review serves baselines and artifacts over HTTP so failed
// comparisons can be inspected and approved from a browser.
package review

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snapvis/pkg/snapshot"
	"snapvis/pkg/visualtest"
)

// Options wires the server to the snapshot stores.
type Options struct {
	Dir        *snapshot.Dir
	Artifacts  *snapshot.Artifacts
	Comparator *visualtest.Comparator
	// Index is optional; when set its metadata is included in listings.
	Index  *snapshot.Index
	Logger *slog.Logger
}

// Snapshot is one row of the listing.
type Snapshot struct {
	Name   snapshot.Name   `json:"name"`
	Actual bool            `json:"actual"`
	Diff   bool            `json:"diff"`
	Entry  *snapshot.Entry `json:"entry,omitempty"`
}

// Server is the review HTTP handler.
type Server struct {
	opts   Options
	logger *slog.Logger
	router *chi.Mux
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Route("/api/snapshots", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{name}/{kind}", s.handleImage)
		r.Post("/{name}/approve", s.handleApprove)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("review server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) snapshots(ctx context.Context) ([]Snapshot, error) {
	names, err := s.opts.Dir.List()
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(names))
	for _, n := range names {
		row := Snapshot{
			Name:   n,
			Actual: snapshot.Has(s.opts.Artifacts.ActualPath(n)),
			Diff:   snapshot.Has(s.opts.Artifacts.DiffPath(n)),
		}
		if s.opts.Index != nil {
			if e, err := s.opts.Index.Get(ctx, n); err == nil {
				row.Entry = e
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.snapshots(r.Context())
	if err != nil {
		s.logger.Error("list snapshots", "error", err)
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// pathName returns the {name} URL parameter if it is already normalized.
func pathName(r *http.Request) (snapshot.Name, bool) {
	raw := chi.URLParam(r, "name")
	if raw == "" || snapshot.Normalize(raw) != raw {
		return "", false
	}
	return snapshot.Name(raw), true
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(r)
	if !ok {
		http.Error(w, "invalid snapshot name", http.StatusBadRequest)
		return
	}

	var path string
	switch chi.URLParam(r, "kind") {
	case "baseline":
		path = s.opts.Dir.Path(name)
	case "actual":
		path = s.opts.Artifacts.ActualPath(name)
	case "diff":
		path = s.opts.Artifacts.DiffPath(name)
	default:
		http.Error(w, "kind must be baseline, actual or diff", http.StatusBadRequest)
		return
	}
	if !snapshot.Has(path) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(r)
	if !ok {
		http.Error(w, "invalid snapshot name", http.StatusBadRequest)
		return
	}
	v, err := s.opts.Comparator.Approve(name)
	switch {
	case visualtest.IsCode(err, visualtest.CodeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case visualtest.IsCode(err, visualtest.CodeDecode):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		s.logger.Error("approve", "name", string(name), "error", err)
		http.Error(w, "approve failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>snapvis review</title>
<style>
body{font-family:sans-serif;margin:2em}
.row{border-bottom:1px solid #ddd;padding:1em 0}
.row img{max-width:30%;margin-right:1%;border:1px solid #ccc;vertical-align:top}
.fail{color:#b00}
</style></head><body>
<h1>Snapshots</h1>
{{range .}}<div class="row">
<h2 {{if .Diff}}class="fail"{{end}}>{{.Name}}</h2>
<img src="/api/snapshots/{{.Name}}/baseline" alt="baseline">
{{if .Actual}}<img src="/api/snapshots/{{.Name}}/actual" alt="actual">{{end}}
{{if .Diff}}<img src="/api/snapshots/{{.Name}}/diff" alt="diff">
<form method="post" action="/api/snapshots/{{.Name}}/approve"><button>Approve</button></form>{{end}}
</div>{{else}}<p>No baselines yet.</p>{{end}}
</body></html>`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, err := s.snapshots(r.Context())
	if err != nil {
		s.logger.Error("list snapshots", "error", err)
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, rows); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
