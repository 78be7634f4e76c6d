package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/ingest"
	"github.com/engagestack/engagement-intel/internal/repo"
)

type commit struct {
	RequestID    string    `json:"request_id"`
	NotebookPath string    `json:"notebook_path"`
	Markdown     string    `json:"markdown"`
	ReceivedAt   time.Time `json:"received_at"`
}

// backend serves the dashboard document built from a local sample file and
// records notebook commits in memory.
type backend struct {
	source     *repo.FileSource
	decoder    *ingest.Decoder
	aggregator *engine.Aggregator
	failCommit bool

	mu      sync.Mutex
	commits []commit
}

func newBackend(dataPath string, failCommit bool) (*backend, error) {
	decoder, err := ingest.NewDecoder(nil)
	if err != nil {
		return nil, err
	}
	aggregator, err := engine.NewAggregator(engine.DefaultThresholds())
	if err != nil {
		return nil, err
	}
	return &backend{
		source:     repo.NewFileSource(dataPath),
		decoder:    decoder,
		aggregator: aggregator,
		failCommit: failCommit,
	}, nil
}

func (b *backend) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": "mock"})
	})
	mux.HandleFunc("GET /api/dashboard/data", b.dashboardData)
	mux.HandleFunc("GET /api/engagements/recent", b.recentEngagements)
	mux.HandleFunc("POST /api/notebooks/commit", b.commitNotebook)
	mux.HandleFunc("GET /api/notebooks/commits", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.commits)
	})
	return mux
}

func (b *backend) dashboardData(w http.ResponseWriter, r *http.Request) {
	payload, err := b.source.FetchPayload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	res := b.decoder.Decode(b.source.Name(), payload.Engagements)
	views := b.aggregator.Aggregate(res.Snapshot)

	payload.ServerAggregates = engine.ServerAggregatesOf(views)
	if payload.Summary == "" {
		payload.Summary = "No summary available"
	}
	payload.WeeklySummary = ""
	writeJSON(w, http.StatusOK, payload)
}

func (b *backend) recentEngagements(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	size, err := queryInt(r, "page_size", engine.DefaultPageSize)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	payload, err := b.source.FetchPayload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	res := b.decoder.Decode(b.source.Name(), payload.Engagements)
	writeJSON(w, http.StatusOK, engine.Page(res.Snapshot.Engagements(), page, size))
}

func (b *backend) commitNotebook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotebookPath string `json:"notebook_path"`
		Markdown     string `json:"markdown"`
		RequestID    string `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NotebookPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "notebook_path and markdown are required"})
		return
	}
	if b.failCommit {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "notebook store offline"})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	b.mu.Lock()
	b.commits = append(b.commits, commit{RequestID: req.RequestID, NotebookPath: req.NotebookPath, Markdown: req.Markdown, ReceivedAt: time.Now().UTC()})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "committed", "message": "Report saved to " + req.NotebookPath})
}

func main() {
	var addr, dataPath string
	var failCommit bool
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.StringVar(&dataPath, "data", "sample_data/engagements_sample.json", "engagement sample file")
	flag.BoolVar(&failCommit, "fail-commit", false, "reject every notebook commit")
	flag.Parse()

	logger := log.New(log.Writer(), "backend-mock ", log.LstdFlags|log.Lmicroseconds)
	b, err := newBackend(dataPath, failCommit)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, b.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s serving %s", addr, dataPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("server error: %v", err)
		os.Exit(1)
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
