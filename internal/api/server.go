package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/config"
	"github.com/dharsanguruparan/photosearch/internal/ingest"
	"github.com/dharsanguruparan/photosearch/internal/metrics"
	"github.com/dharsanguruparan/photosearch/internal/query"
	"github.com/dharsanguruparan/photosearch/internal/queue"
)

// Searcher runs the query pipeline.
type Searcher interface {
	Handle(ctx context.Context, ev query.Event, sessionID string) query.Response
}

// PhotoStore is the object storage used for uploads and photo links.
type PhotoStore interface {
	Bucket() string
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType, customLabels string) error
	PresignURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Server exposes the search, upload and notification endpoints.
type Server struct {
	cfg    *config.Config
	search Searcher
	store  PhotoStore
	queue  queue.Enqueuer
	logger *zap.Logger
	server *http.Server
}

// New constructs a Server.
func New(cfg *config.Config, search Searcher, store PhotoStore, queueClient queue.Enqueuer, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		search: search,
		store:  store,
		queue:  queueClient,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(corsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/search", s.handleSearchGet)
	r.Post("/search", s.handleSearchPost)
	r.Put("/photos", s.handleUpload)
	r.Get("/photos/url", s.handlePhotoURL)
	r.Post("/events", s.handleEvents)
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("address", s.cfg.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	ev := query.Event{}
	if q := r.URL.Query(); q.Has("q") {
		ev.QueryStringParameters = map[string]string{"q": q.Get("q")}
	}
	s.writeQuery(w, r, ev)
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var ev query.Event
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&ev); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	s.writeQuery(w, r, ev)
}

func (s *Server) writeQuery(w http.ResponseWriter, r *http.Request, ev query.Event) {
	resp := s.search.Handle(r.Context(), ev, sessionID(r))
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	respondJSON(w, resp.StatusCode, resp.Body, s.logger)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	objectKey := r.URL.Query().Get("objectKey")
	if objectKey == "" {
		objectKey = "upload-" + uuid.NewString()
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	tmp, err := persistTemp(r.Body, s.cfg.MaxFileSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()
	if !allowedType(s.cfg.AllowedTypes, tmp.contentType) {
		http.Error(w, fmt.Sprintf("content type %s not allowed", tmp.contentType), http.StatusUnsupportedMediaType)
		return
	}
	customLabels := r.Header.Get("x-amz-meta-customLabels")
	if err := s.store.Upload(ctx, objectKey, tmp.f, tmp.size, tmp.contentType, customLabels); err != nil {
		s.logger.Error("upload to storage failed", zap.String("key", objectKey), zap.Error(err))
		http.Error(w, "failed to store photo", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"bucket":    s.store.Bucket(),
		"objectKey": objectKey,
	}, s.logger)
}

func (s *Server) handlePhotoURL(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	key := r.URL.Query().Get("objectKey")
	if key == "" {
		http.Error(w, "missing objectKey", http.StatusBadRequest)
		return
	}
	if bucket == "" {
		bucket = s.store.Bucket()
	}
	url, err := s.store.PresignURL(r.Context(), bucket, key, s.cfg.SignedURLTTL)
	if err != nil {
		s.logger.Error("presign failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url}, s.logger)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var batch ingest.Batch
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&batch); err != nil {
		http.Error(w, "invalid event notification", http.StatusBadRequest)
		return
	}
	if err := queue.EnqueueIndex(r.Context(), s.queue, batch); err != nil {
		s.logger.Error("enqueue index task failed", zap.Int("records", len(batch.Records)), zap.Error(err))
		http.Error(w, "failed to queue notification", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"queued": len(batch.Records)}, s.logger)
}

// sessionID scopes disambiguation to the caller when it sends X-Session-Id,
// otherwise to the request.
func sessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-Id"); id != "" {
		return id
	}
	if id := chiMiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

func allowedType(allowed []string, contentType string) bool {
	for _, a := range allowed {
		if a == contentType {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode response", zap.Error(err))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Session-Id,x-amz-meta-customLabels")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}
