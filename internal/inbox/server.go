package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/delegate"
)

// MaxSnapshotBytes bounds the request body of a POST.
const MaxSnapshotBytes = 32 << 20

// Config configures a Server.
type Config struct {
	// Dir receives one PNG per snapshot.
	Dir string
	// ForwardURL, when set, receives every accepted snapshot.
	ForwardURL string
	Params     annotation.Params
	Logger     *slog.Logger
	// Now overrides the clock.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "snapshots"
	}
	c.Params = c.Params.Normalize()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Server handles the snapshot API.
type Server struct {
	cfg     Config
	store   *Store
	forward *delegate.Client
}

// NewServer returns a Server storing into store.
func NewServer(store *Store, cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg, store: store}
	if cfg.ForwardURL != "" {
		s.forward = delegate.NewClient(cfg.ForwardURL, cfg.Logger)
	}
	return s
}

// RegisterHTTP registers the snapshot routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Post("/api/snapshots", s.handleCreate)
	r.Get("/api/snapshots", s.handleList)
	r.Get("/api/snapshots/{id}", s.handleGet)
	r.Get("/api/snapshots/{id}/screenshot.png", s.handleScreenshot)
}

// Handler returns a router with the snapshot routes and standard middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

type createResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Routed  bool   `json:"routed"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSnapshotBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, createResponse{Error: "read body: " + err.Error()})
		return
	}
	if len(body) > MaxSnapshotBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, createResponse{Error: "snapshot too large"})
		return
	}
	var snap annotation.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		writeJSON(w, http.StatusBadRequest, createResponse{Error: "decode snapshot: " + err.Error()})
		return
	}
	pngData, err := validate(snap, s.cfg.Params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, createResponse{Error: err.Error()})
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.cfg.Dir, id+".png")
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		s.fail(w, "create snapshot dir", err)
		return
	}
	if err := os.WriteFile(path, pngData, 0o644); err != nil {
		s.fail(w, "write screenshot", err)
		return
	}
	rec := Record{
		ID:              id,
		URL:             snap.URL,
		Title:           snap.Title,
		Timestamp:       snap.Timestamp,
		CreatedAt:       s.cfg.Now(),
		AnnotationCount: len(snap.Annotations),
		ScreenshotPath:  path,
		Payload:         body,
	}
	if err := s.store.Insert(r.Context(), rec); err != nil {
		os.Remove(path)
		s.fail(w, "store snapshot", err)
		return
	}
	routed := s.route(r.Context(), id, snap)
	s.cfg.Logger.Info("inbox: snapshot stored", "id", id, "url", snap.URL, "annotations", len(snap.Annotations), "routed", routed)
	writeJSON(w, http.StatusCreated, createResponse{Success: true, ID: id, Routed: routed})
}

func (s *Server) route(ctx context.Context, id string, snap annotation.Snapshot) bool {
	if s.forward == nil {
		return false
	}
	resp, err := s.forward.Send(ctx, snap)
	if err != nil {
		s.cfg.Logger.Warn("inbox: forward failed", "id", id, "error", err)
		return false
	}
	if err := s.store.SetRouted(ctx, id, true); err != nil {
		s.cfg.Logger.Warn("inbox: mark routed", "id", id, "error", err)
	}
	s.cfg.Logger.Debug("inbox: forwarded", "id", id, "hub_id", resp.ID)
	return true
}

// validate checks the snapshot and returns the decoded PNG bytes.
func validate(snap annotation.Snapshot, p annotation.Params) ([]byte, error) {
	if err := snap.Validate(p); err != nil {
		return nil, err
	}
	mime, data, err := capture.DecodeDataURL(snap.ScreenshotDataURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot: screenshot: %w", err)
	}
	if mime != "image/png" {
		return nil, fmt.Errorf("snapshot: screenshot must be image/png, got %q", mime)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("snapshot: screenshot: %w", err)
	}
	return data, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.fail(w, "list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Payload)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, err := os.ReadFile(rec.ScreenshotPath)
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, createResponse{Error: "screenshot missing"})
		return
	}
	if err != nil {
		s.fail(w, "read screenshot", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Record, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, createResponse{Error: "unknown snapshot"})
		return Record{}, false
	}
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, createResponse{Error: "unknown snapshot"})
		return Record{}, false
	}
	if err != nil {
		s.fail(w, "get snapshot", err)
		return Record{}, false
	}
	return rec, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.cfg.Logger.Error("inbox: "+op, "error", err)
	writeJSON(w, http.StatusInternalServerError, createResponse{Error: op + " failed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
