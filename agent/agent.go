// Package agent exposes the sync engine over HTTP: a health probe, a
// trigger for an immediate reconciliation pass, a batch upload
// endpoint, and a snapshot of the cached client state.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"protube-client/api"
	"protube-client/pkg/protube"
	"protube-client/store"
	"protube-client/toast"
)

// Syncer triggers a full reconciliation pass.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// IdentityReader reports the signed-in user.
type IdentityReader interface {
	Identity(ctx context.Context) protube.Identity
}

// Submitter sends a batch of videos to the backend and reports whether
// every one landed.
type Submitter interface {
	SubmitBatch(ctx context.Context, items []api.UploadItem) bool
}

// Server handles HTTP requests.
type Server struct {
	syncer    Syncer
	identity  IdentityReader
	submitter Submitter
	store     *store.Store
	toasts    *toast.Manager
	logger    *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Syncer    Syncer
	Identity  IdentityReader
	Submitter Submitter
	Store     *store.Store
	Toasts    *toast.Manager
	Logger    *slog.Logger
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		syncer:    cfg.Syncer,
		identity:  cfg.Identity,
		submitter: cfg.Submitter,
		store:     cfg.Store,
		toasts:    cfg.Toasts,
		logger:    cfg.Logger,
	}
}

// Serve sets up all routes and starts the server.
func (s *Server) Serve(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/syncz", s.handleSync)
	mux.HandleFunc("/uploadz", s.handleUpload)
	mux.HandleFunc("/statez", s.handleState)

	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
		return
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Sync endpoint triggered")

	if err := s.syncer.SyncAll(r.Context()); err != nil {
		s.logger.Error("Sync failed", "error", err)
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// maxUploadBytes bounds how much of an upload request is held in
// memory before spilling to disk.
const maxUploadBytes = 512 << 20

// handleUpload accepts a multipart batch: one or more "file" parts,
// with parallel "title", "description", and "published" fields matched
// to files by position.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Malformed multipart body", http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "No file parts", http.StatusBadRequest)
		return
	}

	titles := r.MultipartForm.Value["title"]
	descriptions := r.MultipartForm.Value["description"]
	published := r.MultipartForm.Value["published"]

	items := make([]api.UploadItem, 0, len(files))
	for i, header := range files {
		file, err := header.Open()
		if err != nil {
			http.Error(w, "Unreadable file part", http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(file)
		if closeErr := file.Close(); closeErr != nil {
			s.logger.Warn("Failed to close upload part", "error", closeErr)
		}
		if err != nil {
			http.Error(w, "Unreadable file part", http.StatusBadRequest)
			return
		}

		item := api.UploadItem{FileName: header.Filename, Content: content}
		if i < len(titles) {
			item.Title = titles[i]
		}
		if i < len(descriptions) {
			item.Description = descriptions[i]
		}
		if i < len(published) {
			item.Published, _ = strconv.ParseBool(published[i])
		}
		items = append(items, item)
	}

	s.logger.Info("Upload endpoint triggered", "items", len(items))

	if !s.submitter.SubmitBatch(r.Context(), items) {
		http.Error(w, "Upload failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"published"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// stateSnapshot is the /statez response body.
type stateSnapshot struct {
	LoggedIn        bool   `json:"logged_in"`
	Username        string `json:"username,omitempty"`
	LikedCount      int    `json:"liked_count"`
	WatchLaterCount int    `json:"watch_later_count"`
	PlaylistCount   int    `json:"playlist_count"`
	HistoryCount    int    `json:"history_count"`
	StoredKeys      int    `json:"stored_keys"`
	Toast           string `json:"toast,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	ident := s.identity.Identity(ctx)
	snapshot := stateSnapshot{
		LoggedIn:        ident.LoggedIn(),
		Username:        ident.Username,
		LikedCount:      len(store.GetJSON(ctx, s.store, protube.KeyLiked, []string{})),
		WatchLaterCount: len(store.GetJSON(ctx, s.store, protube.KeyWatchLater, []string{})),
		PlaylistCount:   len(store.GetJSON(ctx, s.store, protube.KeyPlaylists, []protube.Playlist{})),
		HistoryCount:    len(store.GetJSON(ctx, s.store, protube.KeyHistory, []protube.HistoryEntry{})),
		StoredKeys:      len(s.store.Keys(ctx)),
	}
	if message, visible := s.toasts.Current(); visible {
		snapshot.Toast = message
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Warn("Failed to write state response", "error", err)
	}
}
