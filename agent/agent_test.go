package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"protube-client/api"
	"protube-client/pkg/protube"
	"protube-client/store"
	"protube-client/toast"
)

type fakeSyncer struct {
	err   error
	calls int
}

func (f *fakeSyncer) SyncAll(_ context.Context) error {
	f.calls++
	return f.err
}

type fakeIdentity struct{ ident protube.Identity }

func (f *fakeIdentity) Identity(_ context.Context) protube.Identity { return f.ident }

type fakeSubmitter struct {
	items []api.UploadItem
	ok    bool
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, items []api.UploadItem) bool {
	f.items = append(f.items, items...)
	return f.ok
}

func newServer(syncer *fakeSyncer, ident protube.Identity, st *store.Store, toasts *toast.Manager) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if st == nil {
		st = store.New(store.NewMemBackend(), logger)
	}
	if toasts == nil {
		toasts = toast.New(logger)
	}
	return New(&Config{
		Syncer:    syncer,
		Identity:  &fakeIdentity{ident: ident},
		Submitter: &fakeSubmitter{ok: true},
		Store:     st,
		Toasts:    toasts,
		Logger:    logger,
	})
}

func TestHandleHealth(t *testing.T) {
	s := newServer(&fakeSyncer{}, protube.Identity{}, nil, nil)

	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"status":"healthy"}` {
		t.Errorf("body = %q, want healthy status", got)
	}

	w = httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}

func TestHandleSync(t *testing.T) {
	syncer := &fakeSyncer{}
	s := newServer(syncer, protube.Identity{}, nil, nil)

	w := httptest.NewRecorder()
	s.handleSync(w, httptest.NewRequest(http.MethodPost, "/syncz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if syncer.calls != 1 {
		t.Errorf("sync calls = %d, want 1", syncer.calls)
	}

	w = httptest.NewRecorder()
	s.handleSync(w, httptest.NewRequest(http.MethodGet, "/syncz", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
	if syncer.calls != 1 {
		t.Errorf("sync calls after GET = %d, want still 1", syncer.calls)
	}
}

func TestHandleSyncReportsFailure(t *testing.T) {
	s := newServer(&fakeSyncer{err: errors.New("backend down")}, protube.Identity{}, nil, nil)

	w := httptest.NewRecorder()
	s.handleSync(w, httptest.NewRequest(http.MethodPost, "/syncz", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func newUploadServer(submitter *fakeSubmitter) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&Config{
		Syncer:    &fakeSyncer{},
		Identity:  &fakeIdentity{},
		Submitter: submitter,
		Store:     store.New(store.NewMemBackend(), logger),
		Toasts:    toast.New(logger),
		Logger:    logger,
	})
}

func multipartUpload(t *testing.T, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("finish multipart body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/uploadz", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	submitter := &fakeSubmitter{ok: true}
	s := newUploadServer(submitter)

	w := httptest.NewRecorder()
	req := multipartUpload(t,
		map[string]string{"gatet.mp4": "video bytes"},
		map[string]string{"title": "El meu gatet", "description": "dorm", "published": "true"})
	s.handleUpload(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(submitter.items) != 1 {
		t.Fatalf("submitted items = %d, want 1", len(submitter.items))
	}
	item := submitter.items[0]
	if item.FileName != "gatet.mp4" || item.Title != "El meu gatet" || !item.Published {
		t.Errorf("item = %+v, want file name, title and publish flag carried", item)
	}
	if string(item.Content) != "video bytes" {
		t.Errorf("Content = %q, want file bytes", item.Content)
	}

	w = httptest.NewRecorder()
	s.handleUpload(w, httptest.NewRequest(http.MethodGet, "/uploadz", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}

func TestHandleUploadReportsBatchFailure(t *testing.T) {
	s := newUploadServer(&fakeSubmitter{ok: false})

	w := httptest.NewRecorder()
	s.handleUpload(w, multipartUpload(t, map[string]string{"a.mp4": "x"}, nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHandleUploadRejectsEmptyBatch(t *testing.T) {
	submitter := &fakeSubmitter{ok: true}
	s := newUploadServer(submitter)

	w := httptest.NewRecorder()
	s.handleUpload(w, multipartUpload(t, nil, map[string]string{"title": "cap fitxer"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(submitter.items) != 0 {
		t.Errorf("submitted items = %v, want none", submitter.items)
	}
}

func TestHandleStateSnapshot(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(store.NewMemBackend(), logger)
	store.SetJSON(ctx, st, protube.KeyLiked, []string{"a", "b"})
	store.SetJSON(ctx, st, protube.KeyHistory, []protube.HistoryEntry{{VideoKey: "a.mp4"}})
	toasts := toast.New(logger)
	toasts.Show("Vídeos publicats")

	s := newServer(&fakeSyncer{}, protube.Identity{UserID: "user-1", Username: "anna"}, st, toasts)

	w := httptest.NewRecorder()
	s.handleState(w, httptest.NewRequest(http.MethodGet, "/statez", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var snapshot stateSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !snapshot.LoggedIn || snapshot.Username != "anna" {
		t.Errorf("identity = %+v, want logged-in anna", snapshot)
	}
	if snapshot.LikedCount != 2 {
		t.Errorf("LikedCount = %d, want 2", snapshot.LikedCount)
	}
	if snapshot.HistoryCount != 1 {
		t.Errorf("HistoryCount = %d, want 1", snapshot.HistoryCount)
	}
	if snapshot.StoredKeys != 2 {
		t.Errorf("StoredKeys = %d, want 2", snapshot.StoredKeys)
	}
	if snapshot.Toast != "Vídeos publicats" {
		t.Errorf("Toast = %q, want active toast", snapshot.Toast)
	}
}
