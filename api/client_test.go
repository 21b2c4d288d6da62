package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"protube-client/pkg/protube"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoginSendsFormAndReturnsTrimmedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/api/users/login" {
			t.Errorf("path = %q, want /api/users/login", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("email"); got != "jo@protube.cat" {
			t.Errorf("email = %q, want jo@protube.cat", got)
		}
		if got := r.PostFormValue("password"); got != "secret" {
			t.Errorf("password = %q, want secret", got)
		}
		if _, err := io.WriteString(w, "user-42\n"); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	id, err := c.Login(context.Background(), "jo@protube.cat", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if id != "user-42" {
		t.Errorf("Login() = %q, want %q", id, "user-42")
	}
}

func TestLikesByUserDecodesIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/likes/user/user-1" {
			t.Errorf("path = %q, want /api/likes/user/user-1", r.URL.Path)
		}
		if err := json.NewEncoder(w).Encode([]string{"vid-a", "vid-b"}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	ids, err := c.LikesByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LikesByUser() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "vid-a" || ids[1] != "vid-b" {
		t.Errorf("LikesByUser() = %v, want [vid-a vid-b]", ids)
	}
}

func TestCreatePlaylistSendsRawName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if string(body) != "Les meves preferides" {
			t.Errorf("body = %q, want raw playlist name", body)
		}
		if err := json.NewEncoder(w).Encode(protube.Playlist{
			ID: "pl-9", Name: "Les meves preferides", UserID: "user-1",
		}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	created, err := c.CreatePlaylist(context.Background(), "user-1", "Les meves preferides")
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if created.ID != "pl-9" {
		t.Errorf("created.ID = %q, want pl-9", created.ID)
	}
}

func TestUploadBuildsMultipartParts(t *testing.T) {
	var gotParts map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Fatalf("parse content type: %v", err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		gotParts = map[string]string{}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("next part: %v", err)
			}
			data, err := io.ReadAll(part)
			if err != nil {
				t.Fatalf("read part %q: %v", part.FormName(), err)
			}
			gotParts[part.FormName()] = string(data)
			if part.FormName() == "meta" && part.Header.Get("Content-Type") != "application/json" {
				t.Errorf("meta part Content-Type = %q, want application/json", part.Header.Get("Content-Type"))
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	err := c.Upload(context.Background(), UploadItem{
		FileName:    "gatet.mp4",
		Title:       "El meu gatet",
		Description: "dorm tot el dia",
		Content:     []byte("fake video bytes"),
		Thumbnail:   []byte("fake image bytes"),
		ThumbName:   "gatet.webp",
		Published:   true,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if gotParts["file"] != "fake video bytes" {
		t.Errorf("file part = %q, want video bytes", gotParts["file"])
	}
	if gotParts["thumbnail"] != "fake image bytes" {
		t.Errorf("thumbnail part = %q, want image bytes", gotParts["thumbnail"])
	}
	if gotParts["published"] != "true" {
		t.Errorf("published field = %q, want true", gotParts["published"])
	}
	var meta struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(gotParts["meta"]), &meta); err != nil {
		t.Fatalf("unmarshal meta part: %v", err)
	}
	if meta.Title != "El meu gatet" || meta.Description != "dorm tot el dia" {
		t.Errorf("meta = %+v, want title and description set", meta)
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	_, err := c.AllVideos(context.Background())
	if err == nil {
		t.Fatal("AllVideos() error = nil, want not-found error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	if !IsClientError(err) {
		t.Errorf("IsClientError(%v) = false, want true", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1 (4xx must not retry)", n)
	}
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := json.NewEncoder(w).Encode([]protube.Video{{VideoID: "vid-1", FileName: "a.mp4"}}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil, testLogger())
	videos, err := c.AllVideos(context.Background())
	if err != nil {
		t.Fatalf("AllVideos() error = %v", err)
	}
	if len(videos) != 1 || videos[0].VideoID != "vid-1" {
		t.Errorf("AllVideos() = %v, want one video vid-1", videos)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls = %d, want 2 (5xx retried once)", n)
	}
}
