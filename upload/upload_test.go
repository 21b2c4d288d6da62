package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"protube-client/api"
	"protube-client/bus"
	"protube-client/pkg/protube"
	"protube-client/session"
	"protube-client/store"
)

type fakeUploader struct {
	mu        sync.Mutex
	failOn    map[string]bool
	sent      []string
	deleted   []string
	deleteErr error
}

func (f *fakeUploader) Upload(_ context.Context, item api.UploadItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, item.FileName)
	if f.failOn[item.FileName] {
		return errors.New("upload rejected")
	}
	return nil
}

func (f *fakeUploader) DeleteVideo(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, videoID)
	return f.deleteErr
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) Invalidate() { f.calls++ }

type fixture struct {
	submitter *Submitter
	store     *store.Store
	uploader  *fakeUploader
	refresh   *fakeRefresher
	toasts    *[]string
	updates   *[]bus.StateUpdate
	closes    *int
}

func newFixture(uploader *fakeUploader) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(store.NewMemBackend(), logger)
	b := bus.New(logger)
	reg := session.New(nil, logger)
	refresh := &fakeRefresher{}

	var toasts []string
	b.Subscribe(bus.TopicToast, func(detail any) {
		if t, ok := detail.(bus.Toast); ok {
			toasts = append(toasts, t.Message)
		}
	})
	var updates []bus.StateUpdate
	b.Subscribe(bus.TopicStateUpdated, func(detail any) {
		if u, ok := detail.(bus.StateUpdate); ok {
			updates = append(updates, u)
		}
	})
	var closes int
	b.Subscribe(bus.TopicCloseUpload, func(any) { closes++ })

	return &fixture{
		submitter: New(uploader, st, b, reg, refresh, "http://media", logger),
		store:     st,
		uploader:  uploader,
		refresh:   refresh,
		toasts:    &toasts,
		updates:   &updates,
		closes:    &closes,
	}
}

func TestSubmitBatchAllSucceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeUploader{})

	ok := f.submitter.SubmitBatch(ctx, []api.UploadItem{
		{FileName: "a.mp4", Title: "A", Published: true},
		{FileName: "b.mp4", Title: "B"},
	})
	if !ok {
		t.Fatal("SubmitBatch() = false, want true")
	}
	if len(f.uploader.sent) != 2 {
		t.Errorf("uploads sent = %v, want both items", f.uploader.sent)
	}
	if len(*f.toasts) != 1 || (*f.toasts)[0] != msgPublished {
		t.Errorf("toasts = %v, want published notice", *f.toasts)
	}
	if *f.closes != 1 {
		t.Errorf("close-upload events = %d, want 1", *f.closes)
	}
	if f.refresh.calls != 1 {
		t.Errorf("listing invalidations = %d, want 1", f.refresh.calls)
	}

	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 2 {
		t.Fatalf("channel videos = %d, want 2", len(videos))
	}
	if videos[0].PosterURL != "http://media/b.webp" && videos[0].PosterURL != "http://media/a.webp" {
		t.Errorf("PosterURL = %q, want derived webp", videos[0].PosterURL)
	}
}

func TestSubmitBatchPartialFailureStillPublishesUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeUploader{failOn: map[string]bool{"bad.mp4": true}})

	ok := f.submitter.SubmitBatch(ctx, []api.UploadItem{
		{FileName: "good.mp4", Title: "Bé"},
		{FileName: "bad.mp4", Title: "Malament"},
	})
	if ok {
		t.Fatal("SubmitBatch() = true, want false on partial failure")
	}
	if len(*f.updates) != 1 || (*f.updates)[0].Type != protube.UpdateChannelUpload {
		t.Errorf("updates = %v, want channel_upload even on failure", *f.updates)
	}
	if (*f.toasts)[len(*f.toasts)-1] != msgSomeFailed {
		t.Errorf("toasts = %v, want failure notice", *f.toasts)
	}
	if *f.closes != 0 {
		t.Errorf("close-upload events = %d, want 0 on failure", *f.closes)
	}

	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 1 || videos[0].Name != "good.mp4" {
		t.Errorf("channel videos = %v, want only the successful upload", videos)
	}
}

func TestSubmitBatchDeduplicatesByFileName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeUploader{})

	f.submitter.SubmitBatch(ctx, []api.UploadItem{{FileName: "a.mp4", Title: "v1"}})
	f.submitter.SubmitBatch(ctx, []api.UploadItem{{FileName: "a.mp4", Title: "v2"}})

	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 1 {
		t.Fatalf("channel videos = %d, want 1 after re-upload", len(videos))
	}
	if videos[0].Title != "v2" {
		t.Errorf("head title = %q, want the newer upload", videos[0].Title)
	}
}

func TestSetPublishedFlipsFlagInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeUploader{})
	f.submitter.SubmitBatch(ctx, []api.UploadItem{{FileName: "a.mp4", Published: false}})
	*f.updates = nil

	if ok := f.submitter.SetPublished(ctx, "a.mp4", true); !ok {
		t.Fatal("SetPublished() = false, want true")
	}
	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 1 || !videos[0].Published {
		t.Errorf("channel videos = %v, want published flag set", videos)
	}
	if len(*f.updates) != 1 || (*f.updates)[0].Type != protube.UpdateChannelUpdate {
		t.Errorf("updates = %v, want one channel_update", *f.updates)
	}

	if ok := f.submitter.SetPublished(ctx, "ghost.mp4", true); ok {
		t.Error("SetPublished(unknown) = true, want false")
	}
}

func TestDeleteVideoHonorsConfirmation(t *testing.T) {
	ctx := context.Background()
	uploader := &fakeUploader{}
	f := newFixture(uploader)
	f.submitter.SubmitBatch(ctx, []api.UploadItem{{FileName: "a.mp4"}})

	if err := f.submitter.DeleteVideo(ctx, "a.mp4", "vid-1", func() bool { return false }); err != nil {
		t.Fatalf("declined delete error = %v", err)
	}
	if len(uploader.deleted) != 0 {
		t.Errorf("backend deletes after declined confirm = %v, want none", uploader.deleted)
	}

	if err := f.submitter.DeleteVideo(ctx, "a.mp4", "vid-1", func() bool { return true }); err != nil {
		t.Fatalf("confirmed delete error = %v", err)
	}
	if len(uploader.deleted) != 1 || uploader.deleted[0] != "vid-1" {
		t.Errorf("backend deletes = %v, want [vid-1]", uploader.deleted)
	}
	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 0 {
		t.Errorf("channel videos = %v, want removed from cache", videos)
	}
}

func TestDeleteVideoKeepsCacheOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	uploader := &fakeUploader{deleteErr: errors.New("backend down")}
	f := newFixture(uploader)
	f.submitter.SubmitBatch(ctx, []api.UploadItem{{FileName: "a.mp4"}})

	if err := f.submitter.DeleteVideo(ctx, "a.mp4", "vid-1", nil); err == nil {
		t.Fatal("DeleteVideo() error = nil, want backend failure")
	}
	videos := store.GetJSON(ctx, f.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	if len(videos) != 1 {
		t.Errorf("channel videos = %v, want kept on failure", videos)
	}
}

func TestSubmitBatchEmpty(t *testing.T) {
	f := newFixture(&fakeUploader{})
	if ok := f.submitter.SubmitBatch(context.Background(), nil); ok {
		t.Error("SubmitBatch(nil) = true, want false")
	}
	if len(f.uploader.sent) != 0 {
		t.Errorf("uploads sent = %v, want none", f.uploader.sent)
	}
}
