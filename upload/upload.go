// Package upload submits batches of videos to the backend and keeps the
// client-side channel state in step with the outcome.
package upload

import (
	"context"
	"log/slog"
	"sync"

	"protube-client/api"
	"protube-client/bus"
	"protube-client/meta"
	"protube-client/pkg/protube"
	"protube-client/session"
	"protube-client/store"
)

// User-facing notices, matching the web app's Catalan copy.
const (
	msgPublished     = "Vídeos publicats"
	msgSomeFailed    = "Alguns vídeos no s'han pogut pujar"
	msgNothingToSend = "No hi ha cap vídeo per pujar"
)

// VideoAPI is the backend surface for submitting and removing videos.
type VideoAPI interface {
	Upload(ctx context.Context, item api.UploadItem) error
	DeleteVideo(ctx context.Context, videoID string) error
}

// Refresher invalidates a cached video listing after new uploads.
type Refresher interface {
	Invalidate()
}

// Submitter uploads batches and records the results.
type Submitter struct {
	api       VideoAPI
	store     *store.Store
	bus       *bus.Bus
	session   *session.Registry
	refresh   Refresher
	logger    *slog.Logger
	mediaBase string
}

// New creates a submitter. refresh may be nil when no listing cache
// needs invalidation.
func New(videos VideoAPI, st *store.Store, b *bus.Bus, reg *session.Registry, refresh Refresher, mediaBase string, logger *slog.Logger) *Submitter {
	return &Submitter{
		api:       videos,
		store:     st,
		bus:       b,
		session:   reg,
		refresh:   refresh,
		logger:    logger,
		mediaBase: mediaBase,
	}
}

// SubmitBatch uploads all items concurrently and reports whether every
// one succeeded. Win or lose, a channel-upload update is published so
// listeners refetch, and a notice summarizes the outcome. Successful
// items are prepended to the cached channel videos list, deduplicated
// by file name.
func (s *Submitter) SubmitBatch(ctx context.Context, items []api.UploadItem) bool {
	if len(items) == 0 {
		s.bus.Publish(bus.TopicToast, bus.Toast{Message: msgNothingToSend})
		return false
	}

	// Preview URLs live only for the duration of the batch.
	for _, item := range items {
		s.session.CreateBlobURL(item.FileName)
	}
	defer func() {
		for _, item := range items {
			s.session.Drop(item.FileName)
		}
	}()

	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.api.Upload(ctx, item)
		}()
	}
	wg.Wait()

	failures := 0
	for i, err := range errs {
		if err != nil {
			failures++
			s.logger.Warn("Upload failed", "file_name", items[i].FileName, "error", err)
			continue
		}
		s.recordChannelVideo(ctx, items[i])
	}

	if failures < len(items) && s.refresh != nil {
		s.refresh.Invalidate()
	}

	s.bus.Publish(bus.TopicStateUpdated, bus.StateUpdate{Type: protube.UpdateChannelUpload})
	if failures == 0 {
		s.bus.Publish(bus.TopicCloseUpload, nil)
		s.bus.Publish(bus.TopicToast, bus.Toast{Message: msgPublished})
		s.logger.Info("Batch upload finished", "items", len(items))
		return true
	}
	s.bus.Publish(bus.TopicToast, bus.Toast{Message: msgSomeFailed})
	s.logger.Warn("Batch upload finished with failures", "items", len(items), "failures", failures)
	return false
}

// recordChannelVideo prepends one upload to the cached channel videos
// list, replacing any earlier entry with the same file name.
func (s *Submitter) recordChannelVideo(ctx context.Context, item api.UploadItem) {
	videos := store.GetJSON(ctx, s.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	updated := make([]protube.ChannelVideo, 0, len(videos)+1)
	updated = append(updated, protube.ChannelVideo{
		Name:        item.FileName,
		Title:       item.Title,
		Description: item.Description,
		PosterURL:   meta.PosterURL(s.mediaBase, item.FileName),
		CreatedAt:   protube.Now(),
		Published:   item.Published,
	})
	for _, v := range videos {
		if v.Name == item.FileName {
			continue
		}
		updated = append(updated, v)
	}
	store.SetJSON(ctx, s.store, protube.KeyChannelVideos, updated)
}
