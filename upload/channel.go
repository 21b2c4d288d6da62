package upload

import (
	"context"
	"fmt"

	"protube-client/bus"
	"protube-client/pkg/protube"
	"protube-client/store"
)

const (
	msgVideoDeleted = "Vídeo eliminat"
)

// SetPublished flips the publish flag of a cached channel video in
// place and announces the channel change. Reports whether the video was
// found.
func (s *Submitter) SetPublished(ctx context.Context, fileName string, published bool) bool {
	videos := store.GetJSON(ctx, s.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	found := false
	for i := range videos {
		if videos[i].Name == fileName {
			videos[i].Published = published
			found = true
			break
		}
	}
	if !found {
		s.logger.Warn("Publish flag change for unknown channel video", "file_name", fileName)
		return false
	}
	store.SetJSON(ctx, s.store, protube.KeyChannelVideos, videos)
	s.bus.Publish(bus.TopicStateUpdated, bus.StateUpdate{Type: protube.UpdateChannelUpdate})
	return true
}

// DeleteVideo removes a video from the backend and from the cached
// channel list, after confirmation. confirm may be nil to skip the
// prompt.
func (s *Submitter) DeleteVideo(ctx context.Context, fileName, videoID string, confirm func() bool) error {
	if confirm != nil && !confirm() {
		return nil
	}
	if err := s.api.DeleteVideo(ctx, videoID); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	videos := store.GetJSON(ctx, s.store, protube.KeyChannelVideos, []protube.ChannelVideo{})
	kept := make([]protube.ChannelVideo, 0, len(videos))
	for _, v := range videos {
		if v.Name == fileName {
			continue
		}
		kept = append(kept, v)
	}
	store.SetJSON(ctx, s.store, protube.KeyChannelVideos, kept)

	if s.refresh != nil {
		s.refresh.Invalidate()
	}
	s.bus.Publish(bus.TopicStateUpdated, bus.StateUpdate{Type: protube.UpdateChannelUpdate})
	s.bus.Publish(bus.TopicToast, bus.Toast{Message: msgVideoDeleted})
	return nil
}
