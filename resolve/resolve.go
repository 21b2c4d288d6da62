// Package resolve maps client-side video keys to backend video ids. The
// client stores videos under file names ("myvideo.mp4") or bare base
// names ("myvideo"), while every backend mutation wants the id the
// server assigned at upload time.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"protube-client/pkg/protube"
)

// Listing is the one backend call resolution needs.
type Listing interface {
	AllVideos(ctx context.Context) ([]protube.Video, error)
}

// Resolver answers video-id lookups from a cached copy of the full
// listing, plus explicit hints recorded by callers that already know a
// mapping (e.g. right after an upload).
type Resolver struct {
	listing Listing
	logger  *slog.Logger
	ids     map[string]string
	mu      sync.Mutex
	fetched bool
}

// New creates a resolver backed by the given listing source.
func New(listing Listing, logger *slog.Logger) *Resolver {
	return &Resolver{
		listing: listing,
		logger:  logger,
		ids:     map[string]string{},
	}
}

// Hint records a known key-to-id mapping without a backend round trip.
func (r *Resolver) Hint(key, videoID string) {
	if key == "" || videoID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[key] = videoID
}

// Invalidate drops the cached listing so the next lookup refetches.
// Hints survive; they came from the caller, not the listing.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetched = false
}

// VideoID resolves a video key to its backend id. A key matches a
// listing entry when it equals the entry's file name, its id, or the
// file name with the extension stripped. An unknown key resolves to ""
// with a nil error; only transport failures are errors.
func (r *Resolver) VideoID(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[key]; ok {
		return id, nil
	}
	if r.fetched {
		return "", nil
	}

	videos, err := r.listing.AllVideos(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch video listing: %w", err)
	}
	for _, v := range videos {
		if v.VideoID == "" {
			continue
		}
		r.ids[v.VideoID] = v.VideoID
		if v.FileName != "" {
			r.ids[v.FileName] = v.VideoID
			if base := stripExtension(v.FileName); base != v.FileName {
				r.ids[base] = v.VideoID
			}
		}
	}
	r.fetched = true

	id, ok := r.ids[key]
	if !ok {
		r.logger.Warn("Video key not found in listing", "key", key, "listing_size", len(videos))
		return "", nil
	}
	return id, nil
}

func stripExtension(fileName string) string {
	ext := path.Ext(fileName)
	if ext == "" {
		return fileName
	}
	return strings.TrimSuffix(fileName, ext)
}
