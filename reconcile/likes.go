package reconcile

import (
	"context"

	"protube-client/pkg/protube"
	"protube-client/store"
)

// IsLiked queries the backend for the current like state. On any
// failure (not signed in, unresolved video, network) it answers false,
// the conservative default for initializing a toggle.
func (m *Manager) IsLiked(ctx context.Context, videoKey string) bool {
	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		return false
	}
	videoID, err := m.resolver.VideoID(ctx, videoKey)
	if err != nil || videoID == "" {
		return false
	}
	liked, err := m.api.IsLiked(ctx, ident.UserID, videoID)
	if err != nil {
		m.logger.Warn("Like check failed, assuming not liked", "video_id", videoID, "error", err)
		return false
	}
	return liked
}

// ToggleLike flips the like state for a video. current is the state the
// caller is displaying; the backend request is awaited before anything
// is confirmed. On failure the returned state equals current and a
// failure notice is raised. A second toggle for the same pair before
// the first resolves gets ErrInFlight.
func (m *Manager) ToggleLike(ctx context.Context, videoKey string, current bool) (bool, error) {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return current, err
	}
	videoID, err := m.resolveVideo(ctx, videoKey)
	if err != nil {
		return current, err
	}

	done, err := m.begin("like:" + ident.UserID + ":" + videoID)
	if err != nil {
		return current, err
	}
	defer done()

	if current {
		err = m.api.Unlike(ctx, ident.UserID, videoID)
	} else {
		err = m.api.Like(ctx, ident.UserID, videoID)
	}
	if err != nil {
		m.logger.Warn("Like toggle failed, keeping previous state",
			"video_id", videoID, "was_liked", current, "error", err)
		m.toast(msgActionFailed)
		return current, err
	}

	next := !current
	m.cacheLike(ctx, videoID, next)
	m.publishUpdate(protube.UpdateLiked, map[string]string{"videoId": videoID})
	if next {
		m.toast(msgLiked)
	} else {
		m.toast(msgUnliked)
	}
	return next, nil
}

// LikedVideos returns the ids the user has liked: the backend list when
// signed in (refreshing the local cache), the cached list otherwise.
func (m *Manager) LikedVideos(ctx context.Context) []string {
	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		return store.GetJSON(ctx, m.store, protube.KeyLiked, []string{})
	}
	ids, err := m.api.LikesByUser(ctx, ident.UserID)
	if err != nil {
		m.logger.Warn("Fetching likes failed, using cached list", "error", err)
		return store.GetJSON(ctx, m.store, protube.KeyLiked, []string{})
	}
	store.SetJSON(ctx, m.store, protube.KeyLiked, ids)
	return ids
}

// cacheLike keeps the legacy liked-videos list in step with a confirmed
// toggle so reads before the next full refresh stay plausible.
func (m *Manager) cacheLike(ctx context.Context, videoID string, liked bool) {
	ids := store.GetJSON(ctx, m.store, protube.KeyLiked, []string{})
	filtered := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id != videoID {
			filtered = append(filtered, id)
		}
	}
	if liked {
		filtered = append(filtered, videoID)
	}
	store.SetJSON(ctx, m.store, protube.KeyLiked, filtered)
}
