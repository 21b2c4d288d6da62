package reconcile

import (
	"context"
	"fmt"

	"protube-client/api"
	"protube-client/pkg/protube"
	"protube-client/store"
)

// WatchLater fetches the user's distinguished Watch Later playlist. A
// fetch failure surfaces a notice and an error; callers must abort
// rather than proceed with an empty playlist.
func (m *Manager) WatchLater(ctx context.Context) (protube.Playlist, error) {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return protube.Playlist{}, err
	}
	list, err := m.api.WatchLater(ctx, ident.UserID)
	if err != nil {
		m.toast(msgActionFailed)
		return protube.Playlist{}, fmt.Errorf("fetch watch later: %w", err)
	}
	store.SetJSON(ctx, m.store, protube.KeyWatchLater, list.VideoIDs)
	return list, nil
}

// InWatchLater reports whether a video sits in Watch Later, answering
// false on any failure.
func (m *Manager) InWatchLater(ctx context.Context, videoKey string) bool {
	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		return false
	}
	videoID, err := m.resolver.VideoID(ctx, videoKey)
	if err != nil || videoID == "" {
		return false
	}
	list, err := m.api.WatchLater(ctx, ident.UserID)
	if err != nil {
		m.logger.Warn("Watch later check failed, assuming absent", "video_id", videoID, "error", err)
		return false
	}
	return list.Contains(videoID)
}

// ToggleWatchLater adds or removes a video from Watch Later depending
// on current. The playlist is fetched first; if the video is already
// present when adding, the request is rejected with a notice and the
// playlist left unchanged.
func (m *Manager) ToggleWatchLater(ctx context.Context, videoKey string, current bool) (bool, error) {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return current, err
	}
	videoID, err := m.resolveVideo(ctx, videoKey)
	if err != nil {
		return current, err
	}

	done, err := m.begin("watch-later:" + ident.UserID + ":" + videoID)
	if err != nil {
		return current, err
	}
	defer done()

	list, err := m.api.WatchLater(ctx, ident.UserID)
	if err != nil {
		m.toast(msgActionFailed)
		return current, fmt.Errorf("fetch watch later: %w", err)
	}

	if !current {
		if list.Contains(videoID) {
			m.toast(msgAlreadyInPlaylist)
			return current, ErrAlreadyInPlaylist
		}
		if err := m.api.AddPlaylistVideo(ctx, list.ID, videoID); err != nil {
			m.toast(msgActionFailed)
			return current, fmt.Errorf("add to watch later: %w", err)
		}
	} else {
		if err := m.api.RemovePlaylistVideo(ctx, list.ID, videoID); err != nil {
			m.toast(msgActionFailed)
			return current, fmt.Errorf("remove from watch later: %w", err)
		}
	}

	next := !current
	m.cacheWatchLater(ctx, videoID, next)
	m.publishUpdate(protube.UpdateWatchLater, map[string]string{"videoId": videoID})
	if next {
		m.toast(msgWatchLaterAdded)
	} else {
		m.toast(msgWatchLaterRemoved)
	}
	return next, nil
}

// Playlists returns the user's playlists from the backend, refreshing
// the cached copy.
func (m *Manager) Playlists(ctx context.Context) ([]protube.Playlist, error) {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return nil, err
	}
	lists, err := m.api.Playlists(ctx, ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	store.SetJSON(ctx, m.store, protube.KeyPlaylists, lists)
	return lists, nil
}

// CreatePlaylist creates a named playlist. Name uniqueness is the
// backend's call; a duplicate answers 4xx and surfaces as a notice.
func (m *Manager) CreatePlaylist(ctx context.Context, name string) (protube.Playlist, error) {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return protube.Playlist{}, err
	}
	created, err := m.api.CreatePlaylist(ctx, ident.UserID, name)
	if err != nil {
		if api.IsClientError(err) {
			m.toast(msgPlaylistExists)
		} else {
			m.toast(msgActionFailed)
		}
		return protube.Playlist{}, fmt.Errorf("create playlist: %w", err)
	}
	m.publishUpdate(protube.UpdatePlaylists, map[string]string{"playlistId": created.ID})
	m.toast(msgPlaylistCreated)
	return created, nil
}

// AddToPlaylist appends a video to a playlist, rejecting duplicates
// with a notice instead of silently deduplicating.
func (m *Manager) AddToPlaylist(ctx context.Context, playlistID, videoKey string) error {
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return err
	}
	videoID, err := m.resolveVideo(ctx, videoKey)
	if err != nil {
		return err
	}

	lists, err := m.api.Playlists(ctx, ident.UserID)
	if err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("list playlists: %w", err)
	}
	for _, list := range lists {
		if list.ID == playlistID && list.Contains(videoID) {
			m.toast(msgAlreadyInPlaylist)
			return ErrAlreadyInPlaylist
		}
	}

	if err := m.api.AddPlaylistVideo(ctx, playlistID, videoID); err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("add video to playlist: %w", err)
	}
	m.publishUpdate(protube.UpdatePlaylists, map[string]string{"playlistId": playlistID})
	m.toast(msgAddedToPlaylist)
	return nil
}

// RemoveFromPlaylist removes a video from a playlist.
func (m *Manager) RemoveFromPlaylist(ctx context.Context, playlistID, videoKey string) error {
	if _, err := m.requireLogin(ctx); err != nil {
		return err
	}
	videoID, err := m.resolveVideo(ctx, videoKey)
	if err != nil {
		return err
	}
	if err := m.api.RemovePlaylistVideo(ctx, playlistID, videoID); err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("remove video from playlist: %w", err)
	}
	m.publishUpdate(protube.UpdatePlaylists, map[string]string{"playlistId": playlistID})
	return nil
}

// DeletePlaylist removes a playlist after confirmation. confirm may be
// nil to skip the prompt (the agent's non-interactive path).
func (m *Manager) DeletePlaylist(ctx context.Context, playlistID string, confirm func() bool) error {
	if _, err := m.requireLogin(ctx); err != nil {
		return err
	}
	if confirm != nil && !confirm() {
		return nil
	}
	if err := m.api.DeletePlaylist(ctx, playlistID); err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("delete playlist: %w", err)
	}
	m.publishUpdate(protube.UpdatePlaylists, map[string]string{"playlistId": playlistID})
	m.toast(msgPlaylistDeleted)
	return nil
}

// cacheWatchLater mirrors a confirmed Watch Later change into the
// legacy cached id list.
func (m *Manager) cacheWatchLater(ctx context.Context, videoID string, present bool) {
	ids := store.GetJSON(ctx, m.store, protube.KeyWatchLater, []string{})
	filtered := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id != videoID {
			filtered = append(filtered, id)
		}
	}
	if present {
		filtered = append(filtered, videoID)
	}
	store.SetJSON(ctx, m.store, protube.KeyWatchLater, filtered)
}
