package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"protube-client/pkg/protube"
)

// Playlists returns all playlists owned by the user.
func (c *Client) Playlists(ctx context.Context, userID string) ([]protube.Playlist, error) {
	var lists []protube.Playlist
	if err := c.getJSON(ctx, "/playlists/user/"+url.PathEscape(userID), &lists); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return lists, nil
}

// CreatePlaylist creates a named playlist for the user. Name uniqueness
// is enforced by the backend, which answers 4xx on a duplicate.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name string) (protube.Playlist, error) {
	data, err := c.request(ctx, http.MethodPost, "/playlists/user/"+url.PathEscape(userID),
		"text/plain", []byte(name))
	if err != nil {
		return protube.Playlist{}, fmt.Errorf("create playlist: %w", err)
	}
	var created protube.Playlist
	if err := json.Unmarshal(data, &created); err != nil {
		return protube.Playlist{}, fmt.Errorf("unmarshal playlist: %w", err)
	}
	return created, nil
}

// WatchLater fetches the user's distinguished Watch Later playlist,
// which the backend provisions implicitly on first access.
func (c *Client) WatchLater(ctx context.Context, userID string) (protube.Playlist, error) {
	var list protube.Playlist
	if err := c.getJSON(ctx, "/playlists/user/"+url.PathEscape(userID)+"/watch-later", &list); err != nil {
		return protube.Playlist{}, fmt.Errorf("fetch watch later: %w", err)
	}
	return list, nil
}

// DeletePlaylist removes a playlist entirely.
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	if _, err := c.request(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(playlistID), "", nil); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

// AddPlaylistVideo appends a video to a playlist.
func (c *Client) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error {
	if _, err := c.request(ctx, http.MethodPost, playlistVideoPath(playlistID, videoID), "", nil); err != nil {
		return fmt.Errorf("add video to playlist: %w", err)
	}
	return nil
}

// RemovePlaylistVideo removes a video from a playlist.
func (c *Client) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) error {
	if _, err := c.request(ctx, http.MethodDelete, playlistVideoPath(playlistID, videoID), "", nil); err != nil {
		return fmt.Errorf("remove video from playlist: %w", err)
	}
	return nil
}

func playlistVideoPath(playlistID, videoID string) string {
	return "/playlists/" + url.PathEscape(playlistID) + "/videos/" + url.PathEscape(videoID)
}
