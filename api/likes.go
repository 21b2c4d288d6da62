package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func likePath(userID, videoID string) string {
	return "/likes/" + url.PathEscape(userID) + "/" + url.PathEscape(videoID)
}

// IsLiked queries whether userID has liked videoID.
func (c *Client) IsLiked(ctx context.Context, userID, videoID string) (bool, error) {
	var liked bool
	if err := c.getJSON(ctx, likePath(userID, videoID), &liked); err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return liked, nil
}

// Like records a like for the (user, video) pair.
func (c *Client) Like(ctx context.Context, userID, videoID string) error {
	if _, err := c.request(ctx, http.MethodPost, likePath(userID, videoID), "", nil); err != nil {
		return fmt.Errorf("like video: %w", err)
	}
	return nil
}

// Unlike removes the like for the (user, video) pair.
func (c *Client) Unlike(ctx context.Context, userID, videoID string) error {
	if _, err := c.request(ctx, http.MethodDelete, likePath(userID, videoID), "", nil); err != nil {
		return fmt.Errorf("unlike video: %w", err)
	}
	return nil
}

// LikesByUser returns the video ids the user has liked.
func (c *Client) LikesByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/likes/user/"+url.PathEscape(userID), &ids); err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	return ids, nil
}
