package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"protube-client/pkg/protube"
)

// CommentsByVideo returns all comments on a video, by backend video id.
func (c *Client) CommentsByVideo(ctx context.Context, videoID string) ([]protube.Comment, error) {
	var comments []protube.Comment
	if err := c.getJSON(ctx, "/comentaris/video/"+url.PathEscape(videoID), &comments); err != nil {
		return nil, fmt.Errorf("list comments by video: %w", err)
	}
	return comments, nil
}

// CommentsByUser returns all comments written by a user.
func (c *Client) CommentsByUser(ctx context.Context, userID string) ([]protube.Comment, error) {
	var comments []protube.Comment
	if err := c.getJSON(ctx, "/comentaris/user/"+url.PathEscape(userID), &comments); err != nil {
		return nil, fmt.Errorf("list comments by user: %w", err)
	}
	return comments, nil
}

// SaveComment posts a new comment. The comment must carry a resolved
// backend video id; callers enforce that before getting here.
func (c *Client) SaveComment(ctx context.Context, comment protube.Comment) error {
	if err := c.postJSON(ctx, "/comentaris/save", comment, nil); err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}

// DeleteComment removes a comment by id.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	if _, err := c.request(ctx, http.MethodDelete, "/comentaris/"+url.PathEscape(commentID), "", nil); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
