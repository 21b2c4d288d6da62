package api

import (
	"context"
	"fmt"
	"net/url"

	"protube-client/pkg/protube"
)

type viewRequest struct {
	UserID        string `json:"userId"`
	VideoFileName string `json:"videoFileName"`
}

// RecordView registers one view of a video for the user.
func (c *Client) RecordView(ctx context.Context, userID, videoFileName string) error {
	if err := c.postJSON(ctx, "/history/view", viewRequest{UserID: userID, VideoFileName: videoFileName}, nil); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// History returns the server-recorded viewing history for a user,
// newest first.
func (c *Client) History(ctx context.Context, userID string) ([]protube.RemoteView, error) {
	var views []protube.RemoteView
	if err := c.getJSON(ctx, "/history/"+url.PathEscape(userID), &views); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return views, nil
}
