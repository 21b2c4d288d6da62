package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"protube-client/pkg/protube"
)

// ErrEmptyComment is returned when a comment has no text.
var ErrEmptyComment = errors.New("empty comment")

// SaveComment publishes a comment on a video. The video key must
// resolve to a backend id; an unresolved key fails loudly instead of
// posting a comment the backend cannot attach.
func (m *Manager) SaveComment(ctx context.Context, videoKey, title, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyComment
	}
	ident, err := m.requireLogin(ctx)
	if err != nil {
		return err
	}
	videoID, err := m.resolveVideo(ctx, videoKey)
	if err != nil {
		return err
	}

	comment := protube.Comment{
		UserID:      ident.UserID,
		VideoID:     videoID,
		Title:       title,
		Description: text,
	}
	if err := m.api.SaveComment(ctx, comment); err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("save comment: %w", err)
	}
	m.publishUpdate(protube.UpdateComment, map[string]string{"videoId": videoID})
	m.toast(msgCommentSaved)
	return nil
}

// DeleteComment removes a comment after confirmation.
func (m *Manager) DeleteComment(ctx context.Context, commentID string, confirm func() bool) error {
	if _, err := m.requireLogin(ctx); err != nil {
		return err
	}
	if confirm != nil && !confirm() {
		return nil
	}
	if err := m.api.DeleteComment(ctx, commentID); err != nil {
		m.toast(msgActionFailed)
		return fmt.Errorf("delete comment: %w", err)
	}
	m.publishUpdate(protube.UpdateComment, nil)
	m.toast(msgCommentDeleted)
	return nil
}

// Comments lists the comments on a video by its client-side key.
func (m *Manager) Comments(ctx context.Context, videoKey string) ([]protube.Comment, error) {
	videoID, err := m.resolver.VideoID(ctx, videoKey)
	if err != nil {
		return nil, err
	}
	if videoID == "" {
		return nil, nil
	}
	comments, err := m.api.CommentsByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
