package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"protube-client/meta"
	"protube-client/pkg/protube"
	"protube-client/store"
)

// SyncAll refreshes every cached entity from the backend: likes,
// playlists, Watch Later, and history. Each entity is attempted even
// when an earlier one fails; the combined error reports everything that
// went wrong. Signed-out users have nothing to reconcile.
func (m *Manager) SyncAll(ctx context.Context) error {
	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		m.logger.Info("Sync skipped, no signed-in user")
		return nil
	}

	startTime := time.Now()
	m.logger.Info("Starting full sync", "user_id", ident.UserID)
	var errs []error

	if ids, err := m.api.LikesByUser(ctx, ident.UserID); err != nil {
		m.logger.Warn("Syncing likes failed", "error", err)
		errs = append(errs, fmt.Errorf("likes: %w", err))
	} else {
		store.SetJSON(ctx, m.store, protube.KeyLiked, ids)
		m.publishUpdate(protube.UpdateLiked, nil)
	}

	if lists, err := m.api.Playlists(ctx, ident.UserID); err != nil {
		m.logger.Warn("Syncing playlists failed", "error", err)
		errs = append(errs, fmt.Errorf("playlists: %w", err))
	} else {
		store.SetJSON(ctx, m.store, protube.KeyPlaylists, lists)
		m.publishUpdate(protube.UpdatePlaylists, nil)
	}

	if list, err := m.api.WatchLater(ctx, ident.UserID); err != nil {
		m.logger.Warn("Syncing watch later failed", "error", err)
		errs = append(errs, fmt.Errorf("watch later: %w", err))
	} else {
		store.SetJSON(ctx, m.store, protube.KeyWatchLater, list.VideoIDs)
		m.publishUpdate(protube.UpdateWatchLater, nil)
	}

	if views, err := m.api.History(ctx, ident.UserID); err != nil {
		m.logger.Warn("Syncing history failed", "error", err)
		errs = append(errs, fmt.Errorf("history: %w", err))
	} else {
		entries := make([]protube.HistoryEntry, 0, len(views))
		for _, v := range views {
			entries = append(entries, protube.HistoryEntry{
				VideoKey:  v.VideoFileName,
				Title:     v.Title,
				PosterURL: meta.PosterURL(m.mediaBase, v.VideoFileName),
				VideoURL:  meta.VideoURL(m.mediaBase, v.VideoFileName),
				ViewedAt:  parseViewedAt(v.ViewedAt),
			})
		}
		if len(entries) > protube.MaxHistoryEntries {
			entries = entries[:protube.MaxHistoryEntries]
		}
		store.SetJSON(ctx, m.store, protube.KeyHistory, entries)
	}

	m.logger.Info("Full sync finished",
		"user_id", ident.UserID,
		"failures", len(errs),
		"duration_ms", time.Since(startTime).Milliseconds())
	return errors.Join(errs...)
}
