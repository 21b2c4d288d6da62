package reconcile

import (
	"context"
	"time"

	"protube-client/meta"
	"protube-client/pkg/protube"
	"protube-client/store"
)

// InsertHistory places an entry at the head of the history list,
// removing any earlier entry for the same video key and trimming to the
// cap. The input slice is not modified.
func InsertHistory(entries []protube.HistoryEntry, entry protube.HistoryEntry) []protube.HistoryEntry {
	updated := make([]protube.HistoryEntry, 0, len(entries)+1)
	updated = append(updated, entry)
	for _, e := range entries {
		if e.VideoKey == entry.VideoKey {
			continue
		}
		updated = append(updated, e)
	}
	if len(updated) > protube.MaxHistoryEntries {
		updated = updated[:protube.MaxHistoryEntries]
	}
	return updated
}

// RecordView notes that a video was watched. The local cache is always
// updated, signed in or not; the backend record is best effort and a
// failure there only logs a warning.
func (m *Manager) RecordView(ctx context.Context, videoKey, title string) {
	if title == "" && m.prober != nil {
		if md, err := m.prober.Probe(ctx, videoKey, ""); err == nil {
			title = md.Title
		}
	}
	entry := protube.HistoryEntry{
		VideoKey:  videoKey,
		Title:     title,
		PosterURL: meta.PosterURL(m.mediaBase, videoKey),
		VideoURL:  meta.VideoURL(m.mediaBase, videoKey),
		ViewedAt:  protube.Now(),
	}
	entries := store.GetJSON(ctx, m.store, protube.KeyHistory, []protube.HistoryEntry{})
	store.SetJSON(ctx, m.store, protube.KeyHistory, InsertHistory(entries, entry))

	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		return
	}
	if err := m.api.RecordView(ctx, ident.UserID, videoKey); err != nil {
		m.logger.Warn("Recording view on backend failed, local history kept",
			"video_key", videoKey, "error", err)
	}
}

// History returns the viewing history, newest first. Signed-in users
// get the backend's list; everyone else gets the local cache. The two
// are never merged: the backend list is authoritative when available.
func (m *Manager) History(ctx context.Context) []protube.HistoryEntry {
	ident := m.Identity(ctx)
	if !ident.LoggedIn() {
		return store.GetJSON(ctx, m.store, protube.KeyHistory, []protube.HistoryEntry{})
	}
	views, err := m.api.History(ctx, ident.UserID)
	if err != nil {
		m.logger.Warn("Fetching history failed, using local cache", "error", err)
		return store.GetJSON(ctx, m.store, protube.KeyHistory, []protube.HistoryEntry{})
	}
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
	return entries
}

// ClearHistory drops the local history cache after confirmation.
func (m *Manager) ClearHistory(ctx context.Context, confirm func() bool) {
	if confirm != nil && !confirm() {
		return
	}
	m.store.Remove(ctx, protube.KeyHistory)
	m.toast(msgHistoryCleared)
}

// parseViewedAt converts the backend's RFC 3339 timestamp to Unix
// milliseconds, the unit of the legacy stored data. Unparseable input
// becomes zero rather than an error; display code treats it as unknown.
func parseViewedAt(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
