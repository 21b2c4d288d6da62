// Package protube contains the core domain types shared by the client
// state engine: identity, history, playlists, comments, and the update
// discriminators carried on the notification bus.
package protube

import "time"

// Identity is the signed-in user as recorded in the persisted store.
// Either field may be missing; callers must treat a partial identity as
// logged out.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// LoggedIn reports whether the identity is complete enough to act on.
func (id Identity) LoggedIn() bool {
	return id.UserID != "" && id.Username != ""
}

// HistoryEntry is one viewed video in the local history cache.
// ViewedAt is Unix milliseconds, matching the stored legacy format.
type HistoryEntry struct {
	VideoKey  string `json:"name"`
	Title     string `json:"title,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`
	VideoURL  string `json:"videoUrl,omitempty"`
	ViewedAt  int64  `json:"viewedAt"`
}

// RemoteView is one server-recorded view, as returned by the history
// endpoint. The server list is authoritative when a user is signed in;
// it is never merged with the local cache.
type RemoteView struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	VideoFileName string `json:"videoFileName"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ViewedAt      string `json:"viewedAt"`
}

// Playlist is a server-owned ordered collection of video ids.
type Playlist struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	UserID   string   `json:"userId"`
	VideoIDs []string `json:"videoIds"`
}

// Contains reports whether the playlist already holds the given video.
func (p Playlist) Contains(videoID string) bool {
	for _, id := range p.VideoIDs {
		if id == videoID {
			return true
		}
	}
	return false
}

// Comment is always server-backed and never cached persistently.
// The wire field names follow the backend DTO.
type Comment struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	VideoID     string `json:"videoId"`
	Title       string `json:"titulo"`
	Description string `json:"descripcion"`
}

// ChannelProfile is the user's channel presentation: display name,
// avatar, and blurb. Stored client-side under the legacy profile key.
type ChannelProfile struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Description string `json:"description"`
}

// ChannelPost is one community post on the user's channel, newest
// first. CreatedAt is Unix milliseconds.
type ChannelPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Video is one entry of the full listing endpoint.
type Video struct {
	VideoID     string `json:"videoId"`
	FileName    string `json:"fileName"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ChannelVideo is one entry of the legacy client-side uploads list,
// newest first, deduplicated by file name.
type ChannelVideo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	PosterURL   string `json:"posterUrl"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"createdAt"`
	Published   bool   `json:"published"`
}

// Update type discriminators carried on the state-updated topic.
const (
	UpdateAuth          = "auth"
	UpdateChannelUpload = "channel_upload"
	UpdateChannelUpdate = "channel_update"
	UpdateLiked         = "liked"
	UpdateWatchLater    = "watch_later"
	UpdatePlaylists     = "playlists"
	UpdateComment       = "comentari"
)

// Persisted-store keys. The legacy names are preserved so state written
// by earlier client versions keeps working.
const (
	KeyAuthFlag       = "protube_user"
	KeyUserID         = "protube_user_id"
	KeyUsername       = "protube_username"
	KeyHistory        = "protube_history"
	KeyWatchLater     = "protube_watch_later"
	KeyLiked          = "protube_liked"
	KeyPlaylists      = "protube_playlists"
	KeyChannelVideos  = "protube_channel_videos"
	KeyChannelPosts   = "protube_channel_posts"
	KeyChannelProfile = "protube_channel_profile"
)

// MaxHistoryEntries bounds the local history cache; the oldest entry is
// evicted past this cap.
const MaxHistoryEntries = 200

// WatchLaterName is the distinguished playlist provisioned implicitly
// per user by the backend.
const WatchLaterName = "Watch Later"

// Now returns the current time as Unix milliseconds, the unit used by
// the legacy stored data.
func Now() int64 {
	return time.Now().UnixMilli()
}
