// Package reconcile holds the client's state-reconciliation policy:
// reads come optimistically from the persisted store, mutations go to
// the backend first, and local state plus bus notifications follow only
// what the backend confirmed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"protube-client/bus"
	"protube-client/meta"
	"protube-client/pkg/protube"
	"protube-client/store"
)

var (
	// ErrLoginRequired is returned by mutations invoked without a
	// signed-in identity. No network request is made in that case.
	ErrLoginRequired = errors.New("login required")

	// ErrAlreadyInPlaylist is returned when a video is added to a
	// playlist that already contains it. The playlist is unchanged.
	ErrAlreadyInPlaylist = errors.New("video already in playlist")

	// ErrInFlight is returned when a toggle for the same (user, video)
	// pair has not resolved yet. Callers disable the control instead of
	// queueing.
	ErrInFlight = errors.New("operation already in flight")
)

// User-facing notices. Product copy is Catalan, matching the web app.
const (
	msgLoginRequired     = "Has d'iniciar sessió per fer això"
	msgActionFailed      = "No s'ha pogut completar l'acció"
	msgLiked             = "Afegit als teus m'agrada"
	msgUnliked           = "Eliminat dels teus m'agrada"
	msgWatchLaterAdded   = "Afegit a Veure més tard"
	msgWatchLaterRemoved = "Eliminat de Veure més tard"
	msgAlreadyInPlaylist = "Aquest vídeo ja és a la llista"
	msgPlaylistExists    = "Ja existeix una llista amb aquest nom"
	msgPlaylistCreated   = "Llista creada"
	msgPlaylistDeleted   = "Llista eliminada"
	msgAddedToPlaylist   = "Afegit a la llista"
	msgHistoryCleared    = "S'ha esborrat l'historial"
	msgCommentSaved      = "Comentari publicat"
	msgCommentDeleted    = "Comentari eliminat"
)

// UserAPI is the backend surface for accounts.
type UserAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, username, email, password string) (string, error)
}

// LikeAPI is the backend surface for per-(user, video) likes.
type LikeAPI interface {
	IsLiked(ctx context.Context, userID, videoID string) (bool, error)
	Like(ctx context.Context, userID, videoID string) error
	Unlike(ctx context.Context, userID, videoID string) error
	LikesByUser(ctx context.Context, userID string) ([]string, error)
}

// PlaylistAPI is the backend surface for playlists, including the
// distinguished Watch Later accessor.
type PlaylistAPI interface {
	Playlists(ctx context.Context, userID string) ([]protube.Playlist, error)
	CreatePlaylist(ctx context.Context, userID, name string) (protube.Playlist, error)
	WatchLater(ctx context.Context, userID string) (protube.Playlist, error)
	DeletePlaylist(ctx context.Context, playlistID string) error
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error
	RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) error
}

// HistoryAPI is the backend surface for viewing history.
type HistoryAPI interface {
	RecordView(ctx context.Context, userID, videoFileName string) error
	History(ctx context.Context, userID string) ([]protube.RemoteView, error)
}

// CommentAPI is the backend surface for comments.
type CommentAPI interface {
	SaveComment(ctx context.Context, comment protube.Comment) error
	DeleteComment(ctx context.Context, commentID string) error
	CommentsByVideo(ctx context.Context, videoID string) ([]protube.Comment, error)
}

// API is everything the manager needs from the backend client.
type API interface {
	UserAPI
	LikeAPI
	PlaylistAPI
	HistoryAPI
	CommentAPI
}

// Resolver maps client-side video keys to backend ids.
type Resolver interface {
	VideoID(ctx context.Context, key string) (string, error)
}

// MetadataProber looks up what the media server knows about a video.
type MetadataProber interface {
	Probe(ctx context.Context, fileName, videoID string) (meta.Metadata, error)
}

// Manager reconciles local state with the backend.
type Manager struct {
	api       API
	store     *store.Store
	bus       *bus.Bus
	resolver  Resolver
	prober    MetadataProber
	logger    *slog.Logger
	mediaBase string
	mu        sync.Mutex
	inflight  map[string]bool
}

// New creates a manager. mediaBase is the media server root used to
// derive poster and playback URLs for history entries.
func New(api API, st *store.Store, b *bus.Bus, resolver Resolver, mediaBase string, logger *slog.Logger) *Manager {
	return &Manager{
		api:       api,
		store:     st,
		bus:       b,
		resolver:  resolver,
		logger:    logger,
		mediaBase: mediaBase,
		inflight:  map[string]bool{},
	}
}

// SetProber attaches an optional metadata prober used to fill in
// missing history titles. Nil disables probing.
func (m *Manager) SetProber(p MetadataProber) {
	m.prober = p
}

// Login authenticates against the backend and records the identity.
// The backend answers with the user id only; the username defaults to
// the email's local part until a profile update supplies a better one.
func (m *Manager) Login(ctx context.Context, email, password string) (protube.Identity, error) {
	userID, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.toast(msgActionFailed)
		return protube.Identity{}, fmt.Errorf("login: %w", err)
	}
	username := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}
	ident := protube.Identity{UserID: userID, Username: username}
	m.SetIdentity(ctx, ident)
	return ident, nil
}

// Register creates an account and records the identity.
func (m *Manager) Register(ctx context.Context, username, email, password string) (protube.Identity, error) {
	userID, err := m.api.Register(ctx, username, email, password)
	if err != nil {
		m.toast(msgActionFailed)
		return protube.Identity{}, fmt.Errorf("register: %w", err)
	}
	ident := protube.Identity{UserID: userID, Username: username}
	m.SetIdentity(ctx, ident)
	return ident, nil
}

// Identity reads the signed-in user from the persisted store. A partial
// record counts as logged out. The avatar comes from the channel
// profile when one has been saved.
func (m *Manager) Identity(ctx context.Context) protube.Identity {
	userID, _ := m.store.Get(ctx, protube.KeyUserID)
	username, _ := m.store.Get(ctx, protube.KeyUsername)
	ident := protube.Identity{UserID: userID, Username: username}
	if ident.LoggedIn() {
		ident.AvatarURL = m.Profile(ctx).AvatarURL
	}
	return ident
}

// SetIdentity records a signed-in user and announces the auth change.
func (m *Manager) SetIdentity(ctx context.Context, ident protube.Identity) {
	m.store.Set(ctx, protube.KeyAuthFlag, "true")
	m.store.Set(ctx, protube.KeyUserID, ident.UserID)
	m.store.Set(ctx, protube.KeyUsername, ident.Username)
	m.publishUpdate(protube.UpdateAuth, nil)
}

// Logout clears the identity keys and announces the auth change. Cached
// entity state stays; it is keyed per user on the backend anyway.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Remove(ctx, protube.KeyAuthFlag)
	m.store.Remove(ctx, protube.KeyUserID)
	m.store.Remove(ctx, protube.KeyUsername)
	m.publishUpdate(protube.UpdateAuth, nil)
}

// requireLogin returns the identity, or raises the login-required flow
// (notice plus login dialog) and ErrLoginRequired without touching the
// network.
func (m *Manager) requireLogin(ctx context.Context) (protube.Identity, error) {
	ident := m.Identity(ctx)
	if ident.LoggedIn() {
		return ident, nil
	}
	m.toast(msgLoginRequired)
	m.bus.Publish(bus.TopicOpenLogin, nil)
	return protube.Identity{}, ErrLoginRequired
}

// begin marks an operation in flight for a key, or reports ErrInFlight.
func (m *Manager) begin(key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[key] {
		return nil, ErrInFlight
	}
	m.inflight[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.inflight, key)
	}, nil
}

func (m *Manager) toast(message string) {
	m.bus.Publish(bus.TopicToast, bus.Toast{Message: message})
}

func (m *Manager) publishUpdate(updateType string, context map[string]string) {
	m.bus.Publish(bus.TopicStateUpdated, bus.StateUpdate{Type: updateType, Context: context})
}

// resolveVideo maps a video key to its backend id, treating an unknown
// key as a hard failure with a user-visible notice.
func (m *Manager) resolveVideo(ctx context.Context, key string) (string, error) {
	videoID, err := m.resolver.VideoID(ctx, key)
	if err != nil {
		m.toast(msgActionFailed)
		return "", err
	}
	if videoID == "" {
		m.toast(msgActionFailed)
		m.logger.Warn("Video key did not resolve to a backend id", "key", key)
		return "", errors.New("unknown video: " + key)
	}
	return videoID, nil
}
