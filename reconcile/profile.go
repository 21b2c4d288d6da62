package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"protube-client/bus"
	"protube-client/pkg/protube"
	"protube-client/store"
)

// ErrEmptyPost is returned when a channel post has no text.
var ErrEmptyPost = errors.New("empty post")

const (
	msgProfileSaved = "Perfil actualitzat"
	msgPostSaved    = "Publicació afegida"
)

// Profile reads the channel profile from the persisted store. An absent
// profile decodes to the zero value.
func (m *Manager) Profile(ctx context.Context) protube.ChannelProfile {
	return store.GetJSON(ctx, m.store, protube.KeyChannelProfile, protube.ChannelProfile{})
}

// UpdateProfile persists the channel profile and announces the change so
// every header and channel page rerenders. Requires a signed-in user.
func (m *Manager) UpdateProfile(ctx context.Context, profile protube.ChannelProfile) error {
	if _, err := m.requireLogin(ctx); err != nil {
		return err
	}
	store.SetJSON(ctx, m.store, protube.KeyChannelProfile, profile)
	m.bus.Publish(bus.TopicProfileUpdated, profile)
	m.toast(msgProfileSaved)
	m.logger.Info("Channel profile updated", "display_name", profile.DisplayName)
	return nil
}

// ChannelPosts reads the user's community posts, newest first.
func (m *Manager) ChannelPosts(ctx context.Context) []protube.ChannelPost {
	return store.GetJSON(ctx, m.store, protube.KeyChannelPosts, []protube.ChannelPost{})
}

// AddChannelPost prepends a community post to the channel feed.
func (m *Manager) AddChannelPost(ctx context.Context, text string) (protube.ChannelPost, error) {
	if strings.TrimSpace(text) == "" {
		return protube.ChannelPost{}, ErrEmptyPost
	}
	if _, err := m.requireLogin(ctx); err != nil {
		return protube.ChannelPost{}, err
	}

	post := protube.ChannelPost{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(text),
		CreatedAt: protube.Now(),
	}
	posts := m.ChannelPosts(ctx)
	updated := make([]protube.ChannelPost, 0, len(posts)+1)
	updated = append(updated, post)
	updated = append(updated, posts...)
	store.SetJSON(ctx, m.store, protube.KeyChannelPosts, updated)

	m.publishUpdate(protube.UpdateChannelUpdate, nil)
	m.toast(msgPostSaved)
	return post, nil
}
