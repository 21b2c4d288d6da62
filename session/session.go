// Package session tracks the tab-scoped mappings between an in-progress
// upload's source file name and its client-generated preview URL. The
// registry lives only as long as the process; the underlying preview
// resources must be released explicitly, so callers hook Close into
// shutdown to avoid leaking them across a long-lived session with many
// uploads.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry maps upload file names to preview URLs.
type Registry struct {
	logger *slog.Logger
	revoke func(blobURL string)
	blobs  map[string]string
	mu     sync.Mutex
	closed bool
}

// New creates a registry. revoke is called once per registered URL when
// it is dropped or the registry closes; it may be nil when the preview
// resource needs no explicit release.
func New(revoke func(blobURL string), logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		revoke: revoke,
		blobs:  make(map[string]string),
	}
}

// CreateBlobURL generates a fresh preview URL for fileName and registers
// it. Registering the same file again replaces the old mapping and
// revokes its URL.
func (r *Registry) CreateBlobURL(fileName string) string {
	blobURL := "blob:protube/" + uuid.NewString()
	r.Register(fileName, blobURL)
	return blobURL
}

// Register stores the mapping from fileName to blobURL.
func (r *Registry) Register(fileName, blobURL string) {
	r.mu.Lock()
	old, replaced := r.blobs[fileName]
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Blob registered after session close, revoking immediately", "file", fileName)
		r.release(blobURL)
		return
	}
	r.blobs[fileName] = blobURL
	r.mu.Unlock()

	if replaced && old != blobURL {
		r.release(old)
	}
}

// Lookup returns the preview URL registered for fileName.
func (r *Registry) Lookup(fileName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blobURL, ok := r.blobs[fileName]
	return blobURL, ok
}

// Drop removes one mapping and revokes its URL.
func (r *Registry) Drop(fileName string) {
	r.mu.Lock()
	blobURL, ok := r.blobs[fileName]
	delete(r.blobs, fileName)
	r.mu.Unlock()

	if ok {
		r.release(blobURL)
	}
}

// Close revokes every registered URL and empties the registry. It is the
// unload hook: safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	urls := make([]string, 0, len(r.blobs))
	for _, u := range r.blobs {
		urls = append(urls, u)
	}
	r.blobs = make(map[string]string)
	r.mu.Unlock()

	for _, u := range urls {
		r.release(u)
	}
	r.logger.Debug("Session blob registry closed", "revoked", len(urls))
}

func (r *Registry) release(blobURL string) {
	if r.revoke != nil {
		r.revoke(blobURL)
	}
}
