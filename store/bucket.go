package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// BucketBackend persists keys as objects in a Cloud Storage bucket, for
// agents running on ephemeral hosts where a local state directory does
// not survive. Operations are retried; a missing object is reported as
// ErrNotExist without retrying.
type BucketBackend struct {
	client *storage.Client
	logger *slog.Logger
	bucket string
}

// NewBucketBackend returns a backend storing objects in bucket.
func NewBucketBackend(client *storage.Client, bucket string, logger *slog.Logger) *BucketBackend {
	return &BucketBackend{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

func (b *BucketBackend) object(key string) string {
	return filePrefix + key
}

// Read returns the bytes stored for key.
func (b *BucketBackend) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := b.client.Bucket(b.bucket).Object(b.object(key)).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotExist)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					b.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			b.logger.Info("Retrying state read after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read after retries: %w", err)
	}
	return data, nil
}

// Write stores data under key, replacing any previous value.
func (b *BucketBackend) Write(ctx context.Context, key string, data []byte) error {
	err := retry.Do(
		func() error {
			w := b.client.Bucket(b.bucket).Object(b.object(key)).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					b.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			b.logger.Info("Retrying state write after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("write after retries: %w", err)
	}
	return nil
}

// Remove deletes key. Deletion is idempotent; a missing object is not
// an error.
func (b *BucketBackend) Remove(ctx context.Context, key string) error {
	err := retry.Do(
		func() error {
			if deleteErr := b.client.Bucket(b.bucket).Object(b.object(key)).Delete(ctx); deleteErr != nil {
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotExist)
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			b.logger.Info("Retrying state delete after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil && !IsNotExist(err) {
		return fmt.Errorf("delete after retries: %w", err)
	}
	return nil
}

// Keys lists all stored keys.
func (b *BucketBackend) Keys(ctx context.Context) ([]string, error) {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{
		Prefix: filePrefix,
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, filePrefix))
	}
	return keys, nil
}
