// Package meta derives presentation metadata for videos: media URLs
// following the server's file layout, sidecar JSON descriptions, and a
// scrape of the watch page's OpenGraph tags as a last resort.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

// ErrNoMetadata indicates that no sidecar candidate produced metadata.
var ErrNoMetadata = errors.New("no metadata found")

// Metadata is what the media server knows about one video.
type Metadata struct {
	Title       string
	Description string
	Channel     string
	PosterURL   string
	Views       int64
	Likes       int64
	Duration    int64
}

// PosterURL returns the poster image URL for a video file. The media
// server stores posters next to the video with the extension swapped
// for .webp.
func PosterURL(mediaBase, fileName string) string {
	if fileName == "" {
		return ""
	}
	base := fileName
	if ext := path.Ext(fileName); ext != "" {
		base = strings.TrimSuffix(fileName, ext)
	}
	return joinMedia(mediaBase, base+".webp")
}

// VideoURL returns the playback URL for a video file.
func VideoURL(mediaBase, fileName string) string {
	if fileName == "" {
		return ""
	}
	return joinMedia(mediaBase, fileName)
}

func joinMedia(mediaBase, name string) string {
	return strings.TrimSuffix(mediaBase, "/") + "/" + name
}

// Prober fetches video metadata from the media server.
type Prober struct {
	client    *http.Client
	logger    *slog.Logger
	mediaBase string
	pageBase  string
}

// NewProber creates a prober for the media server rooted at mediaBase.
// pageBase is where public watch pages live; when every sidecar
// candidate misses, the watch page is scraped as a fallback. An empty
// pageBase disables the scrape.
func NewProber(mediaBase, pageBase string, client *http.Client, logger *slog.Logger) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Prober{
		client:    client,
		logger:    logger,
		mediaBase: strings.TrimSuffix(mediaBase, "/"),
		pageBase:  strings.TrimSuffix(pageBase, "/"),
	}
}

// sidecar mirrors the JSON the media server writes next to uploads.
// Field names vary across server versions, so every spelling that has
// shipped is accepted.
type sidecar struct {
	Meta            *sidecar `json:"meta,omitempty"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Channel         string   `json:"channel"`
	Author          string   `json:"author"`
	Uploader        string   `json:"uploader"`
	ViewCount       flexInt  `json:"view_count"`
	Views           flexInt  `json:"views"`
	ViewCountCamel  flexInt  `json:"viewCount"`
	LikeCount       flexInt  `json:"like_count"`
	Likes           flexInt  `json:"likes"`
	Duration        flexInt  `json:"duration"`
	LengthSeconds   flexInt  `json:"length_seconds"`
	DurationSeconds flexInt  `json:"durationSeconds"`
}

// flexInt decodes a count that older server versions emit as a quoted
// string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("parse count %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// Probe looks for a sidecar JSON file describing the video. Candidates
// are tried in order: base name, full file name, then backend video id.
// When every candidate misses, the video's watch page is scraped for
// OpenGraph tags. Returns ErrNoMetadata when nothing produced metadata.
func (p *Prober) Probe(ctx context.Context, fileName, videoID string) (Metadata, error) {
	base := fileName
	if ext := path.Ext(fileName); ext != "" {
		base = strings.TrimSuffix(fileName, ext)
	}

	var candidates []string
	if fileName != "" {
		candidates = append(candidates, base+".json")
		if base != fileName {
			candidates = append(candidates, fileName+".json")
		}
	}
	if videoID != "" {
		candidates = append(candidates, videoID+".json")
	}

	for _, name := range candidates {
		data, err := p.fetch(ctx, p.mediaBase+"/"+name)
		if err != nil {
			if errors.Is(err, errNotFound) {
				continue
			}
			return Metadata{}, fmt.Errorf("probe %s: %w", name, err)
		}

		var sc sidecar
		if err := json.Unmarshal(data, &sc); err != nil {
			p.logger.Warn("Malformed sidecar, trying next candidate", "name", name, "error", err)
			continue
		}
		m := sc.metadata()
		m.PosterURL = PosterURL(p.mediaBase, fileName)
		p.logger.Info("Sidecar metadata found", "name", name, "title", m.Title)
		return m, nil
	}

	if p.pageBase == "" || base == "" {
		return Metadata{}, ErrNoMetadata
	}
	p.logger.Info("No sidecar found, scraping watch page", "file_name", fileName)
	m, err := p.FromPage(ctx, p.pageBase+"/"+base)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Metadata{}, ErrNoMetadata
		}
		return Metadata{}, err
	}
	if m.PosterURL == "" {
		m.PosterURL = PosterURL(p.mediaBase, fileName)
	}
	return m, nil
}

func (sc *sidecar) metadata() Metadata {
	// Some server versions nest everything under a "meta" object.
	if sc.Meta != nil && sc.Title == "" {
		return sc.Meta.metadata()
	}
	channel := sc.Channel
	if channel == "" {
		channel = sc.Author
	}
	if channel == "" {
		channel = sc.Uploader
	}
	views := int64(sc.ViewCount)
	if views == 0 {
		views = int64(sc.Views)
	}
	if views == 0 {
		views = int64(sc.ViewCountCamel)
	}
	likes := int64(sc.LikeCount)
	if likes == 0 {
		likes = int64(sc.Likes)
	}
	duration := int64(sc.Duration)
	if duration == 0 {
		duration = int64(sc.LengthSeconds)
	}
	if duration == 0 {
		duration = int64(sc.DurationSeconds)
	}
	return Metadata{
		Title:       sc.Title,
		Description: sc.Description,
		Channel:     channel,
		Views:       views,
		Likes:       likes,
		Duration:    duration,
	}
}

// FromPage scrapes a watch page's OpenGraph tags. Used when the media
// server has no sidecar for a video.
func (p *Prober) FromPage(ctx context.Context, pageURL string) (Metadata, error) {
	data, err := p.fetch(ctx, pageURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch watch page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse watch page: %w", err)
	}

	m := Metadata{
		Title:       ogContent(doc, "og:title"),
		Description: ogContent(doc, "og:description"),
		PosterURL:   ogContent(doc, "og:image"),
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if m.Title == "" {
		return Metadata{}, ErrNoMetadata
	}
	return m, nil
}

func ogContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

var errNotFound = errors.New("not found")

func (p *Prober) fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			startTime := time.Now()
			resp, err := p.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				p.logger.Warn("HTTP request failed, will retry",
					"url", fetchURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					p.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(errNotFound)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying fetch after error", "attempt", n, "url", fetchURL, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("after retries: %w", err)
	}
	return body, nil
}
