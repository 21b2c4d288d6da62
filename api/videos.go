package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"protube-client/pkg/protube"
)

// AllVideos fetches the full video listing with titles and backend ids.
func (c *Client) AllVideos(ctx context.Context) ([]protube.Video, error) {
	var videos []protube.Video
	if err := c.getJSON(ctx, "/videos/all", &videos); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// DeleteVideo removes a video by backend id.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := c.request(ctx, http.MethodDelete, "/videos/"+url.PathEscape(videoID), "", nil); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}

// UploadItem is one file plus its metadata for the upload endpoint.
type UploadItem struct {
	FileName    string
	Title       string
	Description string
	ThumbName   string
	Content     []byte
	Thumbnail   []byte
	Published   bool
}

type uploadMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Upload sends one video as a multipart request: the file part, an
// optional thumbnail part, a JSON metadata part, and the publish flag.
func (c *Client) Upload(ctx context.Context, item UploadItem) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	file, err := w.CreateFormFile("file", item.FileName)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := file.Write(item.Content); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}

	if len(item.Thumbnail) > 0 {
		thumbName := item.ThumbName
		if thumbName == "" {
			thumbName = "thumbnail"
		}
		thumb, err := w.CreateFormFile("thumbnail", thumbName)
		if err != nil {
			return fmt.Errorf("create thumbnail part: %w", err)
		}
		if _, err := thumb.Write(item.Thumbnail); err != nil {
			return fmt.Errorf("write thumbnail part: %w", err)
		}
	}

	metaJSON, err := json.Marshal(uploadMeta{Title: item.Title, Description: item.Description})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Disposition", `form-data; name="meta"`)
	metaHeader.Set("Content-Type", "application/json")
	meta, err := w.CreatePart(metaHeader)
	if err != nil {
		return fmt.Errorf("create meta part: %w", err)
	}
	if _, err := meta.Write(metaJSON); err != nil {
		return fmt.Errorf("write meta part: %w", err)
	}

	if err := w.WriteField("published", strconv.FormatBool(item.Published)); err != nil {
		return fmt.Errorf("write published field: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	if _, err := c.request(ctx, http.MethodPost, "/videos/upload", w.FormDataContentType(), buf.Bytes()); err != nil {
		return fmt.Errorf("upload %s: %w", item.FileName, err)
	}
	return nil
}
