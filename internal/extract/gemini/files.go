package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paperflow/paperflow/internal/extract"
)

// fileRef identifies a file uploaded to the file API.
type fileRef struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	State    string `json:"state"`
	MimeType string `json:"mimeType"`
}

const (
	stateProcessing = "PROCESSING"
	stateFailed     = "FAILED"
)

var extraMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".txt":  "text/plain",
}

func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extraMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// uploadFile transfers the file to the file API with a raw media upload.
func (c *Client) uploadFile(ctx context.Context, path string) (*fileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mt := mimeType(path)

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mt)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload status %d: %s", resp.StatusCode, buf.String())
	}

	var out struct {
		File fileRef `json:"file"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" {
		return nil, fmt.Errorf("upload response missing file name")
	}
	if out.File.MimeType == "" {
		out.File.MimeType = mt
	}
	c.log.Debug("extract.file_uploaded", "name", out.File.Name, "state", out.File.State)
	return &out.File, nil
}

// waitActive polls the remote file state until it leaves PROCESSING. A FAILED
// state is a fatal extraction error, not a retry candidate.
func (c *Client) waitActive(ctx context.Context, ref *fileRef) error {
	for ref.State == stateProcessing {
		c.log.Debug("extract.waiting_for_remote_processing", "name", ref.Name)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", extract.ErrExtraction, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}

		cur, err := c.getFile(ctx, ref.Name)
		if err != nil {
			return fmt.Errorf("%w: poll file state: %v", extract.ErrExtraction, err)
		}
		ref.State = cur.State
		if cur.URI != "" {
			ref.URI = cur.URI
		}
	}
	if ref.State == stateFailed {
		return fmt.Errorf("%w: remote file processing failed", extract.ErrExtraction)
	}
	return nil
}

func (c *Client) getFile(ctx context.Context, name string) (*fileRef, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), name, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get file status %d: %s", resp.StatusCode, buf.String())
	}
	var ref fileRef
	if err := json.Unmarshal(buf.Bytes(), &ref); err != nil {
		return nil, fmt.Errorf("decode file resource: %w", err)
	}
	return &ref, nil
}

// deleteFile removes the uploaded file from the remote service.
func (c *Client) deleteFile(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), name, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete status %d", resp.StatusCode)
	}
	return nil
}
