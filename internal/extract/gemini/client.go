// Package gemini implements the extraction client against the Gemini file and
// generation HTTP APIs.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/paperflow/paperflow/internal/config"
	"github.com/paperflow/paperflow/internal/extract"
	"github.com/paperflow/paperflow/internal/retry"
	"github.com/paperflow/paperflow/internal/schema"
)

// Config for the Gemini client.
type Config struct {
	APIKey       string        // if empty, falls back to env GEMINI_API_KEY
	BaseURL      string        // default https://generativelanguage.googleapis.com
	Model        string        // e.g. "gemini-1.5-flash"
	Timeout      time.Duration // http client timeout
	PollInterval time.Duration // remote file state poll interval
	Backoff      retry.Config  // generation retry budget

	// Now supplies the prompt's reference date; tests pin it.
	Now func() time.Time
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = retry.DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

// ProcessFile uploads the file, waits for the remote service to finish
// processing it, and issues a schema-constrained generation request. The
// uploaded file is deleted best-effort on every exit path. Transient
// generation failures are retried per the configured backoff; exhaustion
// yields extract.ErrRetryExhausted.
func (c *Client) ProcessFile(ctx context.Context, path string, profile *config.Profile) (map[string]any, error) {
	rid := uuid.New().String()
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: source file: %v", extract.ErrExtraction, err)
	}

	c.log.Info("extract.start",
		"req_id", rid,
		"file", path,
		"profile", profile.Name,
		"model", c.cfg.Model,
	)

	ref, err := c.uploadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: upload: %v", extract.ErrExtraction, err)
	}
	defer func() {
		if derr := c.deleteFile(context.WithoutCancel(ctx), ref.Name); derr != nil {
			c.log.Warn("extract.remote_cleanup_failed", "req_id", rid, "name", ref.Name, "error", derr)
		} else {
			c.log.Debug("extract.remote_file_deleted", "req_id", rid, "name", ref.Name)
		}
	}()

	if err := c.waitActive(ctx, ref); err != nil {
		return nil, err
	}

	respSchema := schema.Build(profile.Fields)
	validator, err := compileValidator(schema.JSONSchema(profile.Fields))
	if err != nil {
		return nil, fmt.Errorf("%w: compile validation schema: %v", extract.ErrExtraction, err)
	}
	prompt := buildPrompt(profile.Description, c.cfg.Now())

	result, err := retry.DoWithResult(ctx, c.cfg.Backoff, func() (map[string]any, error) {
		return c.generate(ctx, rid, prompt, respSchema, validator, ref)
	})
	if err != nil {
		if retry.IsNonRetryable(err) {
			return nil, fmt.Errorf("%w: %v", extract.ErrExtraction, err)
		}
		c.log.Error("extract.retries_exhausted",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("%w: %v", extract.ErrRetryExhausted, err)
	}

	c.log.Info("extract.ok",
		"req_id", rid,
		"fields", len(result),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// generate issues one generation attempt. Parse and shape failures are
// returned as plain (retryable) errors.
func (c *Client) generate(ctx context.Context, rid, prompt string, respSchema map[string]any, validator *jsonschema.Schema, ref *fileRef) (map[string]any, error) {
	body := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": prompt},
				{"fileData": map[string]any{
					"mimeType": ref.MimeType,
					"fileUri":  ref.URI,
				}},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":      0.1,
			"responseMimeType": "application/json",
			"responseSchema":   respSchema,
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model, c.cfg.APIKey)
	raw, err := c.postJSON(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if resp.PromptFeedback.BlockReason != "" {
		c.log.Warn("extract.response_blocked", "req_id", rid, "reason", resp.PromptFeedback.BlockReason)
		return nil, fmt.Errorf("generation blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		c.log.Warn("extract.response_empty", "req_id", rid)
		return nil, fmt.Errorf("empty generation response")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		c.log.Warn("extract.response_not_json", "req_id", rid, "error", err)
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := validator.Validate(parsed); err != nil {
		c.log.Warn("extract.response_shape_mismatch", "req_id", rid, "error", err)
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}
	result, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini http error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("extract.response_body_close_error", "error", cerr)
		}
	}()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func compileValidator(js map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(js)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile-schema.json", bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return compiler.Compile("profile-schema.json")
}
