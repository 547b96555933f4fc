package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/five82/sdpanel/internal/params"
)

// Client talks to the /sdapi/v1 HTTP API. It is safe for concurrent use and
// can be reconfigured at any time.
type Client struct {
	http        *http.Client
	userAgent   string
	readTimeout time.Duration

	mu         sync.RWMutex
	baseURL    *url.URL
	credential string
}

const (
	defaultUserAgent   = "sdpanel/0.1"
	defaultReadTimeout = 30 * time.Second

	pathOptions   = "/sdapi/v1/options"
	pathModels    = "/sdapi/v1/sd-models"
	pathSamplers  = "/sdapi/v1/samplers"
	pathTxt2Img   = "/sdapi/v1/txt2img"
	pathProgress  = "/sdapi/v1/progress"
	pathInterrupt = "/sdapi/v1/interrupt"
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout should be
// zero, since txt2img calls may legitimately run for minutes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithReadTimeout bounds every call except txt2img.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient builds an unconfigured Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{},
		userAgent:   defaultUserAgent,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure stores the endpoint and credential. It makes no network call.
func (c *Client) Configure(cfg BackendConfig) error {
	base, err := parseBaseURL(cfg.Endpoint)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = base
	c.credential = strings.TrimSpace(cfg.Credential)
	return nil
}

// Config returns the active configuration.
func (c *Client) Config() (BackendConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return BackendConfig{}, false
	}
	return BackendConfig{Endpoint: c.baseURL.String(), Credential: c.credential}, true
}

// TestConnection probes the backend. Any failure collapses to false.
func (c *Client) TestConnection(ctx context.Context) bool {
	var payload map[string]any
	if err := c.get(ctx, pathOptions, &payload); err != nil {
		return false
	}
	return payload != nil
}

// ListModels returns the checkpoints the backend knows about.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var payload []ModelInfo
	if err := c.get(ctx, pathModels, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ListSamplers returns the available samplers.
func (c *Client) ListSamplers(ctx context.Context) ([]SamplerInfo, error) {
	var payload []SamplerInfo
	if err := c.get(ctx, pathSamplers, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CurrentModel returns the loaded checkpoint title.
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	var payload optionsPayload
	if err := c.get(ctx, pathOptions, &payload); err != nil {
		return "", err
	}
	return payload.ModelCheckpoint, nil
}

// SetModel switches the loaded checkpoint. The backend may take a while to
// load it, so this call is not bounded by the read timeout.
func (c *Client) SetModel(ctx context.Context, name string) error {
	body := optionsPayload{ModelCheckpoint: name}
	return c.do(ctx, http.MethodPost, pathOptions, body, nil)
}

// SubmitGeneration runs txt2img and blocks until the backend answers. It
// imposes no timeout of its own; bound it through ctx if needed.
func (c *Client) SubmitGeneration(ctx context.Context, p params.Generation) (*GenerationResult, error) {
	req := txt2imgRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		CFGScale:       p.CFGScale,
		SamplerName:    p.Sampler,
		Seed:           p.Seed,
		BatchSize:      p.BatchSize,
		NIter:          1,
	}
	if model := strings.TrimSpace(p.Model); model != "" {
		req.OverrideSettings = map[string]any{"sd_model_checkpoint": model}
	}

	var payload txt2imgResponse
	if err := c.do(ctx, http.MethodPost, pathTxt2Img, req, &payload); err != nil {
		return nil, err
	}

	result := &GenerationResult{
		Info:       payload.Info,
		Parameters: payload.Parameters,
		Images:     make([][]byte, 0, len(payload.Images)),
	}
	for i, encoded := range payload.Images {
		img, err := DecodeImage(encoded)
		if err != nil {
			return nil, &BackendError{Op: pathTxt2Img, Err: fmt.Errorf("decode image %d: %w", i, err)}
		}
		result.Images = append(result.Images, img)
	}
	return result, nil
}

// PollProgress reads the backend's progress. An idle backend reports zero.
func (c *Client) PollProgress(ctx context.Context) (*Progress, error) {
	var payload progressPayload
	if err := c.get(ctx, pathProgress, &payload); err != nil {
		return nil, err
	}
	snap, err := payload.snapshot()
	if err != nil {
		return nil, &BackendError{Op: pathProgress, Err: err}
	}
	return snap, nil
}

// Interrupt asks the backend to stop the running job. The backend may finish
// its current step first.
func (c *Client) Interrupt(ctx context.Context) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.do(ctx, http.MethodPost, pathInterrupt, struct{}{}, nil)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c == nil || c.readTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.readTimeout)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if c == nil {
		return ErrNotConfigured
	}
	c.mu.RLock()
	base, credential := c.baseURL, c.credential
	c.mu.RUnlock()
	if base == nil {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &BackendError{Op: path, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return &BackendError{Op: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &BackendError{Op: path, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
		return &BackendError{Op: path, Status: resp.StatusCode, Body: trimBody(raw)}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &BackendError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
