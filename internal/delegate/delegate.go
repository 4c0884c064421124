// Package delegate hands a captured snapshot to an agent endpoint.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
)

// ErrBadResponse reports a reply that does not acknowledge the snapshot.
var ErrBadResponse = errors.New("delegate: bad response")

// Meta describes the page a snapshot was taken of.
type Meta struct {
	URL      string
	Title    string
	Viewport annotation.Viewport
}

// Build assembles the snapshot payload. The annotations are copied.
func Build(meta Meta, src capture.AnnotationSource, res capture.Result, now time.Time) annotation.Snapshot {
	anns := []annotation.Annotation{}
	if src != nil {
		anns = src.Annotations()
	}
	return annotation.Snapshot{
		URL:               meta.URL,
		Title:             meta.Title,
		Viewport:          meta.Viewport,
		Timestamp:         annotation.Timestamp(now),
		ScreenshotDataURL: res.DataURL,
		Annotations:       anns,
	}
}

// Response is the acknowledgement returned by the endpoint.
type Response struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Routed  *bool  `json:"routed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client posts snapshots to Endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Logger   *slog.Logger
}

// NewClient returns a Client with a bounded timeout.
func NewClient(endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Logger:   logger,
	}
}

const maxResponseBytes = 1 << 20

// Send posts snap as JSON and validates the acknowledgement.
func (c *Client) Send(ctx context.Context, snap annotation.Snapshot) (Response, error) {
	if strings.TrimSpace(c.Endpoint) == "" {
		return Response{}, fmt.Errorf("delegate: no endpoint configured")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return Response{}, fmt.Errorf("delegate: encode snapshot: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("delegate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("delegate: post snapshot: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("delegate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "success is false"
		}
		return Response{}, fmt.Errorf("%w: %s", ErrBadResponse, msg)
	}
	if out.ID == "" {
		return Response{}, fmt.Errorf("%w: missing id", ErrBadResponse)
	}
	if c.Logger != nil {
		c.Logger.Info("delegate: snapshot accepted", "id", out.ID, "annotations", len(snap.Annotations))
	}
	return out, nil
}
