package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/browser"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/clipboard"
	"github.com/example/pagemark/internal/delegate"
	"github.com/example/pagemark/internal/overlay"
)

// session is an open page with its overlay controller.
type session struct {
	ctl        *overlay.Controller
	meta       delegate.Meta
	screenshot func(ctx context.Context) (image.Image, error)
	close      func() error
}

type sessionOptions struct {
	url      string
	strategy capture.Strategy
	headful  bool
	// wrap, when set, decorates the page surface; the window uses it to
	// mirror shapes.
	wrap func(overlay.Surface) overlay.Surface
}

// newSessionFn is swapped out in tests.
var newSessionFn = newSession

func newSession(ctx context.Context, r *root, opts sessionOptions) (*session, error) {
	cfg := r.config
	params := cfg.Params()
	logger := r.log()
	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Headful:   opts.headful || cfg.Browser.Headful,
		Stealth:   cfg.Browser.Stealth,
		Timeout:   cfg.Browser.Timeout,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	page, err := mgr.Open(ctx, opts.url)
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("open %s: %w", opts.url, err)
	}

	meta := delegate.Meta{URL: opts.url}
	if u, title, err := page.Info(ctx); err == nil {
		meta.URL, meta.Title = u, title
	} else {
		logger.Warn("page info", "error", err)
	}
	if vp, _, err := page.Viewport(ctx); err == nil {
		meta.Viewport = vp
	}

	ctlOpts := []overlay.Option{
		overlay.WithParams(params),
		overlay.WithColor(cfg.Color),
		overlay.WithLogger(logger),
		overlay.WithSurfaceFactory(func() (overlay.Surface, error) {
			s, err := browser.NewSurface(ctx, page, params)
			if err != nil {
				return nil, err
			}
			if opts.wrap != nil {
				return opts.wrap(s), nil
			}
			return s, nil
		}),
		overlay.WithRendererFactory(func(chrome []capture.Chrome, src capture.AnnotationSource) (capture.Renderer, error) {
			return capture.NewRenderer(opts.strategy, capture.Options{
				Document:    page,
				Chrome:      chrome,
				Annotations: src,
				Rasterizer:  mgr.Rasterizer(),
				Params:      params,
				Logger:      logger,
			})
		}),
	}
	if cfg.Browser.PanelSelector != "" {
		ctlOpts = append(ctlOpts, overlay.WithChrome(browser.NewPanelChrome(page, cfg.Browser.PanelSelector)))
	}
	ctl := overlay.New(ctlOpts...)

	return &session{
		ctl:        ctl,
		meta:       meta,
		screenshot: page.Screenshot,
		close: func() error {
			return errors.Join(ctl.Destroy(), page.Close(), mgr.Close())
		},
	}, nil
}

// saveCapture writes the PNG to path, or to a timestamped file in dir when
// path is empty.
func saveCapture(res capture.Result, path, dir string, now time.Time) (string, error) {
	if path == "" {
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, "pagemark-"+now.Format("20060102-150405")+".png")
	}
	if d := filepath.Dir(path); d != "." {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", d, err)
		}
	}
	if err := os.WriteFile(path, res.PNG, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// copyFn is swapped out in tests.
var copyFn = clipboard.WritePNG

// delegateCapture posts the snapshot built from the controller state.
func delegateCapture(ctx context.Context, r *root, s *session, res capture.Result) (delegate.Response, error) {
	client := delegate.NewClient(r.config.Endpoint, r.log())
	snap := delegate.Build(s.meta, s.ctl, res, time.Now())
	if err := snap.Validate(s.ctl.Params()); err != nil {
		return delegate.Response{}, fmt.Errorf("snapshot: %w", err)
	}
	resp, err := client.Send(ctx, snap)
	if err != nil {
		return delegate.Response{}, err
	}
	routed := resp.Routed != nil && *resp.Routed
	r.log().Info("snapshot delegated", "id", resp.ID, "routed", routed, "annotations", len(snap.Annotations))
	r.notifyDelegate(resp.ID, routed)
	return resp, nil
}

// defaultTool returns the configured start tool, falling back to circle.
func defaultTool(name string) annotation.Tool {
	if t, err := annotation.ParseTool(name); err == nil {
		return t
	}
	return annotation.ToolCircle
}
