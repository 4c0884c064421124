package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/appstate"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/overlay"
	"github.com/example/pagemark/internal/theme"
)

// annotateCmd represents the annotate subcommand.
type annotateCmd struct {
	url      string
	tool     string
	color    string
	strategy string
	output   string
	headful  bool
	*root
	fs *flag.FlagSet
}

func (a *annotateCmd) Program() string { return a.root.Program() + " annotate" }

func (a *annotateCmd) FlagSet() *flag.FlagSet {
	return a.fs
}

// runWindowFn is swapped out in tests.
var runWindowFn = func(app *appstate.AppState) { app.Run() }

func parseAnnotateCmd(args []string, r *root) (*annotateCmd, error) {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	a := &annotateCmd{root: r, fs: fs}
	fs.Usage = usageFunc(a)
	fs.StringVar(&a.tool, "tool", r.config.Tool, "initial tool: circle, arrow or text")
	fs.StringVar(&a.color, "color", r.config.Color, "initial annotation color as #rrggbb")
	fs.StringVar(&a.strategy, "strategy", r.config.Strategy, "renderer: svg or composite")
	fs.StringVar(&a.output, "output", "", "file the s key saves to (default: timestamped file in save_dir)")
	fs.BoolVar(&a.headful, "headful", false, "also show the browser window")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, &UsageError{of: a}
	}
	a.url = fs.Arg(0)
	if _, err := annotation.ParseTool(a.tool); err != nil {
		return nil, err
	}
	if _, err := theme.ParseColor(a.color); err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", a.color, err)
	}
	if _, err := capture.ParseStrategy(a.strategy); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *annotateCmd) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy, err := capture.ParseStrategy(a.strategy)
	if err != nil {
		return err
	}
	a.config.Color = a.color

	var app *appstate.AppState
	s, err := newSessionFn(ctx, a.root, sessionOptions{
		url:      a.url,
		strategy: strategy,
		headful:  a.headful,
		wrap:     func(s overlay.Surface) overlay.Surface { return app.Mirror(s) },
	})
	if err != nil {
		return fmt.Errorf("annotate %s: %w", a.url, err)
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			a.log().Warn("close session", "error", cerr)
		}
	}()

	backdrop, err := s.screenshot(ctx)
	if err != nil {
		return fmt.Errorf("annotate %s: screenshot: %w", a.url, err)
	}

	app = appstate.New(s.ctl,
		appstate.WithTitle(windowTitle(titleOptions{URL: s.meta.URL, Title: s.meta.Title, Strategy: string(strategy)})),
		appstate.WithTheme(a.activeTheme),
		appstate.WithTool(defaultTool(a.tool)),
		appstate.WithBackdrop(backdrop),
		appstate.WithLogger(a.log()),
		appstate.WithAction(appstate.ActionCopy, a.copyAction(s)),
		appstate.WithAction(appstate.ActionSave, a.saveAction(s)),
		appstate.WithAction(appstate.ActionDelegate, a.delegateAction(s)),
		appstate.WithAction(appstate.ActionRefresh, func(ctx context.Context) (string, error) {
			return refreshBackdrop(ctx, s, app)
		}),
		appstate.WithOnClose(cancel),
	)
	runWindowFn(app)
	return nil
}

func (a *annotateCmd) copyAction(s *session) appstate.Action {
	return func(ctx context.Context) (string, error) {
		res, err := s.ctl.CaptureScreenshot(ctx)
		if err != nil {
			return "", err
		}
		if err := copyFn(res.PNG); err != nil {
			return "", err
		}
		a.notifyCopy("capture")
		return "capture copied to clipboard", nil
	}
}

func (a *annotateCmd) saveAction(s *session) appstate.Action {
	return func(ctx context.Context) (string, error) {
		res, err := s.ctl.CaptureScreenshot(ctx)
		if err != nil {
			return "", err
		}
		path, err := saveCapture(res, a.output, a.config.SaveDir, time.Now())
		if err != nil {
			return "", err
		}
		a.notifyCapture(path, res.Image)
		return "saved " + path, nil
	}
}

func (a *annotateCmd) delegateAction(s *session) appstate.Action {
	return func(ctx context.Context) (string, error) {
		if strings.TrimSpace(a.config.Endpoint) == "" {
			return "", fmt.Errorf("no endpoint configured")
		}
		res, err := s.ctl.CaptureScreenshot(ctx)
		if err != nil {
			return "", err
		}
		resp, err := delegateCapture(ctx, a.root, s, res)
		if err != nil {
			return "", err
		}
		return "sent snapshot " + resp.ID, nil
	}
}

// refreshBackdrop takes a fresh page screenshot with the overlay hidden.
func refreshBackdrop(ctx context.Context, s *session, app *appstate.AppState) (string, error) {
	visible := s.ctl.Visible()
	tool := s.ctl.Tool()
	s.ctl.Hide()
	img, err := s.screenshot(ctx)
	if visible {
		if serr := s.ctl.Show(tool); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return "", err
	}
	app.SetBackdrop(img)
	return "page refreshed", nil
}
