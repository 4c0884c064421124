package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/draw"
)

// markList collects repeated -mark flags.
type markList []draw.Mark

func (m *markList) String() string {
	parts := make([]string, len(*m))
	for i, mk := range *m {
		parts[i] = string(mk.Tool)
	}
	return strings.Join(parts, ",")
}

func (m *markList) Set(v string) error {
	mk, err := draw.ParseMark(v)
	if err != nil {
		return fmt.Errorf("mark %q: %w", v, err)
	}
	*m = append(*m, mk)
	return nil
}

type captureCmd struct {
	url      string
	output   string
	strategy string
	delegate bool
	copy     bool
	headful  bool
	marks    markList
	*root
	fs *flag.FlagSet
}

func (c *captureCmd) Program() string { return c.root.Program() + " capture" }

func (c *captureCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseCaptureCmd(args []string, r *root) (*captureCmd, error) {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	c := &captureCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.output, "output", "", "write the capture to this file (default: timestamped file in save_dir)")
	fs.StringVar(&c.strategy, "strategy", r.config.Strategy, "renderer: svg or composite")
	fs.BoolVar(&c.delegate, "delegate", false, "post the snapshot to the configured endpoint")
	fs.BoolVar(&c.copy, "to-clipboard", false, "copy the capture to the clipboard")
	fs.BoolVar(&c.headful, "headful", false, "show the browser window")
	fs.Var(&c.marks, "mark", "annotation to draw, repeatable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, &UsageError{of: c}
	}
	c.url = fs.Arg(0)
	if _, err := capture.ParseStrategy(c.strategy); err != nil {
		return nil, err
	}
	if c.delegate && strings.TrimSpace(r.config.Endpoint) == "" {
		return nil, fmt.Errorf("-delegate requires an endpoint (-endpoint, PAGEMARK_ENDPOINT or config)")
	}
	return c, nil
}

func (c *captureCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if t := c.config.Browser.Timeout; t > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, 4*t)
		defer tcancel()
	}

	strategy, err := capture.ParseStrategy(c.strategy)
	if err != nil {
		return err
	}
	s, err := newSessionFn(ctx, c.root, sessionOptions{url: c.url, strategy: strategy, headful: c.headful})
	if err != nil {
		return fmt.Errorf("capture %s: %w", c.url, err)
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			c.log().Warn("close session", "error", cerr)
		}
	}()

	if err := s.ctl.Show(defaultTool(c.config.Tool)); err != nil {
		return fmt.Errorf("capture %s: %w", c.url, err)
	}
	for _, mk := range c.marks {
		mk.Play(s.ctl)
	}
	if got, want := s.ctl.AnnotationCount(), len(c.marks); got != want {
		c.log().Warn("some marks were too small to keep", "kept", got, "given", want)
	}

	res, err := s.ctl.CaptureScreenshot(ctx)
	if err != nil {
		return fmt.Errorf("capture %s: %w", c.url, err)
	}
	path, err := saveCapture(res, c.output, c.config.SaveDir, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, path)
	c.notifyCapture(path, res.Image)

	if c.copy {
		if err := copyFn(res.PNG); err != nil {
			return fmt.Errorf("copy capture: %w", err)
		}
		c.notifyCopy(path)
	}
	if c.delegate {
		resp, err := delegateCapture(ctx, c.root, s, res)
		if err != nil {
			return fmt.Errorf("delegate %s: %w", c.url, err)
		}
		fmt.Fprintf(os.Stdout, "snapshot %s\n", resp.ID)
	}
	return nil
}
