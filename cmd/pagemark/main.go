package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/example/pagemark/internal/config"
	"github.com/example/pagemark/internal/notify"
	"github.com/example/pagemark/internal/theme"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs             *flag.FlagSet
	program        string
	notifier       *notify.Notifier
	config         *config.Config
	logger         *slog.Logger
	endpoint       string
	verbose        bool
	captureAlerts  bool
	delegateAlerts bool
	copyAlerts     bool
	themeName      string
	activeTheme    *theme.Theme
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}

	r := &root{
		fs:      flag.NewFlagSet("pagemark", flag.ExitOnError),
		program: "pagemark",
		config:  cfg,
	}
	r.fs.StringVar(&r.endpoint, "endpoint", "", "URL snapshots are delegated to (overrides PAGEMARK_ENDPOINT and config)")
	r.fs.BoolVar(&r.verbose, "v", false, "enable debug logging")
	r.fs.BoolVar(&r.captureAlerts, "notify-capture", cfg.Notify.Capture, "show a desktop notification after saving a capture")
	r.fs.BoolVar(&r.delegateAlerts, "notify-delegate", cfg.Notify.Delegate, "show a desktop notification after delegating a snapshot")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", cfg.Notify.Copy, "show a desktop notification after copying to the clipboard")

	// Precedence: CLI > Env > Config > Default
	// Flags default to "" so fallbacks are resolved in Run.
	r.fs.StringVar(&r.themeName, "theme", "", "window theme to use (default, dark, high_contrast)")
	r.fs.Usage = usageFunc(r)
	return r
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}

	level := slog.LevelInfo
	if r.verbose {
		level = slog.LevelDebug
	}
	r.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	r.config.ApplyEnv(os.Getenv)
	if r.endpoint != "" {
		r.config.Endpoint = r.endpoint
	}
	if r.themeName != "" {
		r.config.Theme = r.themeName
	}

	r.notifier = notify.New(notify.LoadPreferences(os.Getenv), r.logger)
	r.notifier.Enable(notify.EventCapture, r.captureAlerts)
	r.notifier.Enable(notify.EventDelegate, r.delegateAlerts)
	r.notifier.Enable(notify.EventCopy, r.copyAlerts)

	r.activeTheme = resolveTheme(r.config)

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "annotate":
		cmd, err = parseAnnotateCmd(subArgs, r)
	case "capture":
		cmd, err = parseCaptureCmd(subArgs, r)
	case "serve":
		cmd, err = parseServeCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{r: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

// resolveTheme picks the configured theme, falling back to the default
// when it cannot be loaded.
func resolveTheme(cfg *config.Config) *theme.Theme {
	name := strings.TrimSpace(cfg.Theme)
	t, err := theme.NewLoader(cfg.Themes).Load(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load theme '%s': %v. using default.\n", name, err)
		return theme.Default()
	}
	return t
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (r *root) notifyCapture(path string, img image.Image) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Capture(path, img)
}

func (r *root) notifyDelegate(id string, routed bool) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Delegate(id, routed)
}

func (r *root) notifyCopy(detail string) {
	if r == nil || r.notifier == nil {
		return
	}
	r.notifier.Copy(detail)
}

func (r *root) log() *slog.Logger {
	if r == nil || r.logger == nil {
		return slog.Default()
	}
	return r.logger
}
