package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/theme"
)

// Draw holds the annotation geometry settings. Zero values fall back to
// the stock geometry.
type Draw struct {
	// MinDrag is the smallest displacement, in CSS pixels, a circle or
	// arrow needs on BOTH axes to be kept. A drag shorter than this on
	// either axis is dropped, so an arrow needs at least MinDrag of slant
	// and a perfectly horizontal or vertical one is never kept. Lowering
	// it to 1 makes a nearly straight arrow possible.
	MinDrag         float64
	ArrowHeadLength float64
	ArrowHeadAngle  float64
	StrokeWidth     float64
	FontSize        float64
}

// Browser holds Chrome connection settings.
type Browser struct {
	RemoteURL     string
	Stealth       bool
	Headful       bool
	Timeout       time.Duration
	PanelSelector string
}

// Notify holds notification settings.
type Notify struct {
	Capture  bool
	Delegate bool
	Copy     bool
}

// Inbox holds settings for the snapshot inbox server.
type Inbox struct {
	Listen     string
	DB         string
	Dir        string
	ForwardURL string
}

// Config holds the application configuration.
type Config struct {
	Endpoint string
	Color    string
	Tool     string
	Strategy string
	Width    int
	Height   int
	SaveDir  string
	Theme    string
	Draw     Draw
	Browser  Browser
	Notify   Notify
	Inbox    Inbox
	Themes   map[string]*theme.Theme
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Theme:    "", // Default to empty to allow fallback to Env/Default
		Color:    annotation.DefaultColor,
		Tool:     string(annotation.ToolCircle),
		Strategy: "svg",
		Width:    1280,
		Height:   800,
		Browser: Browser{
			Timeout: 30 * time.Second,
		},
		Inbox: Inbox{
			Listen: "127.0.0.1:8787",
			DB:     "pagemark.db",
			Dir:    "snapshots",
		},
		Themes: make(map[string]*theme.Theme),
	}
}

// Params returns the annotation geometry described by the draw section.
func (c *Config) Params() annotation.Params {
	return annotation.Params{
		MinDrag:         c.Draw.MinDrag,
		ArrowHeadLength: c.Draw.ArrowHeadLength,
		ArrowHeadAngle:  c.Draw.ArrowHeadAngle,
		StrokeWidth:     c.Draw.StrokeWidth,
		FontSize:        c.Draw.FontSize,
		TextPadding:     annotation.DefaultParams().TextPadding,
	}.Normalize()
}

// ApplyEnv overrides settings from PAGEMARK_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("PAGEMARK_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := getenv("PAGEMARK_THEME"); v != "" {
		c.Theme = v
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	// Root section
	writeString(&sb, "endpoint", c.Endpoint)
	writeString(&sb, "color", c.Color)
	writeString(&sb, "tool", c.Tool)
	writeString(&sb, "strategy", c.Strategy)
	fmt.Fprintf(&sb, "width = %d\n", c.Width)
	fmt.Fprintf(&sb, "height = %d\n", c.Height)
	writeString(&sb, "save_dir", c.SaveDir)
	writeString(&sb, "theme", c.Theme)
	sb.WriteString("\n")

	p := c.Params()
	sb.WriteString("[draw]\n")
	sb.WriteString("# Drags shorter than min_drag on either axis are dropped, so arrows need\n")
	sb.WriteString("# at least min_drag of slant. Lower it to 1 for nearly straight arrows.\n")
	fmt.Fprintf(&sb, "min_drag = %g\n", p.MinDrag)
	fmt.Fprintf(&sb, "arrow_head_length = %g\n", p.ArrowHeadLength)
	fmt.Fprintf(&sb, "arrow_head_angle = %g\n", p.ArrowHeadAngle)
	fmt.Fprintf(&sb, "stroke_width = %g\n", p.StrokeWidth)
	fmt.Fprintf(&sb, "font_size = %g\n", p.FontSize)
	sb.WriteString("\n")

	sb.WriteString("[browser]\n")
	writeString(&sb, "remote_url", c.Browser.RemoteURL)
	fmt.Fprintf(&sb, "stealth = %v\n", c.Browser.Stealth)
	fmt.Fprintf(&sb, "headful = %v\n", c.Browser.Headful)
	fmt.Fprintf(&sb, "timeout = %s\n", c.Browser.Timeout)
	writeString(&sb, "panel_selector", c.Browser.PanelSelector)
	sb.WriteString("\n")

	// Notify section
	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "capture = %v\n", c.Notify.Capture)
	fmt.Fprintf(&sb, "delegate = %v\n", c.Notify.Delegate)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)
	sb.WriteString("\n")

	sb.WriteString("[inbox]\n")
	writeString(&sb, "listen", c.Inbox.Listen)
	writeString(&sb, "db", c.Inbox.DB)
	writeString(&sb, "dir", c.Inbox.Dir)
	writeString(&sb, "forward_url", c.Inbox.ForwardURL)
	sb.WriteString("\n")

	// Themes sections
	// Sort keys for deterministic output
	var themeNames []string
	for name := range c.Themes {
		themeNames = append(themeNames, name)
	}
	sort.Strings(themeNames)

	for _, name := range themeNames {
		fmt.Fprintf(&sb, "[theme.%s]\n", name)
		sb.WriteString(theme.Format(c.Themes[name]))
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeString(sb *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	if strings.ContainsAny(value, "#\"") || strings.TrimSpace(value) != value {
		value = `"` + value + `"`
	}
	fmt.Fprintf(sb, "%s = %s\n", key, value)
}
