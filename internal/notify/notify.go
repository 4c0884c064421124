// Package notify raises desktop notifications when a capture is produced,
// delegated or copied.
package notify

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/example/pagemark/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventCapture emits a notification when a capture is written to disk.
	EventCapture Event = "capture"
	// EventDelegate emits a notification when a snapshot is accepted by the
	// endpoint.
	EventDelegate Event = "delegate"
	// EventCopy emits a notification when a capture is copied to the clipboard.
	EventCopy Event = "copy"
)

// send is swapped out in tests.
var send = platform.Notify

// EventPreference describes formatting for a notification event.
type EventPreference struct {
	Template string
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "Pagemark",
		Events: map[Event]EventPreference{
			EventCapture:  {Template: "Saved capture %s"},
			EventDelegate: {Template: "Snapshot %s delivered"},
			EventCopy:     {Template: "Copied %s to clipboard"},
		},
	}
}

// LoadPreferences reads overrides from PAGEMARK_NOTIFY_* environment
// variables.
func LoadPreferences(getenv func(string) string) Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(getenv("PAGEMARK_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	apply := func(key string, event Event) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			prefs.Events[event] = EventPreference{Template: v}
		}
	}
	apply("PAGEMARK_NOTIFY_CAPTURE_TEXT", EventCapture)
	apply("PAGEMARK_NOTIFY_DELEGATE_TEXT", EventDelegate)
	apply("PAGEMARK_NOTIFY_COPY_TEXT", EventCopy)
	return prefs
}

// Notifier sends OS-level notifications based on the configured preferences.
// A nil Notifier is valid and sends nothing.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	logger  *slog.Logger
}

// New creates a new Notifier using the provided preferences.
func New(prefs Preferences, logger *slog.Logger) *Notifier {
	cloned := Preferences{Title: prefs.Title, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), logger: logger}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Capture announces a capture written to path, using img as the preview.
func (n *Notifier) Capture(path string, img image.Image) {
	if !n.enabledFor(EventCapture) {
		return
	}
	opts := platform.Options{}
	if img != nil {
		if preview, cleanup, err := createPreview(img); err != nil {
			n.logger.Debug("notification preview", "error", err)
		} else {
			defer cleanup()
			opts.IconPath = preview
		}
	}
	n.dispatch(EventCapture, path, opts)
}

// Delegate announces a snapshot accepted under id.
func (n *Notifier) Delegate(id string, routed bool) {
	detail := id
	if routed {
		detail += " (routed)"
	}
	n.dispatch(EventDelegate, detail, platform.Options{})
}

// Copy sends a clipboard notification.
func (n *Notifier) Copy(detail string) {
	if strings.TrimSpace(detail) == "" {
		detail = "capture"
	}
	n.dispatch(EventCopy, detail, platform.Options{})
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	if !n.enabledFor(event) {
		return
	}
	template := strings.TrimSpace(n.prefs.Events[event].Template)
	if template == "" {
		return
	}
	body := strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	if body == "" {
		return
	}
	if err := send(n.prefs.Title, body, opts); err != nil {
		n.logger.Warn("notification failed", "event", string(event), "error", err)
	}
}

func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "pagemark-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	cleanup := func() {
		_ = os.Remove(path)
	}
	return path, cleanup, nil
}
