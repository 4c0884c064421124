package notify

import (
	"errors"
	"image"
	"os"
	"testing"

	"github.com/example/pagemark/internal/platform"
)

type sent struct {
	title, body string
	opts        platform.Options
	iconExisted bool
}

func capture(t *testing.T, err error) *[]sent {
	t.Helper()
	var got []sent
	orig := send
	send = func(title, body string, opts platform.Options) error {
		s := sent{title: title, body: body, opts: opts}
		if opts.IconPath != "" {
			_, statErr := os.Stat(opts.IconPath)
			s.iconExisted = statErr == nil
		}
		got = append(got, s)
		return err
	}
	t.Cleanup(func() { send = orig })
	return &got
}

func TestDisabledEventsAreSilent(t *testing.T) {
	got := capture(t, nil)
	n := New(DefaultPreferences(), nil)
	n.Copy("x")
	n.Delegate("abc", false)
	var nilNotifier *Notifier
	nilNotifier.Copy("x")
	if len(*got) != 0 {
		t.Fatalf("expected no notifications, got %+v", *got)
	}
}

func TestDelegateFormatsBody(t *testing.T) {
	got := capture(t, nil)
	n := New(DefaultPreferences(), nil)
	n.Enable(EventDelegate, true)
	n.Delegate("1234", true)
	if len(*got) != 1 || (*got)[0].title != "Pagemark" || (*got)[0].body != "Snapshot 1234 (routed) delivered" {
		t.Fatalf("unexpected notifications %+v", *got)
	}
}

func TestCaptureAttachesPreview(t *testing.T) {
	got := capture(t, errors.New("no bus"))
	n := New(DefaultPreferences(), nil)
	n.Enable(EventCapture, true)
	n.Capture("/tmp/out.png", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if len(*got) != 1 {
		t.Fatalf("expected one notification, got %d", len(*got))
	}
	s := (*got)[0]
	if s.opts.IconPath == "" || !s.iconExisted {
		t.Fatalf("expected preview file during send, got %+v", s)
	}
	if _, err := os.Stat(s.opts.IconPath); !os.IsNotExist(err) {
		t.Fatalf("preview file should be removed afterwards")
	}
}

func TestLoadPreferences(t *testing.T) {
	env := map[string]string{
		"PAGEMARK_NOTIFY_TITLE":     "Review",
		"PAGEMARK_NOTIFY_COPY_TEXT": "Clipboard now holds %s",
	}
	prefs := LoadPreferences(func(k string) string { return env[k] })
	if prefs.Title != "Review" || prefs.Events[EventCopy].Template != "Clipboard now holds %s" {
		t.Fatalf("unexpected preferences %+v", prefs)
	}
	if prefs.Events[EventCapture].Template != DefaultPreferences().Events[EventCapture].Template {
		t.Fatalf("unset events must keep defaults")
	}
}
