//go:build linux || freebsd || openbsd || netbsd || dragonfly

package clipboard

import (
	"errors"
	"sync"
	"testing"
)

func resetInit(t *testing.T) {
	t.Helper()
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	initOnce = sync.Once{}
	initErr = nil
	t.Cleanup(func() {
		initOnce = sync.Once{}
		initErr = nil
	})
}

func TestEnsureInitWithoutDisplay(t *testing.T) {
	resetInit(t)
	err := WriteText("data:image/png;base64,AAAA")
	if !errors.Is(err, errNoDisplay) {
		t.Fatalf("expected errNoDisplay, got %v", err)
	}
}

func TestWritePNGRejectsOtherData(t *testing.T) {
	resetInit(t)
	if err := WritePNG([]byte("GIF89a")); !errors.Is(err, errNotPNG) {
		t.Fatalf("expected errNotPNG, got %v", err)
	}
	if err := WritePNG(append([]byte(nil), pngMagic...)); !errors.Is(err, errNoDisplay) {
		t.Fatalf("expected PNG data to reach init, got %v", err)
	}
}
