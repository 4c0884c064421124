//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

// Package clipboard publishes captures to the system clipboard.
package clipboard

import (
	"errors"
	"image"
)

var errUnsupported = errors.New("clipboard operations are not supported on this platform")

func WritePNG([]byte) error { return errUnsupported }

func WriteImage(image.Image) error { return errUnsupported }

func WriteText(string) error { return errUnsupported }
