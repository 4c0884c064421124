package theme

import (
	"embed"
	"fmt"
	"image/color"
)

// EmbeddedThemes holds the themes shipped with the binary.
//
//go:embed defaults/*.theme
var EmbeddedThemes embed.FS

// Theme defines the colors of the annotate window and the annotation
// palette offered by its toolbar.
type Theme struct {
	Name string

	// General
	Background color.RGBA // Behind the page image
	Foreground color.RGBA // Status text

	// Toolbar
	ToolbarBackground color.RGBA
	StatusBackground  color.RGBA

	// Tool Buttons
	ButtonBackground      color.RGBA
	ButtonBackgroundHover color.RGBA
	ButtonActive          color.RGBA
	ButtonText            color.RGBA
	ButtonTextActive      color.RGBA
	ButtonBorder          color.RGBA

	// Overlay
	Dim color.RGBA // Tint over the page while the overlay is hidden

	// Palette lists the annotation colors, in toolbar order.
	Palette []color.RGBA
}

// Default returns the hardcoded default light theme (fallback).
func Default() *Theme {
	return &Theme{
		Name:                  "Default",
		Background:            color.RGBA{220, 220, 220, 255},
		Foreground:            color.RGBA{0, 0, 0, 255},
		ToolbarBackground:     color.RGBA{235, 235, 235, 255},
		StatusBackground:      color.RGBA{245, 245, 245, 255},
		ButtonBackground:      color.RGBA{200, 200, 200, 255},
		ButtonBackgroundHover: color.RGBA{180, 180, 180, 255},
		ButtonActive:          color.RGBA{150, 150, 150, 255},
		ButtonText:            color.RGBA{0, 0, 0, 255},
		ButtonTextActive:      color.RGBA{255, 255, 255, 255},
		ButtonBorder:          color.RGBA{0, 0, 0, 255},
		Dim:                   color.RGBA{0, 0, 0, 64},
		Palette:               DefaultPalette(),
	}
}

// DefaultPalette returns the stock annotation colors. The first entry is
// the default stroke color.
func DefaultPalette() []color.RGBA {
	return []color.RGBA{
		{0xef, 0x44, 0x44, 0xff},
		{0xf5, 0x9e, 0x0b, 0xff},
		{0x22, 0xc5, 0x5e, 0xff},
		{0x3b, 0x82, 0xf6, 0xff},
		{0xa8, 0x55, 0xf7, 0xff},
		{0x11, 0x18, 0x27, 0xff},
	}
}

// Hex formats c as #RRGGBB, or #RRGGBBAA when it is not opaque.
func Hex(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
