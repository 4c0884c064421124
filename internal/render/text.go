package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	parseOnce  sync.Once
	parsedFont *opentype.Font
	parseErr   error
	faces      sync.Map // map[float64]font.Face
)

// Face returns a cached Go Regular face of the given pixel size.
func Face(size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid font size %v", size)
	}
	if face, ok := faces.Load(size); ok {
		return face.(font.Face), nil
	}
	parseOnce.Do(func() {
		parsedFont, parseErr = opentype.Parse(goregular.TTF)
	})
	if parseErr != nil {
		return nil, fmt.Errorf("parse font: %w", parseErr)
	}
	face, err := opentype.NewFace(parsedFont, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	actual, _ := faces.LoadOrStore(size, face)
	return actual.(font.Face), nil
}

// Measure returns the advance width and line height of s in face.
func Measure(face font.Face, s string) (width, height int) {
	d := &font.Drawer{Face: face}
	m := face.Metrics()
	return d.MeasureString(s).Ceil(), (m.Ascent + m.Descent).Ceil()
}
