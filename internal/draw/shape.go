package draw

import (
	"math"

	"github.com/example/pagemark/internal/annotation"
)

// ShapeKind selects how a Surface renders a Shape.
type ShapeKind int

const (
	ShapeEllipse ShapeKind = iota
	ShapeArrow
	ShapeText
	// ShapeTextEntry is the open text input; it is never part of a capture.
	ShapeTextEntry
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeEllipse:
		return "ellipse"
	case ShapeArrow:
		return "arrow"
	case ShapeText:
		return "text"
	case ShapeTextEntry:
		return "entry"
	}
	return "unknown"
}

// Shape is the visual projection of one annotation or of the gesture in
// progress. Surfaces draw shapes; they never own annotation state.
type Shape struct {
	Kind ShapeKind
	// ID is the annotation id, or 0 for the live gesture.
	ID    int
	Live  bool
	X, Y  float64
	W, H  float64
	EndX  float64
	EndY  float64
	Text  string
	Color string
}

// Center returns the ellipse center for ShapeEllipse.
func (s Shape) Center() (cx, cy float64) { return s.X + s.W/2, s.Y + s.H/2 }

// Radii returns the ellipse radii for ShapeEllipse.
func (s Shape) Radii() (rx, ry float64) { return s.W / 2, s.H / 2 }

// ShapeOf projects a committed annotation.
func ShapeOf(a annotation.Annotation) Shape {
	s := Shape{ID: a.ID, X: a.X, Y: a.Y, Color: a.Color}
	switch a.Tool {
	case annotation.ToolCircle:
		s.Kind = ShapeEllipse
		s.W, s.H = a.Width, a.Height
	case annotation.ToolArrow:
		s.Kind = ShapeArrow
		s.EndX, s.EndY = a.EndX, a.EndY
	case annotation.ToolText:
		s.Kind = ShapeText
		s.Text = a.Text
	}
	return s
}

// Surface receives the full list of shapes after every change.
type Surface interface {
	Render(shapes []Shape)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func([]Shape)

func (f SurfaceFunc) Render(shapes []Shape) { f(shapes) }

// boxFromCorners returns the top-left anchored box spanned by two corners.
func boxFromCorners(x0, y0, x1, y1 float64) (x, y, w, h float64) {
	return math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1 - x0), math.Abs(y1 - y0)
}
