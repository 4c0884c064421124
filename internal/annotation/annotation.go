// Package annotation defines the marks a user draws over a page and the
// snapshot payload handed to an agent.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Tool identifies the kind of mark an annotation represents.
type Tool string

const (
	ToolCircle Tool = "circle"
	ToolArrow  Tool = "arrow"
	ToolText   Tool = "text"
)

// Tools lists the supported tools in toolbar order.
func Tools() []Tool { return []Tool{ToolCircle, ToolArrow, ToolText} }

// ParseTool converts a user supplied name into a Tool.
func ParseTool(s string) (Tool, error) {
	switch Tool(strings.ToLower(strings.TrimSpace(s))) {
	case ToolCircle, "ellipse", "o":
		return ToolCircle, nil
	case ToolArrow, "a":
		return ToolArrow, nil
	case ToolText, "t":
		return ToolText, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// DefaultColor is the stroke color used when none is configured.
const DefaultColor = "#ef4444"

// Annotation is one committed mark. Only the geometry fields belonging to
// Tool are meaningful: Width/Height for circles, EndX/EndY for arrows and
// Text for text marks.
type Annotation struct {
	ID     int
	Tool   Tool
	X, Y   float64
	Width  float64
	Height float64
	EndX   float64
	EndY   float64
	Text   string
	Color  string
}

type circleJSON struct {
	ID     int     `json:"id"`
	Tool   Tool    `json:"tool"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

type arrowJSON struct {
	ID    int     `json:"id"`
	Tool  Tool    `json:"tool"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	EndX  float64 `json:"endX"`
	EndY  float64 `json:"endY"`
	Color string  `json:"color"`
}

type textJSON struct {
	ID    int     `json:"id"`
	Tool  Tool    `json:"tool"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

type wireJSON struct {
	ID     int      `json:"id"`
	Tool   Tool     `json:"tool"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	EndX   *float64 `json:"endX,omitempty"`
	EndY   *float64 `json:"endY,omitempty"`
	Text   *string  `json:"text,omitempty"`
	Color  string   `json:"color"`
}

// MarshalJSON emits only the geometry group of the annotation's tool.
func (a Annotation) MarshalJSON() ([]byte, error) {
	switch a.Tool {
	case ToolCircle:
		return json.Marshal(circleJSON{a.ID, a.Tool, a.X, a.Y, a.Width, a.Height, a.Color})
	case ToolArrow:
		return json.Marshal(arrowJSON{a.ID, a.Tool, a.X, a.Y, a.EndX, a.EndY, a.Color})
	case ToolText:
		return json.Marshal(textJSON{a.ID, a.Tool, a.X, a.Y, a.Text, a.Color})
	}
	return nil, fmt.Errorf("annotation %d: unknown tool %q", a.ID, a.Tool)
}

// UnmarshalJSON decodes the wire form and rejects geometry that does not
// belong to the declared tool.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var w wireJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Annotation{ID: w.ID, Tool: w.Tool, X: w.X, Y: w.Y, Color: w.Color}
	box := w.Width != nil || w.Height != nil
	end := w.EndX != nil || w.EndY != nil
	txt := w.Text != nil
	switch w.Tool {
	case ToolCircle:
		if end || txt || w.Width == nil || w.Height == nil {
			return fmt.Errorf("annotation %d: circle requires width and height only", w.ID)
		}
		out.Width, out.Height = *w.Width, *w.Height
	case ToolArrow:
		if box || txt || w.EndX == nil || w.EndY == nil {
			return fmt.Errorf("annotation %d: arrow requires endX and endY only", w.ID)
		}
		out.EndX, out.EndY = *w.EndX, *w.EndY
	case ToolText:
		if box || end || w.Text == nil {
			return fmt.Errorf("annotation %d: text requires text only", w.ID)
		}
		out.Text = *w.Text
	default:
		return fmt.Errorf("annotation %d: unknown tool %q", w.ID, w.Tool)
	}
	*a = out
	return nil
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid annotation")

// Validate checks the stored-annotation invariants against p.
func (a Annotation) Validate(p Params) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %d: %s", ErrInvalid, a.ID, fmt.Sprintf(format, args...))
	}
	if a.Color == "" {
		return fail("missing color")
	}
	switch a.Tool {
	case ToolCircle:
		if a.Width < 0 || a.Height < 0 {
			return fail("negative size %gx%g", a.Width, a.Height)
		}
		if p.Degenerate(a.Width, a.Height) {
			return fail("circle smaller than %gpx", p.MinDrag)
		}
		if a.EndX != 0 || a.EndY != 0 || a.Text != "" {
			return fail("circle carries foreign geometry")
		}
	case ToolArrow:
		if p.Degenerate(a.EndX-a.X, a.EndY-a.Y) {
			return fail("arrow shorter than %gpx", p.MinDrag)
		}
		if a.Width != 0 || a.Height != 0 || a.Text != "" {
			return fail("arrow carries foreign geometry")
		}
	case ToolText:
		if strings.TrimSpace(a.Text) == "" {
			return fail("empty text")
		}
		if a.Width != 0 || a.Height != 0 || a.EndX != 0 || a.EndY != 0 {
			return fail("text carries foreign geometry")
		}
	default:
		return fail("unknown tool %q", a.Tool)
	}
	return nil
}

// Params holds the tunable geometry constants.
type Params struct {
	// MinDrag is the displacement, in pixels, a drag must reach on each
	// axis before it becomes an annotation.
	MinDrag float64
	// ArrowHeadLength is the length of each arrowhead side in pixels.
	ArrowHeadLength float64
	// ArrowHeadAngle is the half-angle of the arrowhead in degrees.
	ArrowHeadAngle float64
	StrokeWidth    float64
	FontSize       float64
	TextPadding    float64
}

// DefaultParams returns the stock geometry.
func DefaultParams() Params {
	return Params{
		MinDrag:         5,
		ArrowHeadLength: 12,
		ArrowHeadAngle:  30,
		StrokeWidth:     3,
		FontSize:        16,
		TextPadding:     4,
	}
}

// Normalize fills zero or negative fields with defaults.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.MinDrag <= 0 {
		p.MinDrag = d.MinDrag
	}
	if p.ArrowHeadLength <= 0 {
		p.ArrowHeadLength = d.ArrowHeadLength
	}
	if p.ArrowHeadAngle <= 0 || p.ArrowHeadAngle >= 90 {
		p.ArrowHeadAngle = d.ArrowHeadAngle
	}
	if p.StrokeWidth <= 0 {
		p.StrokeWidth = d.StrokeWidth
	}
	if p.FontSize <= 0 {
		p.FontSize = d.FontSize
	}
	if p.TextPadding < 0 {
		p.TextPadding = d.TextPadding
	}
	return p
}

// Degenerate reports whether a drag of dx,dy is too small to keep. A drag
// counts as accidental when either axis stays under MinDrag, which also
// rejects arrows that are exactly horizontal or vertical.
func (p Params) Degenerate(dx, dy float64) bool {
	return math.Abs(dx) < p.MinDrag || math.Abs(dy) < p.MinDrag
}

// ArrowHead returns the two base corners of the arrowhead triangle whose
// tip sits at (x1,y1) for an arrow starting at (x0,y0).
func (p Params) ArrowHead(x0, y0, x1, y1 float64) (lx, ly, rx, ry float64) {
	angle := math.Atan2(y1-y0, x1-x0)
	half := p.ArrowHeadAngle * math.Pi / 180
	lx = x1 - p.ArrowHeadLength*math.Cos(angle-half)
	ly = y1 - p.ArrowHeadLength*math.Sin(angle-half)
	rx = x1 - p.ArrowHeadLength*math.Cos(angle+half)
	ry = y1 - p.ArrowHeadLength*math.Sin(angle+half)
	return
}

// Counter hands out annotation ids for one engine.
type Counter struct{ last int }

// Next returns the next id. Ids start at 1 and are never reused.
func (c *Counter) Next() int {
	c.last++
	return c.last
}

// Clone returns a copy of list that shares no backing array with it.
func Clone(list []Annotation) []Annotation {
	if list == nil {
		return []Annotation{}
	}
	out := make([]Annotation, len(list))
	copy(out, list)
	return out
}
