// Package draw implements the annotation state machine. It consumes pointer
// and keyboard events, keeps the geometry of the gesture in progress as plain
// data and projects committed and live marks onto a Surface.
package draw

import (
	"image"
	"math"
	"strings"
	"unicode"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/pagemark/internal/annotation"
)

type state int

const (
	stateIdle state = iota
	stateDrawing
	stateClicking
	stateEditing
)

// Options configures a new Engine.
type Options struct {
	Params annotation.Params
	Tool   annotation.Tool
	Color  string
	// IsChrome reports whether a point lies on the tool's own controls.
	// Presses there never start a gesture.
	IsChrome func(image.Point) bool
	Surface  Surface
}

type gesture struct {
	tool           annotation.Tool
	color          string
	startX, startY float64
	pointX, pointY float64
}

type entry struct {
	x, y  float64
	text  []rune
	color string
}

// Engine is the drawing state machine. It is not safe for concurrent use;
// all calls are expected from one event loop.
type Engine struct {
	params   annotation.Params
	tool     annotation.Tool
	color    string
	isChrome func(image.Point) bool
	surface  Surface

	enabled bool
	state   state
	ids     annotation.Counter
	list    []annotation.Annotation
	g       gesture
	in      entry
	shapes  []Shape
}

// New returns an idle, enabled engine.
func New(opts Options) *Engine {
	e := &Engine{
		params:   opts.Params.Normalize(),
		tool:     opts.Tool,
		color:    opts.Color,
		isChrome: opts.IsChrome,
		surface:  opts.Surface,
		enabled:  true,
	}
	if e.tool == "" {
		e.tool = annotation.ToolCircle
	}
	if e.color == "" {
		e.color = annotation.DefaultColor
	}
	return e
}

// Params returns the geometry constants in use.
func (e *Engine) Params() annotation.Params { return e.params }

// Tool returns the active tool.
func (e *Engine) Tool() annotation.Tool { return e.tool }

// Color returns the color applied to new annotations.
func (e *Engine) Color() string { return e.color }

// Drawing reports whether a drag gesture is in progress.
func (e *Engine) Drawing() bool { return e.state == stateDrawing }

// Editing reports whether the text entry is open.
func (e *Engine) Editing() bool { return e.state == stateEditing }

// SetSurface replaces the projection target and redraws onto it.
func (e *Engine) SetSurface(s Surface) {
	e.surface = s
	e.redraw()
}

// SetTool cancels any gesture or open entry and switches tools.
func (e *Engine) SetTool(t annotation.Tool) {
	e.cancel()
	e.tool = t
	e.redraw()
}

// SetColor sets the color for annotations created from now on.
func (e *Engine) SetColor(c string) {
	if c != "" {
		e.color = c
	}
}

// Enable binds the engine to incoming events.
func (e *Engine) Enable() { e.enabled = true }

// Disable unbinds the engine. The gesture in progress is dropped; committed
// annotations are kept.
func (e *Engine) Disable() {
	e.enabled = false
	if e.state != stateIdle {
		e.cancel()
		e.redraw()
	}
}

// Enabled reports whether events are processed.
func (e *Engine) Enabled() bool { return e.enabled }

// HandleMouse advances the state machine. It reports whether the event was
// consumed.
func (e *Engine) HandleMouse(ev mouse.Event) bool {
	if !e.enabled {
		return false
	}
	x, y := float64(ev.X), float64(ev.Y)
	switch {
	case ev.Direction == mouse.DirPress && ev.Button == mouse.ButtonLeft:
		if e.isChrome != nil && e.isChrome(image.Pt(int(ev.X), int(ev.Y))) {
			return false
		}
		return e.press(x, y)
	case ev.Direction == mouse.DirNone:
		return e.move(x, y)
	case ev.Direction == mouse.DirRelease && ev.Button == mouse.ButtonLeft:
		return e.release(x, y)
	}
	return false
}

func (e *Engine) press(x, y float64) bool {
	switch e.state {
	case stateEditing:
		e.commitEntry()
	case stateDrawing, stateClicking:
		e.cancel()
	}
	e.g = gesture{tool: e.tool, color: e.color, startX: x, startY: y, pointX: x, pointY: y}
	if e.tool == annotation.ToolText {
		e.state = stateClicking
	} else {
		e.state = stateDrawing
	}
	e.redraw()
	return true
}

func (e *Engine) move(x, y float64) bool {
	if e.state != stateDrawing && e.state != stateClicking {
		return false
	}
	e.g.pointX, e.g.pointY = x, y
	if e.state == stateDrawing {
		e.redraw()
	}
	return true
}

func (e *Engine) release(x, y float64) bool {
	switch e.state {
	case stateClicking:
		e.state = stateIdle
		dx, dy := x-e.g.startX, y-e.g.startY
		if math.Abs(dx) >= e.params.MinDrag || math.Abs(dy) >= e.params.MinDrag {
			// A drag with the text tool is not a click.
			e.redraw()
			return true
		}
		e.in = entry{x: e.g.startX, y: e.g.startY, color: e.g.color}
		e.state = stateEditing
		e.redraw()
		return true
	case stateDrawing:
	default:
		return false
	}
	e.g.pointX, e.g.pointY = x, y
	e.state = stateIdle
	g := e.g
	if e.params.Degenerate(g.pointX-g.startX, g.pointY-g.startY) {
		e.redraw()
		return true
	}
	a := annotation.Annotation{Tool: g.tool, Color: g.color}
	switch g.tool {
	case annotation.ToolCircle:
		a.X, a.Y, a.Width, a.Height = boxFromCorners(g.startX, g.startY, g.pointX, g.pointY)
	case annotation.ToolArrow:
		a.X, a.Y, a.EndX, a.EndY = g.startX, g.startY, g.pointX, g.pointY
	}
	a.ID = e.ids.Next()
	e.list = append(e.list, a)
	e.redraw()
	return true
}

// HandleKey feeds the open text entry. Keys are ignored, and false is
// returned, when no entry is open.
func (e *Engine) HandleKey(ev key.Event) bool {
	if !e.enabled || e.state != stateEditing {
		return false
	}
	if ev.Direction == key.DirRelease {
		return true
	}
	switch ev.Code {
	case key.CodeReturnEnter, key.CodeKeypadEnter:
		e.commitEntry()
	case key.CodeEscape:
		e.state = stateIdle
		e.in = entry{}
	case key.CodeDeleteBackspace:
		if n := len(e.in.text); n > 0 {
			e.in.text = e.in.text[:n-1]
		}
	default:
		if ev.Rune > 0 && unicode.IsPrint(ev.Rune) {
			e.in.text = append(e.in.text, ev.Rune)
		}
	}
	e.redraw()
	return true
}

// Blur is called when the text entry loses focus; it commits like Enter.
func (e *Engine) Blur() {
	if e.state != stateEditing {
		return
	}
	e.commitEntry()
	e.redraw()
}

func (e *Engine) commitEntry() {
	text := strings.TrimSpace(string(e.in.text))
	in := e.in
	e.state = stateIdle
	e.in = entry{}
	if text == "" {
		return
	}
	e.list = append(e.list, annotation.Annotation{
		ID:    e.ids.Next(),
		Tool:  annotation.ToolText,
		X:     in.x,
		Y:     in.y,
		Text:  text,
		Color: in.color,
	})
}

func (e *Engine) cancel() {
	e.state = stateIdle
	e.g = gesture{}
	e.in = entry{}
}

// Undo removes the most recent annotation and redraws the rest in order.
func (e *Engine) Undo() bool {
	if len(e.list) == 0 {
		return false
	}
	e.list = e.list[:len(e.list)-1]
	e.redraw()
	return true
}

// Clear removes every annotation and visual.
func (e *Engine) Clear() {
	e.cancel()
	e.list = nil
	e.redraw()
}

// Annotations returns a copy of the committed annotations in creation order.
func (e *Engine) Annotations() []annotation.Annotation {
	return annotation.Clone(e.list)
}

// Count returns the number of committed annotations.
func (e *Engine) Count() int { return len(e.list) }

// Shapes returns a copy of the shapes most recently sent to the surface.
func (e *Engine) Shapes() []Shape {
	out := make([]Shape, len(e.shapes))
	copy(out, e.shapes)
	return out
}

// redraw rebuilds every shape from data and hands the list to the surface.
func (e *Engine) redraw() {
	shapes := make([]Shape, 0, len(e.list)+1)
	for _, a := range e.list {
		shapes = append(shapes, ShapeOf(a))
	}
	switch e.state {
	case stateDrawing:
		g := e.g
		live := Shape{Live: true, Color: g.color}
		switch g.tool {
		case annotation.ToolCircle:
			live.Kind = ShapeEllipse
			live.X, live.Y, live.W, live.H = boxFromCorners(g.startX, g.startY, g.pointX, g.pointY)
		case annotation.ToolArrow:
			live.Kind = ShapeArrow
			live.X, live.Y, live.EndX, live.EndY = g.startX, g.startY, g.pointX, g.pointY
		}
		shapes = append(shapes, live)
	case stateEditing:
		shapes = append(shapes, Shape{
			Kind:  ShapeTextEntry,
			Live:  true,
			X:     e.in.x,
			Y:     e.in.y,
			Text:  string(e.in.text),
			Color: e.in.color,
		})
	}
	e.shapes = shapes
	if e.surface != nil {
		e.surface.Render(e.Shapes())
	}
}
