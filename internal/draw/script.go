package draw

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/pagemark/internal/annotation"
)

// Mark is a scripted gesture such as "circle 100 100 200 180",
// "arrow 10 10 90 40" or "text 30 40 check this". Playing a mark drives the
// engine through the same events a pointer would produce.
type Mark struct {
	Tool   annotation.Tool
	Coords []float64
	Text   string
	Color  string
}

// ParseMark parses the textual form of a mark. An optional trailing
// "@color" token on circle and arrow marks overrides the color.
func ParseMark(s string) (Mark, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Mark{}, fmt.Errorf("empty mark")
	}
	tool, err := annotation.ParseTool(fields[0])
	if err != nil {
		return Mark{}, err
	}
	m := Mark{Tool: tool}
	rest := fields[1:]
	if tool != annotation.ToolText && len(rest) > 0 && strings.HasPrefix(rest[len(rest)-1], "@") {
		m.Color = strings.TrimPrefix(rest[len(rest)-1], "@")
		rest = rest[:len(rest)-1]
	}
	want := 4
	if tool == annotation.ToolText {
		want = 2
		if len(rest) < 3 {
			return Mark{}, fmt.Errorf("text requires x y and content")
		}
		m.Text = strings.Join(rest[2:], " ")
		rest = rest[:2]
	}
	if len(rest) != want {
		return Mark{}, fmt.Errorf("%s requires %d coordinates", tool, want)
	}
	for _, f := range rest {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Mark{}, fmt.Errorf("%s: invalid coordinate %q", tool, f)
		}
		m.Coords = append(m.Coords, v)
	}
	return m, nil
}

// Target receives a replayed mark. Both Engine and the overlay controller
// implement it.
type Target interface {
	Tool() annotation.Tool
	Color() string
	SetTool(annotation.Tool)
	SetColor(string)
	HandleMouse(mouse.Event) bool
	HandleKey(key.Event) bool
}

// Play replays the mark on e, restoring the tool and color afterwards.
func (m Mark) Play(e Target) {
	prevTool, prevColor := e.Tool(), e.Color()
	e.SetTool(m.Tool)
	if m.Color != "" {
		e.SetColor(m.Color)
	}
	x0, y0 := float32(m.Coords[0]), float32(m.Coords[1])
	e.HandleMouse(mouse.Event{X: x0, Y: y0, Button: mouse.ButtonLeft, Direction: mouse.DirPress})
	switch m.Tool {
	case annotation.ToolText:
		e.HandleMouse(mouse.Event{X: x0, Y: y0, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
		for _, r := range m.Text {
			e.HandleKey(key.Event{Rune: r, Direction: key.DirPress})
		}
		e.HandleKey(key.Event{Rune: -1, Code: key.CodeReturnEnter, Direction: key.DirPress})
	default:
		x1, y1 := float32(m.Coords[2]), float32(m.Coords[3])
		e.HandleMouse(mouse.Event{X: x1, Y: y1, Direction: mouse.DirNone})
		e.HandleMouse(mouse.Event{X: x1, Y: y1, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
	}
	e.SetTool(prevTool)
	e.SetColor(prevColor)
}
