package appstate

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/key"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/theme"
)

const (
	toolbarHeight = 28
	statusHeight  = 24
	swatchSize    = 18
)

// Action names understood by dispatch. Anything else is looked up in the
// actions registered with WithAction.
const (
	actionCircle = "circle"
	actionArrow  = "arrow"
	actionText   = "text"
	actionUndo   = "undo"
	actionClear  = "clear"
	actionToggle = "toggle"
	actionQuit   = "quit"

	ActionCopy     = "copy"
	ActionSave     = "save"
	ActionDelegate = "delegate"
	ActionRefresh  = "refresh"
)

// KeyShortcut describes a keyboard shortcut.
type KeyShortcut struct {
	Rune      rune
	Code      key.Code
	Modifiers key.Modifiers
}

var keyboardAction = map[KeyShortcut]string{
	{Rune: 'o'}:            actionCircle,
	{Rune: 'a'}:            actionArrow,
	{Rune: 't'}:            actionText,
	{Rune: 'u'}:            actionUndo,
	{Rune: 'x'}:            actionClear,
	{Rune: 'c'}:            ActionCopy,
	{Rune: 's'}:            ActionSave,
	{Rune: 'd'}:            ActionDelegate,
	{Rune: 'r'}:            ActionRefresh,
	{Rune: 'q'}:            actionQuit,
	{Code: key.CodeEscape}: actionToggle,
}

// keyAction maps a key press to an action name. Digits 1-9 select palette
// entries and are reported as "color:N".
func keyAction(e key.Event) (string, bool) {
	if e.Rune >= '1' && e.Rune <= '9' && e.Modifiers == 0 {
		return colorAction(int(e.Rune - '1')), true
	}
	r := e.Rune
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	if name, ok := keyboardAction[KeyShortcut{Rune: r, Modifiers: e.Modifiers &^ key.ModShift}]; ok && r > 0 {
		return name, true
	}
	name, ok := keyboardAction[KeyShortcut{Code: e.Code}]
	return name, ok
}

// ButtonState represents the visual state of a button.
type ButtonState int

const (
	StateDefault ButtonState = iota
	StateHover
	StateActive
)

// button is a labelled clickable region bound to an action.
type button struct {
	label  string
	action string
	rect   image.Rectangle
}

func (b button) draw(dst *image.RGBA, th *theme.Theme, state ButtonState) {
	bg := th.ButtonBackground
	fg := th.ButtonText
	switch state {
	case StateHover:
		bg = th.ButtonBackgroundHover
	case StateActive:
		bg = th.ButtonActive
		fg = th.ButtonTextActive
	}
	draw.Draw(dst, b.rect, &image.Uniform{bg}, image.Point{}, draw.Src)
	drawRect(dst, b.rect, th.ButtonBorder)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: basicfont.Face7x13}
	w := d.MeasureString(b.label).Ceil()
	d.Dot = fixed.P(b.rect.Min.X+(b.rect.Dx()-w)/2, b.rect.Min.Y+(b.rect.Dy()+10)/2)
	d.DrawString(b.label)
}

func labelWidth(s string) int {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}

var toolLabels = []struct {
	label  string
	action string
	tool   annotation.Tool
}{
	{"O:Circle", actionCircle, annotation.ToolCircle},
	{"A:Arrow", actionArrow, annotation.ToolArrow},
	{"T:Text", actionText, annotation.ToolText},
}

// toolbarLayout places the tool buttons followed by one swatch per palette
// entry along the top bar.
func toolbarLayout(palette []color.RGBA) (tools []button, swatches []image.Rectangle) {
	x := 4
	for _, tl := range toolLabels {
		w := labelWidth(tl.label) + 12
		tools = append(tools, button{label: tl.label, action: tl.action, rect: image.Rect(x, 4, x+w, toolbarHeight-4)})
		x += w + 4
	}
	x += 8
	y := (toolbarHeight - swatchSize) / 2
	for range palette {
		swatches = append(swatches, image.Rect(x, y, x+swatchSize, y+swatchSize))
		x += swatchSize + 2
	}
	return tools, swatches
}

var shortcutLabels = []struct{ label, action string }{
	{"U:undo", actionUndo},
	{"X:clear", actionClear},
	{"C:copy", ActionCopy},
	{"S:save", ActionSave},
	{"D:send", ActionDelegate},
	{"R:refresh", ActionRefresh},
	{"Esc:hide", actionToggle},
	{"Q:quit", actionQuit},
}

// statusLayout places the shortcut buttons along the bottom bar of a
// window of the given height.
func statusLayout(height int) []button {
	var out []button
	x := 4
	top := height - statusHeight
	for _, sc := range shortcutLabels {
		w := labelWidth(sc.label) + 8
		out = append(out, button{label: sc.label, action: sc.action, rect: image.Rect(x, top+3, x+w, top+statusHeight-3)})
		x += w + 6
	}
	return out
}

func hitButton(buttons []button, p image.Point) int {
	for i, b := range buttons {
		if p.In(b.rect) {
			return i
		}
	}
	return -1
}

func hitRect(rects []image.Rectangle, p image.Point) int {
	for i, r := range rects {
		if p.In(r) {
			return i
		}
	}
	return -1
}

func drawRect(img *image.RGBA, rect image.Rectangle, col color.Color) {
	u := &image.Uniform{col}
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y), u, image.Point{}, draw.Src)
}
