// Package appstate runs the interactive annotation window. The window shows
// a screenshot of the page under a toolbar, forwards pointer and keyboard
// input to an overlay.Controller and mirrors the controller's shapes so the
// user sees the marks as they are drawn.
package appstate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/pagemark/internal/annotation"
	pdraw "github.com/example/pagemark/internal/draw"
	"github.com/example/pagemark/internal/overlay"
	"github.com/example/pagemark/internal/render"
	"github.com/example/pagemark/internal/theme"
)

// Action is a long running command bound to a key, such as copying or
// delegating a capture. The returned string is shown in the status bar.
type Action func(ctx context.Context) (string, error)

// AppState holds the window state.
type AppState struct {
	Title string
	Theme *theme.Theme
	Tool  annotation.Tool

	ctl     *overlay.Controller
	actions map[string]Action
	logger  *slog.Logger
	onClose func()

	closeOnce sync.Once

	mu       sync.Mutex
	backdrop *image.RGBA
	shapes   []pdraw.Shape
	updateCh chan struct{}

	// UI goroutine state.
	send         func(any)
	saving       bool
	quit         bool
	colorIdx     int
	message      string
	messageUntil time.Time
	hover        int
}

// Option modifies an AppState during creation.
type Option func(*AppState)

// WithBackdrop sets the page screenshot shown under the marks.
func WithBackdrop(img image.Image) Option { return func(a *AppState) { a.backdrop = toRGBA(img) } }

// WithTheme sets the window colors and palette.
func WithTheme(t *theme.Theme) Option { return func(a *AppState) { a.Theme = t } }

// WithTitle sets the window title.
func WithTitle(title string) Option { return func(a *AppState) { a.Title = title } }

// WithTool sets the tool activated when the window opens.
func WithTool(t annotation.Tool) Option { return func(a *AppState) { a.Tool = t } }

// WithAction binds name to fn. The built-in keys c, s, d and r trigger the
// actions named ActionCopy, ActionSave, ActionDelegate and ActionRefresh.
func WithAction(name string, fn Action) Option {
	return func(a *AppState) { a.actions[name] = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(a *AppState) { a.logger = l } }

// WithOnClose registers a callback invoked when the window closes.
func WithOnClose(fn func()) Option { return func(a *AppState) { a.onClose = fn } }

// New creates an AppState driving ctl.
func New(ctl *overlay.Controller, opts ...Option) *AppState {
	a := &AppState{
		ctl:      ctl,
		actions:  map[string]Action{},
		Tool:     annotation.ToolCircle,
		updateCh: make(chan struct{}, 1),
		hover:    -1,
		send:     func(any) {},
	}
	for _, o := range opts {
		o(a)
	}
	if a.Theme == nil {
		a.Theme = theme.Default()
	}
	if len(a.Theme.Palette) == 0 {
		a.Theme.Palette = theme.DefaultPalette()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.colorIdx = a.paletteIndex(ctl.Color())
	return a
}

// Mirror wraps the page surface so every frame the controller renders is
// also shown in the window.
func (a *AppState) Mirror(s overlay.Surface) overlay.Surface {
	return &mirror{Surface: s, app: a}
}

type mirror struct {
	overlay.Surface
	app *AppState
}

func (m *mirror) Render(shapes []pdraw.Shape) {
	m.Surface.Render(shapes)
	m.app.setShapes(shapes)
}

func (m *mirror) SetVisible(v bool) {
	m.Surface.SetVisible(v)
	m.app.NotifyChanged()
}

// SetBackdrop replaces the page screenshot. It is safe to call from any
// goroutine.
func (a *AppState) SetBackdrop(img image.Image) {
	a.mu.Lock()
	a.backdrop = toRGBA(img)
	a.mu.Unlock()
	a.NotifyChanged()
}

func (a *AppState) setShapes(shapes []pdraw.Shape) {
	a.mu.Lock()
	a.shapes = shapes
	a.mu.Unlock()
	a.NotifyChanged()
}

// NotifyChanged requests a repaint.
func (a *AppState) NotifyChanged() {
	select {
	case a.updateCh <- struct{}{}:
	default:
	}
}

func (a *AppState) snapshot() (*image.RGBA, []pdraw.Shape) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backdrop, a.shapes
}

func toRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func colorAction(idx int) string { return "color:" + strconv.Itoa(idx) }

func (a *AppState) paletteIndex(c string) int {
	for i, p := range a.Theme.Palette {
		if strings.EqualFold(theme.Hex(p), c) {
			return i
		}
	}
	return -1
}

func (a *AppState) setMessage(msg string) {
	a.message = msg
	a.messageUntil = time.Now().Add(3 * time.Second)
}

type actionDone struct {
	name string
	msg  string
	err  error
}

// dispatch runs the named action. Drawing actions are ignored while an
// Action is in flight so the controller is never used concurrently.
func (a *AppState) dispatch(name string) {
	if name == actionQuit {
		a.quit = true
		return
	}
	if a.saving {
		a.setMessage("busy")
		return
	}
	switch {
	case name == actionCircle || name == actionArrow || name == actionText:
		for _, tl := range toolLabels {
			if tl.action == name {
				a.Tool = tl.tool
			}
		}
		if err := a.ctl.Show(a.Tool); err != nil {
			a.logger.Warn("show overlay", "error", err)
			a.setMessage(err.Error())
		}
	case name == actionUndo:
		a.ctl.Undo()
	case name == actionClear:
		a.ctl.Clear()
	case name == actionToggle:
		if a.ctl.Visible() {
			a.ctl.Hide()
		} else if err := a.ctl.Show(a.Tool); err != nil {
			a.setMessage(err.Error())
		}
	case strings.HasPrefix(name, "color:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(name, "color:"))
		if err != nil || idx < 0 || idx >= len(a.Theme.Palette) {
			return
		}
		a.colorIdx = idx
		a.ctl.SetColor(theme.Hex(a.Theme.Palette[idx]))
	default:
		fn, ok := a.actions[name]
		if !ok {
			return
		}
		a.saving = true
		a.setMessage(name + "...")
		go func() {
			msg, err := fn(context.Background())
			a.send(actionDone{name: name, msg: msg, err: err})
		}()
	}
	a.NotifyChanged()
}

func (a *AppState) finish(done actionDone) {
	a.saving = false
	if done.err != nil {
		a.logger.Warn("action failed", "action", done.name, "error", done.err)
		a.setMessage(fmt.Sprintf("%s: %v", done.name, done.err))
		return
	}
	a.logger.Info("action finished", "action", done.name, "result", done.msg)
	a.setMessage(done.msg)
}

// handleKey routes a key press to the open text entry or to a shortcut.
func (a *AppState) handleKey(e key.Event) {
	if !a.saving && a.ctl.Editing() {
		a.ctl.HandleKey(e)
		return
	}
	if e.Direction == key.DirRelease {
		return
	}
	if name, ok := keyAction(e); ok {
		a.dispatch(name)
	}
}

// handleMouse routes pointer input to the bars or, translated into page
// coordinates, to the controller.
func (a *AppState) handleMouse(e mouse.Event, height int) {
	p := image.Pt(int(e.X), int(e.Y))
	press := e.Button == mouse.ButtonLeft && e.Direction == mouse.DirPress
	switch {
	case p.Y < toolbarHeight:
		tools, swatches := toolbarLayout(a.Theme.Palette)
		if i := hitButton(tools, p); i >= 0 && press {
			a.dispatch(tools[i].action)
		} else if i := hitRect(swatches, p); i >= 0 && press {
			a.dispatch(colorAction(i))
		}
		return
	case p.Y >= height-statusHeight:
		status := statusLayout(height)
		i := hitButton(status, p)
		if i != a.hover {
			a.hover = i
			a.NotifyChanged()
		}
		if i >= 0 && press {
			a.dispatch(status[i].action)
		}
		return
	}
	if a.saving {
		return
	}
	e.Y -= toolbarHeight
	a.ctl.HandleMouse(e)
}

// Run executes the UI loop using shiny's driver.
func (a *AppState) Run() { driver.Main(a.Main) }

// Main runs the window on s until it is closed or quit is requested.
func (a *AppState) Main(s screen.Screen) {
	defer a.notifyClose()

	width, height := 960, 640
	if bg, _ := a.snapshot(); bg != nil {
		width = max(bg.Bounds().Dx(), 480)
		height = bg.Bounds().Dy() + toolbarHeight + statusHeight
	}
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: a.Title})
	if err != nil {
		a.logger.Error("new window", "error", err)
		return
	}
	defer w.Release()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-a.updateCh:
				w.Send(paint.Event{})
			case <-done:
				return
			}
		}
	}()
	a.send = w.Send

	if err := a.ctl.Show(a.Tool); err != nil {
		a.logger.Warn("show overlay", "error", err)
		a.setMessage(err.Error())
	}

	for !a.quit {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.Crosses(lifecycle.StageFocused) == lifecycle.CrossOff && !a.saving {
				a.ctl.Blur()
			}
			if e.To == lifecycle.StageDead {
				return
			}
		case size.Event:
			width, height = e.WidthPx, e.HeightPx
			w.Send(paint.Event{})
		case paint.Event:
			a.paint(s, w, width, height)
		case actionDone:
			a.finish(e)
			w.Send(paint.Event{})
		case key.Event:
			a.handleKey(e)
		case mouse.Event:
			a.handleMouse(e, height)
		case error:
			a.logger.Error("window", "error", e)
		}
	}
}

func (a *AppState) notifyClose() {
	a.closeOnce.Do(func() {
		if a.onClose != nil {
			a.onClose()
		}
	})
}

func (a *AppState) paint(s screen.Screen, w screen.Window, width, height int) {
	b, err := s.NewBuffer(image.Point{width, height})
	if err != nil {
		a.logger.Error("new buffer", "error", err)
		return
	}
	defer b.Release()
	a.frame(b.RGBA(), width, height)
	w.Upload(image.Point{}, b, b.Bounds())
	w.Publish()
}

// frame paints the whole window into dst.
func (a *AppState) frame(dst *image.RGBA, width, height int) {
	th := a.Theme
	draw.Draw(dst, dst.Bounds(), &image.Uniform{th.Background}, image.Point{}, draw.Src)

	origin := image.Pt(0, toolbarHeight)
	bg, shapes := a.snapshot()
	if bg != nil {
		draw.Draw(dst, bg.Bounds().Add(origin), bg, image.Point{}, draw.Src)
	}
	if a.ctl.Visible() {
		render.Shapes(dst, origin, shapes, a.ctl.Params())
	} else {
		page := image.Rect(0, toolbarHeight, width, height-statusHeight)
		draw.Draw(dst, page, &image.Uniform{th.Dim}, image.Point{}, draw.Over)
	}

	a.drawToolbar(dst, width)
	a.drawStatus(dst, width, height)

	if a.message != "" && time.Now().Before(a.messageUntil) {
		a.drawMessage(dst, width, height)
	}
}

func (a *AppState) drawToolbar(dst *image.RGBA, width int) {
	th := a.Theme
	draw.Draw(dst, image.Rect(0, 0, width, toolbarHeight), &image.Uniform{th.ToolbarBackground}, image.Point{}, draw.Src)
	tools, swatches := toolbarLayout(th.Palette)
	for i, b := range tools {
		state := StateDefault
		if a.ctl.Visible() && toolLabels[i].tool == a.ctl.Tool() {
			state = StateActive
		}
		b.draw(dst, th, state)
	}
	for i, r := range swatches {
		draw.Draw(dst, r, &image.Uniform{th.Palette[i]}, image.Point{}, draw.Src)
		if i == a.colorIdx {
			drawRect(dst, r.Inset(-2), th.Foreground)
		}
		drawRect(dst, r, th.ButtonBorder)
	}
}

func (a *AppState) drawStatus(dst *image.RGBA, width, height int) {
	th := a.Theme
	bar := image.Rect(0, height-statusHeight, width, height)
	draw.Draw(dst, bar, &image.Uniform{th.StatusBackground}, image.Point{}, draw.Src)
	status := statusLayout(height)
	for i, b := range status {
		state := StateDefault
		if i == a.hover {
			state = StateHover
		}
		b.draw(dst, th, state)
	}
	count := fmt.Sprintf("%d marks", a.ctl.AnnotationCount())
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(th.Foreground), Face: basicfont.Face7x13}
	d.Dot = fixed.P(width-d.MeasureString(count).Ceil()-8, height-statusHeight+16)
	d.DrawString(count)
}

func (a *AppState) drawMessage(dst *image.RGBA, width, height int) {
	th := a.Theme
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(th.Foreground), Face: basicfont.Face7x13}
	wmsg := d.MeasureString(a.message).Ceil()
	px := (width - wmsg) / 2
	py := height - statusHeight - 24
	rect := image.Rect(px-8, py-14, px+wmsg+8, py+6)
	render.DropShadow(dst, rect, render.DefaultShadowOptions())
	draw.Draw(dst, rect, &image.Uniform{color.RGBA{255, 255, 255, 240}}, image.Point{}, draw.Over)
	drawRect(dst, rect, th.ButtonBorder)
	d.Dot = fixed.P(px, py)
	d.DrawString(a.message)
}
