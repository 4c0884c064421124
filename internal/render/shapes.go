// Package render paints annotation shapes onto RGBA buffers for the
// interactive window. Captures never go through here; they are produced by
// the capture package.
package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/draw"
	"github.com/example/pagemark/internal/theme"
)

// LiveAlpha is the opacity of the gesture in progress.
const LiveAlpha = 0.8

// fallback is used when a shape carries an unparsable color.
var fallback = color.RGBA{0xef, 0x44, 0x44, 0xff}

// Shapes paints shapes onto dst. Shape coordinates are page pixels; origin is
// where the page's top-left corner sits inside dst.
func Shapes(dst *image.RGBA, origin image.Point, shapes []draw.Shape, p annotation.Params) {
	p = p.Normalize()
	thick := int(math.Round(p.StrokeWidth))
	ox, oy := float64(origin.X), float64(origin.Y)
	for _, s := range shapes {
		col := shapeColor(s)
		switch s.Kind {
		case draw.ShapeEllipse:
			cx, cy := s.Center()
			rx, ry := s.Radii()
			Ellipse(dst, ox+cx, oy+cy, rx, ry, col, thick)
		case draw.ShapeArrow:
			Arrow(dst, ox+s.X, oy+s.Y, ox+s.EndX, oy+s.EndY, col, thick, p)
		case draw.ShapeText, draw.ShapeTextEntry:
			textBox(dst, ox+s.X, oy+s.Y, s, col, p)
		}
	}
}

func shapeColor(s draw.Shape) color.RGBA {
	col, err := theme.ParseColor(s.Color)
	if err != nil {
		col = fallback
	}
	if s.Live && s.Kind != draw.ShapeTextEntry {
		col.A = uint8(float64(col.A)*LiveAlpha + 0.5)
	}
	return col
}

// blend composites c over the pixel at x,y.
func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(img.Bounds()) {
		return
	}
	if c.A == 0xff {
		img.SetRGBA(x, y, c)
		return
	}
	d := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(s, d uint8) uint8 { return uint8((uint32(s)*a + uint32(d)*(255-a)) / 255) }
	img.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, d.R),
		G: mix(c.G, d.G),
		B: mix(c.B, d.B),
		A: uint8(a + uint32(d.A)*(255-a)/255),
	})
}

func setThickPixel(img *image.RGBA, x, y, thick int, col color.RGBA) {
	r := thick / 2
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			blend(img, x+dx, y+dy, col)
		}
	}
}

// Line draws a Bresenham line with a square brush of the given thickness.
func Line(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA, thick int) {
	dx := math.Abs(float64(x1 - x0))
	dy := math.Abs(float64(y1 - y0))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		setThickPixel(img, x0, y0, thick, col)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Ellipse strokes the axis-aligned ellipse centred at cx,cy.
func Ellipse(img *image.RGBA, cx, cy, rx, ry float64, col color.RGBA, thick int) {
	steps := int(math.Ceil(2 * math.Pi * math.Sqrt(rx*rx+ry*ry)))
	if steps < 8 {
		steps = 8
	}
	var prevX, prevY int
	for i := 0; i <= steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		x := int(math.Round(cx + math.Cos(angle)*rx))
		y := int(math.Round(cy + math.Sin(angle)*ry))
		if i > 0 {
			if x != prevX || y != prevY {
				Line(img, prevX, prevY, x, y, col, thick)
			}
		} else {
			setThickPixel(img, x, y, thick, col)
		}
		prevX, prevY = x, y
	}
}

// Arrow draws the shaft and a filled head whose tip sits on the end point.
func Arrow(img *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA, thick int, p annotation.Params) {
	Line(img, iround(x0), iround(y0), iround(x1), iround(y1), col, thick)
	lx, ly, rx, ry := p.ArrowHead(x0, y0, x1, y1)
	FillTriangle(img, [3][2]float64{{x1, y1}, {lx, ly}, {rx, ry}}, col)
}

// FillTriangle fills the triangle by scanning rows between its extremes.
func FillTriangle(img *image.RGBA, pts [3][2]float64, col color.RGBA) {
	minY := math.Min(pts[0][1], math.Min(pts[1][1], pts[2][1]))
	maxY := math.Max(pts[0][1], math.Max(pts[1][1], pts[2][1]))
	for y := int(math.Floor(minY)); y <= int(math.Ceil(maxY)); y++ {
		fy := float64(y) + 0.5
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < 3; i++ {
			a, b := pts[i], pts[(i+1)%3]
			if (a[1] <= fy && b[1] > fy) || (b[1] <= fy && a[1] > fy) {
				x := a[0] + (fy-a[1])*(b[0]-a[0])/(b[1]-a[1])
				lo = math.Min(lo, x)
				hi = math.Max(hi, x)
			}
		}
		if lo > hi {
			continue
		}
		for x := int(math.Round(lo)); x <= int(math.Round(hi)); x++ {
			blend(img, x, y, col)
		}
	}
}

// textBox paints the white label box and its text. The open entry also
// gets a cursor and a dashed outline.
func textBox(img *image.RGBA, x, y float64, s draw.Shape, col color.RGBA, p annotation.Params) {
	face, err := Face(p.FontSize)
	if err != nil {
		return
	}
	label := s.Text
	if s.Kind == draw.ShapeTextEntry {
		label += "|"
	}
	w, h := Measure(face, label)
	pad := int(math.Round(p.TextPadding))
	box := image.Rect(iround(x), iround(y), iround(x)+w+2*pad, iround(y)+h+2*pad)
	if s.Kind == draw.ShapeTextEntry {
		DropShadow(img, box, DefaultShadowOptions())
	}
	FillRect(img, box, color.RGBA{0xff, 0xff, 0xff, 0xe6})
	if s.Kind == draw.ShapeTextEntry {
		DashedRect(img, box, 4, col)
	}
	d := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	d.Dot = fixed.P(box.Min.X+pad, box.Min.Y+pad+face.Metrics().Ascent.Ceil())
	d.DrawString(label)
}

// FillRect blends col over rect.
func FillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blend(img, x, y, col)
		}
	}
}

// DashedRect outlines rect with alternating dashes of col.
func DashedRect(img *image.RGBA, rect image.Rectangle, dash int, col color.RGBA) {
	if dash <= 0 {
		dash = 1
	}
	on := func(i int) bool { return (i/dash)%2 == 0 }
	for x := rect.Min.X; x < rect.Max.X; x++ {
		if on(x - rect.Min.X) {
			blend(img, x, rect.Min.Y, col)
			blend(img, x, rect.Max.Y-1, col)
		}
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		if on(y - rect.Min.Y) {
			blend(img, rect.Min.X, y, col)
			blend(img, rect.Max.X-1, y, col)
		}
	}
}

func iround(v float64) int { return int(math.Round(v)) }
