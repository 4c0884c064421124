package render

import (
	"image"
	"image/color"
	"image/draw"
)

// ShadowOptions configures the drop shadow painted under floating boxes.
type ShadowOptions struct {
	Radius  int
	Offset  image.Point
	Opacity float64
}

// DefaultShadowOptions returns the shadow used under the text entry and
// status popups.
func DefaultShadowOptions() ShadowOptions {
	return ShadowOptions{
		Radius:  4,
		Offset:  image.Pt(2, 3),
		Opacity: 0.35,
	}
}

// DropShadow paints a blurred shadow of box onto dst, shifted by
// opts.Offset. The box itself is not painted; callers fill it afterwards.
// It returns the area of dst that was touched.
func DropShadow(dst *image.RGBA, box image.Rectangle, opts ShadowOptions) image.Rectangle {
	if dst == nil || box.Empty() || opts.Opacity <= 0 {
		return image.Rectangle{}
	}
	opacity := opts.Opacity
	if opacity > 1 {
		opacity = 1
	}
	radius := opts.Radius
	if radius < 0 {
		radius = 0
	}

	padded := box.Inset(-radius)
	mask := image.NewGray(padded.Sub(padded.Min))
	inner := box.Sub(padded.Min)
	draw.Draw(mask, inner, image.NewUniform(color.Gray{Y: 0xff}), image.Point{}, draw.Src)

	blurred := blurGray(mask, radius)

	target := padded.Add(opts.Offset)
	alpha := uint8(opacity*255 + 0.5)
	draw.DrawMask(dst, target, image.NewUniform(color.RGBA{0, 0, 0, alpha}), image.Point{}, blurred, image.Point{}, draw.Over)
	return target.Intersect(dst.Bounds())
}

// blurGray applies a separable box blur of the given radius.
func blurGray(src *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		out := image.NewGray(src.Bounds())
		copy(out.Pix, src.Pix)
		return out
	}
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	tmp := image.NewGray(bounds)
	dst := image.NewGray(bounds)

	boxPass := func(n int, at func(i int) int, set func(i, v int)) {
		prefix := make([]int, n+1)
		for i := 0; i < n; i++ {
			prefix[i+1] = prefix[i] + at(i)
		}
		for i := 0; i < n; i++ {
			lo := max(i-radius, 0)
			hi := min(i+radius, n-1)
			set(i, (prefix[hi+1]-prefix[lo])/(hi-lo+1))
		}
	}

	for y := 0; y < h; y++ {
		row := y * src.Stride
		trow := y * tmp.Stride
		boxPass(w,
			func(x int) int { return int(src.Pix[row+x]) },
			func(x, v int) { tmp.Pix[trow+x] = uint8(v) })
	}
	for x := 0; x < w; x++ {
		col := x
		boxPass(h,
			func(y int) int { return int(tmp.Pix[y*tmp.Stride+col]) },
			func(y, v int) { dst.Pix[y*dst.Stride+col] = uint8(v) })
	}
	return dst
}
