package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/go-rod/rod/lib/proto"

	"github.com/example/pagemark/internal/annotation"
)

// Rasterizer paints composed SVG documents in a scratch tab.
type Rasterizer struct {
	manager *Manager
}

const waitFrameJS = `() => new Promise(resolve => {
	const img = document.getElementById("frame");
	if (!img) return resolve(0);
	if (img.complete) return resolve(img.naturalWidth);
	img.onload = () => resolve(img.naturalWidth);
	img.onerror = () => resolve(0);
})`

// RasterDocument wraps svg in a page that displays it as an image at its
// natural size.
func RasterDocument(svg string) string {
	src := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
	return `<!DOCTYPE html><html><head><style>html,body{margin:0;padding:0;background:#fff}</style></head>` +
		`<body><img id="frame" src="` + src + `"></body></html>`
}

// Rasterize implements capture.Rasterizer.
func (r *Rasterizer) Rasterize(ctx context.Context, svg string, vp annotation.Viewport) (image.Image, error) {
	b, err := r.manager.Start(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: raster tab: %w", err)
	}
	defer page.Close()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("browser: raster viewport: %w", err)
	}
	if err := page.Context(ctx).SetDocumentContent(RasterDocument(svg)); err != nil {
		return nil, fmt.Errorf("browser: raster content: %w", err)
	}
	res, err := page.Context(ctx).Eval(waitFrameJS)
	if err != nil {
		return nil, fmt.Errorf("browser: raster load: %w", err)
	}
	if res.Value.Int() == 0 {
		return nil, fmt.Errorf("browser: composed svg failed to load")
	}
	return screenshot(ctx, page)
}
