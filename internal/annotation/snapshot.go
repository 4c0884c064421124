package annotation

import (
	"fmt"
	"strings"
	"time"
)

// Viewport is the visible page area in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Scroll is the page scroll offset at capture time.
type Scroll struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is the bundle handed to an agent: page metadata, the captured
// image and the annotations present when it was taken.
type Snapshot struct {
	URL               string       `json:"url"`
	Title             string       `json:"title"`
	Viewport          Viewport     `json:"viewport"`
	Timestamp         string       `json:"timestamp"`
	ScreenshotDataURL string       `json:"screenshotDataUrl"`
	Annotations       []Annotation `json:"annotations"`
}

// Timestamp formats t the way snapshots carry it.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Validate checks the snapshot fields an inbox relies on.
func (s Snapshot) Validate(p Params) error {
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("snapshot: missing url")
	}
	if s.Viewport.Width <= 0 || s.Viewport.Height <= 0 {
		return fmt.Errorf("snapshot: invalid viewport %dx%d", s.Viewport.Width, s.Viewport.Height)
	}
	if _, err := time.Parse(time.RFC3339, s.Timestamp); err != nil {
		return fmt.Errorf("snapshot: timestamp: %w", err)
	}
	if !strings.HasPrefix(s.ScreenshotDataURL, "data:image/") {
		return fmt.Errorf("snapshot: screenshot is not an image data url")
	}
	seen := make(map[int]bool, len(s.Annotations))
	for _, a := range s.Annotations {
		if seen[a.ID] {
			return fmt.Errorf("snapshot: duplicate annotation id %d", a.ID)
		}
		seen[a.ID] = true
		if err := a.Validate(p); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	return nil
}
