package annotation

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMarshalEmitsOnlyToolGeometry(t *testing.T) {
	circle, err := json.Marshal(Annotation{ID: 1, Tool: ToolCircle, X: 10, Y: 20, Width: 30, Height: 40, Color: "#fff"})
	if err != nil {
		t.Fatalf("marshal circle: %v", err)
	}
	if s := string(circle); strings.Contains(s, "endX") || strings.Contains(s, "text") || !strings.Contains(s, `"width":30`) {
		t.Fatalf("unexpected circle json %s", s)
	}
	arrow, err := json.Marshal(Annotation{ID: 2, Tool: ToolArrow, X: 1, Y: 2, EndX: 0, EndY: 9, Color: "#000"})
	if err != nil {
		t.Fatalf("marshal arrow: %v", err)
	}
	if s := string(arrow); !strings.Contains(s, `"endX":0`) || strings.Contains(s, "width") {
		t.Fatalf("unexpected arrow json %s", s)
	}
	if _, err := json.Marshal(Annotation{Tool: "square"}); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestUnmarshalRejectsForeignGeometry(t *testing.T) {
	var a Annotation
	if err := json.Unmarshal([]byte(`{"id":1,"tool":"circle","x":1,"y":1,"width":2,"height":3,"text":"x","color":"#fff"}`), &a); err == nil {
		t.Fatalf("expected error for circle with text")
	}
	if err := json.Unmarshal([]byte(`{"id":3,"tool":"text","x":5,"y":6,"text":"hi","color":"#fff"}`), &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Text != "hi" || a.X != 5 || a.ID != 3 {
		t.Fatalf("unexpected decode %+v", a)
	}
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		name string
		a    Annotation
		ok   bool
	}{
		{"circle", Annotation{Tool: ToolCircle, Width: 100, Height: 80, Color: "#f00"}, true},
		{"tiny circle", Annotation{Tool: ToolCircle, Width: 4, Height: 80, Color: "#f00"}, false},
		{"arrow", Annotation{Tool: ToolArrow, X: 50, Y: 50, EndX: 90, EndY: 20, Color: "#f00"}, true},
		{"zero arrow", Annotation{Tool: ToolArrow, X: 50, Y: 50, EndX: 50, EndY: 50, Color: "#f00"}, false},
		{"text", Annotation{Tool: ToolText, Text: "look", Color: "#f00"}, true},
		{"blank text", Annotation{Tool: ToolText, Text: "  ", Color: "#f00"}, false},
		{"no color", Annotation{Tool: ToolText, Text: "x"}, false},
	}
	for _, tc := range cases {
		err := tc.a.Validate(p)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}
}

func TestArrowHeadGeometry(t *testing.T) {
	p := DefaultParams()
	lx, ly, rx, ry := p.ArrowHead(0, 0, 100, 0)
	// 12px sides at 30 degrees: base corners sit 10.39px back and 6px off axis.
	if lx < 89.5 || lx > 89.7 || math.Abs(rx-lx) > 1e-9 {
		t.Fatalf("unexpected x coordinates %v %v", lx, rx)
	}
	if ly < 5.99 || ly > 6.01 || ry > -5.99 || ry < -6.01 {
		t.Fatalf("unexpected y coordinates %v %v", ly, ry)
	}
}

func TestCounterIsPerInstance(t *testing.T) {
	var a, b Counter
	if a.Next() != 1 || a.Next() != 2 {
		t.Fatalf("counter did not increase")
	}
	if b.Next() != 1 {
		t.Fatalf("counters share state")
	}
}

func TestSnapshotValidate(t *testing.T) {
	s := Snapshot{
		URL:               "http://localhost:3000/",
		Viewport:          Viewport{Width: 800, Height: 600},
		Timestamp:         Timestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		ScreenshotDataURL: "data:image/png;base64,AAAA",
		Annotations: []Annotation{
			{ID: 1, Tool: ToolText, Text: "fix", Color: "#f00"},
		},
	}
	if err := s.Validate(DefaultParams()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Annotations = append(s.Annotations, s.Annotations[0])
	if err := s.Validate(DefaultParams()); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}
