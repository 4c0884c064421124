package draw

import (
	"strings"
	"testing"

	"github.com/example/pagemark/internal/annotation"
)

func TestParseMark(t *testing.T) {
	m, err := ParseMark("circle 100 100 200 180 @#00ff00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Tool != annotation.ToolCircle || len(m.Coords) != 4 || m.Color != "#00ff00" {
		t.Fatalf("unexpected mark %+v", m)
	}
	m, err = ParseMark("text 10 20 look  here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Text != "look here" || len(m.Coords) != 2 {
		t.Fatalf("unexpected text mark %+v", m)
	}
	for _, bad := range []string{"", "square 1 2 3 4", "arrow 1 2 3", "text 1 2", "circle a b c d"} {
		if _, err := ParseMark(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPlayDrivesEngine(t *testing.T) {
	e := New(Options{Tool: annotation.ToolArrow, Color: "#ff0000"})
	for _, line := range []string{"circle 100 100 200 180 @#00ff00", "text 5 6 hello", "arrow 50 50 50 50"} {
		m, err := ParseMark(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		m.Play(e)
	}
	got := e.Annotations()
	if len(got) != 2 {
		t.Fatalf("expected 2 annotations, got %+v", got)
	}
	if got[0].Width != 100 || got[0].Height != 80 || got[0].Color != "#00ff00" {
		t.Fatalf("unexpected circle %+v", got[0])
	}
	if got[1].Tool != annotation.ToolText || !strings.EqualFold(got[1].Text, "hello") || got[1].Color != "#ff0000" {
		t.Fatalf("unexpected text %+v", got[1])
	}
	if e.Tool() != annotation.ToolArrow || e.Color() != "#ff0000" {
		t.Fatalf("play must restore tool and color")
	}
}
