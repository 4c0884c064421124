package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
)

func sampleSnapshot() annotation.Snapshot {
	anns := capture.AnnotationList{{ID: 1, Tool: annotation.ToolCircle, X: 100, Y: 100, Width: 100, Height: 80, Color: "#ef4444"}}
	res := capture.Result{DataURL: "data:image/png;base64,AAAA"}
	meta := Meta{URL: "http://localhost:3000/", Title: "Home", Viewport: annotation.Viewport{Width: 1280, Height: 800}}
	return Build(meta, anns, res, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
}

func TestBuild(t *testing.T) {
	s := sampleSnapshot()
	if s.Timestamp != "2024-05-01T10:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", s.Timestamp)
	}
	if err := s.Validate(annotation.DefaultParams()); err != nil {
		t.Fatalf("built snapshot invalid: %v", err)
	}
	if empty := Build(Meta{}, nil, capture.Result{}, time.Now()); empty.Annotations == nil {
		t.Fatalf("annotations should be an empty list, not null")
	}
}

func TestSendPostsSnapshot(t *testing.T) {
	var got annotation.Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"success":true,"id":"abc","routed":true}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, nil).Send(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.ID != "abc" || resp.Routed == nil || !*resp.Routed {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.URL != "http://localhost:3000/" || len(got.Annotations) != 1 || got.Annotations[0].Width != 100 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendRejectsBadResponses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"success":true,"id":"x"}`},
		{"not json", http.StatusOK, `<html>`},
		{"not successful", http.StatusOK, `{"success":false,"error":"nope"}`},
		{"missing id", http.StatusOK, `{"success":true}`},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))
		_, err := NewClient(srv.URL, nil).Send(context.Background(), sampleSnapshot())
		srv.Close()
		if !errors.Is(err, ErrBadResponse) {
			t.Errorf("%s: expected ErrBadResponse, got %v", tc.name, err)
		}
	}
}

func TestSendWithoutEndpoint(t *testing.T) {
	if _, err := NewClient("", nil).Send(context.Background(), sampleSnapshot()); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
