package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/dosewise/internal/apperr"
	"github.com/starford/dosewise/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func modelServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/metadata":
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, `{"labels":["Aspirin","Blue Pill"]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/predict":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "frame-bytes" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"label":"Aspirin","confidence":0.2},{"label":"Blue Pill","confidence":0.7}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClassifier_ProbeAndClassify(t *testing.T) {
	srv := modelServer(t, true)
	c := NewHTTPClassifier(srv.URL, time.Second, quietLogger())
	ctx := context.Background()

	if _, err := c.Classify(ctx, []byte("frame-bytes")); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("before probe err = %v", err)
	}
	if err := c.Probe(ctx); err != nil {
		t.Fatal(err)
	}
	if !c.Ready() {
		t.Fatal("expected ready")
	}
	preds, err := c.Classify(ctx, []byte("frame-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	top, ok := Top(preds)
	if !ok || top.Label != "Blue Pill" {
		t.Errorf("top = %+v", top)
	}
	if _, err := c.Classify(ctx, []byte("garbage")); err == nil {
		t.Error("expected error status")
	}
}

func TestHTTPClassifier_ProbeFailure(t *testing.T) {
	srv := modelServer(t, false)
	c := NewHTTPClassifier(srv.URL, time.Second, quietLogger())
	if err := c.Probe(context.Background()); err == nil {
		t.Error("expected probe error")
	}
	if c.Ready() {
		t.Error("must not be ready")
	}
}

func TestDetectColor(t *testing.T) {
	cases := map[string]models.PillColor{
		"Blue Pill":          models.ColorBlue,
		"aspirin":            models.ColorWhite,
		"RED and white caps": models.ColorWhite,
		"Purple capsule":     models.ColorPurple,
	}
	for label, want := range cases {
		if got := DetectColor(label); got != want {
			t.Errorf("DetectColor(%q) = %s, want %s", label, got, want)
		}
	}
}

func TestToInput(t *testing.T) {
	in := ToInput(Prediction{Label: "Green Tablet", Confidence: 0.9}, []byte{1, 2, 3}, "")
	if in.Name != "Green Tablet" || in.Color != models.ColorGreen || in.Notes != "Added via AI Scan" {
		t.Errorf("input = %+v", in)
	}
	if in.Attachment == nil || !strings.HasPrefix(in.Attachment.Data, "data:image/png;base64,AQID") {
		t.Errorf("attachment = %+v", in.Attachment)
	}
	if ToInput(Prediction{Label: "x"}, nil, "").Attachment != nil {
		t.Error("no frame should mean no attachment")
	}
	if _, ok := Top(nil); ok {
		t.Error("Top(nil) should report false")
	}
}

type stubClassifier struct {
	ready bool
	calls int
	mu    sync.Mutex
}

func (s *stubClassifier) Ready() bool { return s.ready }

func (s *stubClassifier) Classify(context.Context, []byte) ([]Prediction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return []Prediction{{Label: "a", Confidence: 0.1}, {Label: "b", Confidence: 0.8}}, nil
}

func TestSampler_ReportsTopAndSkipsWhenNotReady(t *testing.T) {
	stub := &stubClassifier{}
	var mu sync.Mutex
	var tops []string
	s := &Sampler{
		Classifier: stub,
		Frames:     func(context.Context) ([]byte, error) { return []byte("f"), nil },
		Interval:   5 * time.Millisecond,
		OnTop: func(p Prediction) {
			mu.Lock()
			tops = append(tops, p.Label)
			mu.Unlock()
		},
		Logger: quietLogger(),
	}

	s.sample(context.Background())
	if stub.calls != 0 {
		t.Error("classified while not ready")
	}

	stub.ready = true
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(tops) == 0 {
		t.Fatal("no predictions reported")
	}
	for _, l := range tops {
		if l != "b" {
			t.Errorf("reported %q, want top label b", l)
		}
	}
}

func TestSampler_SkipsFrameErrors(t *testing.T) {
	stub := &stubClassifier{ready: true}
	s := &Sampler{
		Classifier: stub,
		Frames:     func(context.Context) ([]byte, error) { return nil, errors.New("camera busy") },
		OnTop:      func(Prediction) { t.Error("unexpected prediction") },
		Logger:     quietLogger(),
	}
	s.sample(context.Background())
	if stub.calls != 0 {
		t.Error("classified without a frame")
	}
}
