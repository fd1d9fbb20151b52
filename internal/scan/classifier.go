// Package scan turns camera frames into medication suggestions using an
// external image classifier.
package scan

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starford/dosewise/internal/apperr"
	"github.com/starford/dosewise/internal/models"
)

// Prediction is one labeled score from the classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels an image frame.
type Classifier interface {
	Ready() bool
	Classify(ctx context.Context, frame []byte) ([]Prediction, error)
}

// HTTPClassifier talks to a model server exposing GET /metadata and
// POST /predict.
type HTTPClassifier struct {
	http   *resty.Client
	ready  atomic.Bool
	logger *slog.Logger
}

// NewHTTPClassifier creates a client for the model server at endpoint. It is
// not ready until Probe succeeds.
func NewHTTPClassifier(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPClassifier{http: client, logger: logger}
}

// Probe checks that the model is loaded and flips Ready accordingly.
func (c *HTTPClassifier) Probe(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/metadata")
	if err != nil {
		c.ready.Store(false)
		return fmt.Errorf("scan: probe model: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.ready.Store(false)
		return fmt.Errorf("scan: probe model: status %d", resp.StatusCode())
	}
	c.ready.Store(true)
	c.logger.Info("scan: model ready")
	return nil
}

func (c *HTTPClassifier) Ready() bool { return c.ready.Load() }

func (c *HTTPClassifier) Classify(ctx context.Context, frame []byte) ([]Prediction, error) {
	if !c.Ready() {
		return nil, apperr.ErrNotReady
	}
	var preds []Prediction
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(frame).
		SetResult(&preds).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("scan: classify: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scan: classify: status %d", resp.StatusCode())
	}
	return preds, nil
}

// Top returns the highest-confidence prediction.
func Top(preds []Prediction) (Prediction, bool) {
	if len(preds) == 0 {
		return Prediction{}, false
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best, true
}

// DetectColor returns the first palette color named in label, white if none.
func DetectColor(label string) models.PillColor {
	lower := strings.ToLower(label)
	for _, c := range models.PillColors {
		if strings.Contains(lower, string(c)) {
			return c
		}
	}
	return models.ColorWhite
}

const (
	scanNote     = "Added via AI Scan"
	scanFileName = "scan_capture.png"
)

// ToInput suggests a medication for p. Dosage is left for the user to fill.
// When frame is not empty it is attached as a data URL.
func ToInput(p Prediction, frame []byte, mimeType string) models.MedicationInput {
	in := models.MedicationInput{
		Name:      p.Label,
		Frequency: models.FrequencyOnceDaily,
		Color:     DetectColor(p.Label),
		Notes:     scanNote,
	}
	if len(frame) > 0 {
		if mimeType == "" {
			mimeType = "image/png"
		}
		in.Attachment = &models.Attachment{
			Data:     "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(frame),
			MimeType: mimeType,
			FileName: scanFileName,
		}
	}
	return in
}
