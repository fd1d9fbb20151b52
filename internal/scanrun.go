package internal

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/starford/dosewise/internal/scan"
)

// ScanOptions configures a command-line scan session.
type ScanOptions struct {
	// Frame is re-read on every tick so an external capture tool can keep
	// overwriting it.
	Frame string
	// Add registers the first prediction at or above MinConfidence and
	// ends the session. Dosage is required with Add since the classifier
	// only knows the name.
	Add           bool
	Dosage        string
	MinConfidence float64
}

// RunScan samples frames from a file and logs the top prediction of each
// classification until interrupted.
func RunScan(ctx context.Context, so ScanOptions, opts ...Option) error {
	if so.Frame == "" {
		return fmt.Errorf("scan: frame path is required")
	}
	if so.Add && so.Dosage == "" {
		return fmt.Errorf("scan: dosage is required with add")
	}

	c, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	if c.classifier == nil {
		return fmt.Errorf("scan: endpoint is not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.classifier.Probe(ctx); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(so.Frame))
	logger := c.logger
	added := false

	sampler := &scan.Sampler{
		Classifier: c.classifier,
		Interval:   c.cfg.Scan.Interval,
		Logger:     logger,
		Frames: func(context.Context) ([]byte, error) {
			return os.ReadFile(so.Frame)
		},
		OnTop: func(p scan.Prediction) {
			logger.Info("scan prediction",
				slog.String("label", p.Label),
				slog.Float64("confidence", p.Confidence))
			if !so.Add || added || p.Confidence < so.MinConfidence {
				return
			}
			frame, err := os.ReadFile(so.Frame)
			if err != nil {
				logger.Warn("scan: frame not attached", slog.String("error", err.Error()))
			}
			in := scan.ToInput(p, frame, mimeType)
			in.Dosage = so.Dosage
			med, findings, err := c.service.AddMedication(ctx, in)
			if err != nil {
				logger.Error("scan: add medication", slog.String("error", err.Error()))
				return
			}
			logger.Info("medication added from scan",
				slog.String("id", med.ID),
				slog.String("name", med.Name),
				slog.Int("interactions", len(findings)))
			added = true
			stop()
		},
	}

	logger.Info("Scanning", slog.String("frame", so.Frame), slog.Duration("interval", c.cfg.Scan.Interval))
	return sampler.Run(ctx)
}
