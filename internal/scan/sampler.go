package scan

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the sampling cadence, about five frames a second.
const DefaultInterval = 200 * time.Millisecond

// FrameSource returns the current camera frame.
type FrameSource func(ctx context.Context) ([]byte, error)

// Sampler feeds frames to a classifier at a fixed cadence and reports the top
// prediction of each call. Frames are skipped while the classifier is not
// ready; errors are logged and skipped.
type Sampler struct {
	Classifier Classifier
	Frames     FrameSource
	Interval   time.Duration
	OnTop      func(Prediction)
	Logger     *slog.Logger
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	if !s.Classifier.Ready() {
		return
	}
	frame, err := s.Frames(ctx)
	if err != nil {
		s.Logger.Debug("scan: frame unavailable", slog.String("error", err.Error()))
		return
	}
	preds, err := s.Classifier.Classify(ctx, frame)
	if err != nil {
		s.Logger.Debug("scan: classify failed", slog.String("error", err.Error()))
		return
	}
	if top, ok := Top(preds); ok {
		s.OnTop(top)
	}
}
