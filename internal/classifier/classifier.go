package classifier

import (
	"context"
	"errors"

	"scancart/internal/detection"
)

// ErrExhausted reports that a finite frame source has no more frames.
var ErrExhausted = errors.New("classifier: no more frames")

// Classifier returns the full ranked prediction list for the current camera
// frame. Implementations are called from a single loop and never concurrently.
type Classifier interface {
	Classify(ctx context.Context) ([]detection.Prediction, error)
}

// Initializer is implemented by classifiers that need a one-time warm-up
// (model load, camera open) before the first Classify call.
type Initializer interface {
	Init(ctx context.Context) error
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context) ([]detection.Prediction, error)

func (f Func) Classify(ctx context.Context) ([]detection.Prediction, error) {
	return f(ctx)
}
