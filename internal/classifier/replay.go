package classifier

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"scancart/internal/detection"
)

// Frame is one line of a JSONL recording.
type Frame struct {
	AtMS        int64                  `json:"at_ms"`
	Predictions []detection.Prediction `json:"predictions"`
}

// Replay serves recorded frames in order. When a mock clock is attached, it is
// moved to start+at_ms before each frame is returned so time-based logic sees
// the recorded timing instead of wall time.
type Replay struct {
	frames []Frame
	next   int
	clock  *clock.Mock
	start  time.Time
}

// NewReplay builds a replay from frames already in memory.
func NewReplay(frames []Frame, mock *clock.Mock) *Replay {
	r := &Replay{frames: frames, clock: mock}
	if mock != nil {
		r.start = mock.Now()
	}
	return r
}

// ReadReplay parses a JSONL recording. Blank lines and lines starting with #
// are skipped.
func ReadReplay(reader io.Reader, mock *clock.Mock) (*Replay, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var frames []Frame
	lineNo := 0
	var lastAt int64
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var frame Frame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", lineNo, err)
		}
		if frame.AtMS < lastAt {
			return nil, fmt.Errorf("replay line %d: at_ms %d goes backwards (previous %d)", lineNo, frame.AtMS, lastAt)
		}
		lastAt = frame.AtMS
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return NewReplay(frames, mock), nil
}

// OpenReplay reads a JSONL recording from path.
func OpenReplay(path string, mock *clock.Mock) (*Replay, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer file.Close()
	return ReadReplay(file, mock)
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int {
	return len(r.frames)
}

// Classify returns the next recorded frame, or ErrExhausted.
func (r *Replay) Classify(ctx context.Context) ([]detection.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= len(r.frames) {
		return nil, ErrExhausted
	}
	frame := r.frames[r.next]
	r.next++
	if r.clock != nil {
		target := r.start.Add(time.Duration(frame.AtMS) * time.Millisecond)
		if delta := target.Sub(r.clock.Now()); delta > 0 {
			r.clock.Add(delta)
		}
	}
	return frame.Predictions, nil
}
