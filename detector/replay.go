package detector

import (
	"bufio"
	"context"
	"image"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// ErrReplayExhausted is returned when replay has no more recorded frames
var ErrReplayExhausted = errors.New("replay has no more frames")

// Replay returns previously recorded detections, one recorded frame per Detect call.
// Recording is JSON lines: {"frame": "...", "detections": [{"box": [cx, cy, w, h], "polygon": [[x, y], ...], "confidence": 0.9}]}
type Replay struct {
	mu     sync.Mutex
	frames [][]Detection
	next   int
}

// NewReplay reads the whole recording
func NewReplay(r io.Reader) (*Replay, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	frames := make([][]Detection, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec wireResponse
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Wrapf(err, "Can't decode replay line %d", line)
		}
		frames = append(frames, fromWire(rec.Detections))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't read replay")
	}
	return &Replay{frames: frames}, nil
}

// Len returns number of recorded frames
func (r *Replay) Len() int {
	return len(r.frames)
}

// Detect implements Detector
func (r *Replay) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.frames) {
		return nil, ErrReplayExhausted
	}
	dets := r.frames[r.next]
	r.next++
	return dets, nil
}

// WriteRecord appends one frame of detections to a replay recording
func WriteRecord(w io.Writer, frame string, dets []Detection) error {
	data, err := json.Marshal(wireResponse{Frame: frame, Detections: toWire(dets)})
	if err != nil {
		return errors.Wrap(err, "Can't encode replay record")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "Can't write replay record")
	}
	return nil
}

// Recorder wraps detector and records every frame of detections
type Recorder struct {
	Detector Detector
	mu       sync.Mutex
	w        io.Writer
	seq      int
}

// NewRecorder creates Recorder writing JSON lines into w
func NewRecorder(d Detector, w io.Writer) *Recorder {
	return &Recorder{Detector: d, w: w}
}

// Detect implements Detector
func (r *Recorder) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	dets, err := r.Detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if err := WriteRecord(r.w, strconv.Itoa(r.seq), dets); err != nil {
		return nil, err
	}
	return dets, nil
}
