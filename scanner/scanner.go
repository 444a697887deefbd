// Package scanner glues detector, track manager, rectifier, fingerprinter and matcher into per-frame pipeline.
package scanner

import (
	"context"
	"image"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/LdDl/tcg-scanner/catalogue"
	"github.com/LdDl/tcg-scanner/detector"
	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/LdDl/tcg-scanner/mot"
	"github.com/LdDl/tcg-scanner/rectify"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Table is the track table carried between frames
type Table = mot.Table[catalogue.MatchResult]

// Scanner processes frames. It is stateless between calls: track table is passed in and returned back
type Scanner struct {
	detector      detector.Detector
	manager       *mot.Manager[catalogue.MatchResult]
	rectifier     *rectify.Rectifier
	fingerprinter *fingerprint.Fingerprinter
	matcher       catalogue.Matcher
	frameSize     int
	workers       int
	logger        *slog.Logger
}

// Option configures Scanner
type Option func(*Scanner)

// WithFrameSize sets side of the square frame detector works on. Zero keeps frames as is
func WithFrameSize(size int) Option {
	return func(s *Scanner) {
		s.frameSize = size
	}
}

// WithWorkers limits number of detections identified concurrently
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates Scanner
func New(det detector.Detector, manager *mot.Manager[catalogue.MatchResult], rectifier *rectify.Rectifier, fp *fingerprint.Fingerprinter, matcher catalogue.Matcher, opts ...Option) *Scanner {
	s := &Scanner{
		detector:      det,
		manager:       manager,
		rectifier:     rectifier,
		fingerprinter: fp,
		matcher:       matcher,
		workers:       runtime.NumCPU(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// identification is outcome of rectify + fingerprint + match for one observation
type identification struct {
	trackID    int64
	match      catalogue.MatchResult
	recognized bool
}

// ProcessFrame runs one frame through the pipeline.
// Previous table is consumed. Only detections which started a new track (or unidentified tracks when retry is enabled)
// are rectified and fingerprinted.
// On error the returned table is still the one to continue from: prev when detection or association fails,
// the stepped table (new tracks stay unidentified) when identification fails.
func (s *Scanner) ProcessFrame(ctx context.Context, img image.Image, prev *Table) (*Table, *FrameResult, error) {
	frame := s.prepare(img)

	dets, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return prev, nil, errors.Wrap(err, "Can't detect cards")
	}

	observations := make([]mot.Observation, len(dets))
	for i, det := range dets {
		observations[i] = mot.Observation{BBox: det.BBox, Polygon: det.Polygon}
	}
	table, assignments, err := s.manager.Step(prev, observations)
	if err != nil {
		return prev, nil, errors.Wrap(err, "Can't associate detections")
	}

	result := &FrameResult{
		Timestamp:  time.Now(),
		Detections: len(dets),
	}
	pending := make([]mot.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Status == mot.AssignmentNew {
			result.NewTracks = append(result.NewTracks, a.TrackID)
		}
		if a.Status.NeedsIdentification() {
			pending = append(pending, a)
		}
	}

	outcomes, err := s.identifyAll(ctx, frame, dets, pending)
	if err != nil {
		return table, nil, err
	}
	// Tracks are mutated by this goroutine only
	for _, outcome := range outcomes {
		if !outcome.recognized {
			result.Unrecognized++
			continue
		}
		if !outcome.match.Found {
			continue
		}
		trk, ok := table.Get(outcome.trackID)
		if !ok {
			continue
		}
		trk.SetMatch(outcome.match)
		result.Identified = append(result.Identified, outcome.trackID)
	}

	snaps := table.Snapshot()
	result.Tracks = make([]TrackResult, len(snaps))
	for i, snap := range snaps {
		result.Tracks[i] = newTrackResult(snap)
	}
	return table, result, nil
}

// ScanImage processes single still image with empty track table
func (s *Scanner) ScanImage(ctx context.Context, img image.Image) (*FrameResult, error) {
	_, result, err := s.ProcessFrame(ctx, img, nil)
	return result, err
}

// prepare resizes frame to detector size and moves its origin to (0, 0)
func (s *Scanner) prepare(img image.Image) image.Image {
	b := img.Bounds()
	if s.frameSize > 0 && (b.Dx() != s.frameSize || b.Dy() != s.frameSize) {
		return imaging.Resize(img, s.frameSize, s.frameSize, imaging.Linear)
	}
	if b.Min != (image.Point{}) {
		return imaging.Clone(img)
	}
	return img
}

func (s *Scanner) identifyAll(ctx context.Context, frame image.Image, dets []detector.Detection, pending []mot.Assignment) ([]identification, error) {
	outcomes := make([]identification, len(pending))
	if len(pending) == 0 {
		return outcomes, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, a := range pending {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := s.identify(frame, dets[a.Observation])
			if err != nil {
				return errors.Wrapf(err, "Can't identify track %d", a.TrackID)
			}
			outcome.trackID = a.TrackID
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Scanner) identify(frame image.Image, det detector.Detection) (identification, error) {
	mask := det.Mask
	if mask == nil {
		b := frame.Bounds()
		mask = rectify.MaskFromPolygon(det.Polygon, b.Dx(), b.Dy())
	}
	card, ok := s.rectifier.Rectify(frame, mask)
	if !ok {
		s.logger.Debug("silhouette is not a quadrilateral", "confidence", det.Confidence)
		return identification{}, nil
	}
	fp, err := s.fingerprinter.Compute(card)
	if err != nil {
		return identification{}, errors.Wrap(err, "Can't compute fingerprint")
	}
	return identification{
		match:      catalogue.MatchBoth(s.matcher, fp),
		recognized: true,
	}, nil
}
