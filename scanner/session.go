package scanner

import (
	"context"
	"log/slog"

	"github.com/LdDl/tcg-scanner/source"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Sink receives every frame result of a session
type Sink interface {
	Publish(ctx context.Context, result *FrameResult) error
	Close() error
}

// Stats summarizes a finished session
type Stats struct {
	Frames     int
	Tracks     int64
	Identified int
}

// Session processes continuous stream of frames and owns the track table between them
type Session struct {
	id      string
	scanner *Scanner
	table   *Table
	stats   Stats
	logger  *slog.Logger
}

// NewSession starts a session with empty track table
func NewSession(s *Scanner) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		scanner: s,
		logger:  s.logger.With("session_id", id),
	}
}

// ID returns session identifier
func (sess *Session) ID() string {
	return sess.id
}

// Stats returns counters accumulated so far
func (sess *Session) Stats() Stats {
	stats := sess.stats
	stats.Tracks = sess.table.NextID() - 1
	return stats
}

// Table returns current track table. It must not be modified by the caller
func (sess *Session) Table() *Table {
	return sess.table
}

// Step processes one frame. A failed frame keeps the table returned by the scanner, so the session may go on
func (sess *Session) Step(ctx context.Context, frame *source.Frame) (*FrameResult, error) {
	table, result, err := sess.scanner.ProcessFrame(ctx, frame.Image, sess.table)
	sess.table = table
	if err != nil {
		return nil, errors.Wrapf(err, "Can't process frame %d", frame.Seq)
	}
	sess.stats.Frames++
	sess.stats.Identified += len(result.Identified)

	result.SessionID = sess.id
	result.Seq = frame.Seq
	result.Frame = frame.Name
	if !frame.Timestamp.IsZero() {
		result.Timestamp = frame.Timestamp
	}
	for _, id := range result.Identified {
		trk, ok := result.Track(id)
		if !ok || trk.Match == nil {
			continue
		}
		sess.logger.Info("card identified",
			"track_id", id,
			"card_id", trk.Match.ID,
			"card", trk.Match.Description,
			"distance", trk.Match.Distance,
			"rotated", trk.Match.Rotated,
		)
	}
	return result, nil
}

// Run reads frames until the source is exhausted and publishes every result.
// Exhausted source ends the session cleanly. Cancellation is checked between frames.
func (sess *Session) Run(ctx context.Context, src source.Source, sink Sink) error {
	sess.logger.Info("session started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrExhausted) {
				stats := sess.Stats()
				sess.logger.Info("session finished", "frames", stats.Frames, "tracks", stats.Tracks, "identified", stats.Identified)
				return nil
			}
			return errors.Wrap(err, "Can't read frame")
		}
		result, err := sess.Step(ctx, frame)
		if err != nil {
			return err
		}
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, result); err != nil {
			return errors.Wrapf(err, "Can't publish frame %d", frame.Seq)
		}
	}
}
