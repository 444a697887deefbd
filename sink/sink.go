// Package sink publishes frame results produced by scanner sessions.
package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/LdDl/tcg-scanner/scanner"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONLines writes one JSON document per frame
type JSONLines struct {
	mu     sync.Mutex
	enc    *jsoniter.Encoder
	closer io.Closer
}

// NewJSONLines writes to w. Writer is not closed by Close
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{
		enc: json.NewEncoder(w),
	}
}

// OpenJSONLines appends to file at path. "-" means stdout
func OpenJSONLines(path string) (*JSONLines, error) {
	if path == "-" {
		return NewJSONLines(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", path)
	}
	sink := NewJSONLines(f)
	sink.closer = f
	return sink, nil
}

// Publish implements scanner.Sink
func (s *JSONLines) Publish(ctx context.Context, result *scanner.FrameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.enc.Encode(result), "Can't encode frame result")
}

// Close implements scanner.Sink
func (s *JSONLines) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Multi fans result out to every sink. Publishing stops at the first error
type Multi []scanner.Sink

// Publish implements scanner.Sink
func (m Multi) Publish(ctx context.Context, result *scanner.FrameResult) error {
	for _, s := range m {
		if err := s.Publish(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the first error
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
