// Package source provides frames for the scanning session.
package source

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrExhausted is the terminal signal: the source has no more frames
var ErrExhausted = errors.New("source exhausted")

// Frame is one captured image
type Frame struct {
	Image     image.Image
	Seq       uint64
	Timestamp time.Time
	Name      string
}

// Source yields frames one by one. Any error is terminal for the session
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Image is a single still image source
type Image struct {
	img  image.Image
	name string
	done bool
}

// NewImage creates source from decoded image
func NewImage(img image.Image, name string) *Image {
	return &Image{img: img, name: name}
}

// OpenImage decodes image file
func OpenImage(path string) (*Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open image %s", path)
	}
	return NewImage(img, filepath.Base(path)), nil
}

// Next implements Source
func (s *Image) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, ErrExhausted
	}
	s.done = true
	return &Frame{Image: s.img, Seq: 1, Timestamp: time.Now(), Name: s.name}, nil
}

// Close implements Source
func (s *Image) Close() error {
	return nil
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".gif":  {},
	".tif":  {},
	".tiff": {},
}

// Directory yields image files of a directory in lexical order, optionally paced to fixed frame rate
type Directory struct {
	files   []string
	next    int
	seq     uint64
	limiter *rate.Limiter
}

// NewDirectory lists image files of dir. Non-positive fps means no pacing
func NewDirectory(dir string, fps float64) (*Directory, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read frames directory %s", dir)
	}
	files := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(item.Name()))]; !ok {
			continue
		}
		files = append(files, filepath.Join(dir, item.Name()))
	}
	sort.Strings(files)
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}
	return &Directory{
		files:   files,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Len returns number of frames in directory
func (s *Directory) Len() int {
	return len(s.files)
}

// Next implements Source. Undecodable file is a terminal failure
func (s *Directory) Next(ctx context.Context) (*Frame, error) {
	if s.next >= len(s.files) {
		return nil, ErrExhausted
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	path := s.files[s.next]
	s.next++
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode frame %s", path)
	}
	s.seq++
	return &Frame{Image: img, Seq: s.seq, Timestamp: time.Now(), Name: filepath.Base(path)}, nil
}

// Close implements Source
func (s *Directory) Close() error {
	return nil
}
