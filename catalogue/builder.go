package catalogue

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// BuildStats summarizes catalogue build
type BuildStats struct {
	Total   int
	Hashed  int
	Skipped int
}

// Builder computes reference fingerprints from card images.
// Reference images are resized to canonical card size and hashed upright.
type Builder struct {
	fingerprinter *fingerprint.Fingerprinter
	width         int
	height        int
	workers       int
	logger        *slog.Logger
}

// NewBuilder creates Builder. Non-positive workers means one worker
func NewBuilder(fp *fingerprint.Fingerprinter, width, height, workers int, logger *slog.Logger) *Builder {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		fingerprinter: fp,
		width:         width,
		height:        height,
		workers:       workers,
		logger:        logger,
	}
}

// Build fingerprints every manifest row. Relative image paths are resolved against imageDir.
// Rows whose image is missing or can not be decoded are skipped (their entries are left without fingerprint).
// Returned entries keep manifest order.
func (b *Builder) Build(ctx context.Context, rows []ManifestRow, imageDir string) ([]Entry, BuildStats, error) {
	entries := make([]Entry, len(rows))
	var skipped atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i := range rows {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			row := rows[i]
			entries[i] = row.Entry
			entries[i].Hash = ""
			if row.Image == "" {
				skipped.Add(1)
				b.logger.Warn("reference image not set", "entry_id", row.ID)
				return nil
			}
			path := row.Image
			if !filepath.IsAbs(path) && imageDir != "" {
				path = filepath.Join(imageDir, path)
			}
			img, err := imaging.Open(path)
			if err != nil {
				skipped.Add(1)
				b.logger.Warn("reference image unreadable", "entry_id", row.ID, "path", path, "error", err)
				return nil
			}
			card := imaging.Resize(img, b.width, b.height, imaging.Linear)
			hash, err := b.fingerprinter.Hash(card)
			if err != nil {
				return errors.Wrapf(err, "Can't fingerprint entry %s", row.ID)
			}
			entries[i].Hash = hash
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, BuildStats{}, err
	}
	stats := BuildStats{
		Total:   len(rows),
		Skipped: int(skipped.Load()),
	}
	stats.Hashed = stats.Total - stats.Skipped
	b.logger.Info("catalogue build finished", "total", stats.Total, "hashed", stats.Hashed, "skipped", stats.Skipped)
	return entries, stats, nil
}
