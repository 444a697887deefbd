package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/LdDl/tcg-scanner/catalogue"
	"github.com/LdDl/tcg-scanner/config"
	"github.com/LdDl/tcg-scanner/detector"
	"github.com/LdDl/tcg-scanner/fingerprint"
	"github.com/LdDl/tcg-scanner/mot"
	"github.com/LdDl/tcg-scanner/rectify"
	"github.com/LdDl/tcg-scanner/scanner"
	"github.com/pkg/errors"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newDetector returns replay detector when replay path is set, HTTP client otherwise.
// When record path is set every response is also appended to that file.
func newDetector(ctx context.Context, cfg *config.Config, replayPath, recordPath string, logger *slog.Logger) (detector.Detector, io.Closer, error) {
	if replayPath == "" {
		replayPath = cfg.Detector.Replay
	}
	var det detector.Detector
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Can't open replay '%s'", replayPath)
		}
		defer f.Close()
		replay, err := detector.NewReplay(f)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("replaying detections", "path", replayPath, "frames", replay.Len())
		det = replay
	} else {
		client := detector.NewHTTPClient(cfg.Detector.URL, detector.Params{
			Confidence: cfg.Detector.Confidence,
			IoU:        cfg.Detector.IoU,
			Size:       cfg.Processing.FrameSize,
		}, time.Duration(cfg.Detector.TimeoutSeconds)*time.Second)
		if err := client.CheckHealth(ctx); err != nil {
			return nil, nil, errors.Wrapf(err, "Detector at '%s' is not available", cfg.Detector.URL)
		}
		det = client
	}
	if recordPath == "" {
		return det, nopCloser{}, nil
	}
	f, err := os.Create(recordPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Can't create record file '%s'", recordPath)
	}
	return detector.NewRecorder(det, f), f, nil
}

// loadMatcher reads catalogue and builds matcher configured by [matching] section
func loadMatcher(ctx context.Context, cfg *config.Config, fp *fingerprint.Fingerprinter, logger *slog.Logger) (catalogue.Matcher, error) {
	entries, err := catalogue.Load(ctx, cfg.Matching.Catalogue)
	if err != nil {
		return nil, err
	}
	c, dropped, err := catalogue.New(entries, fp.Length())
	if err != nil {
		return nil, errors.Wrapf(err, "Catalogue '%s' has no usable entries for hash size %d", cfg.Matching.Catalogue, fp.HashSize())
	}
	if dropped > 0 {
		logger.Warn("catalogue entries dropped", "dropped", dropped, "hash_length", c.HashLength())
	}
	threshold := catalogue.ResolveThreshold(cfg.Matching.Threshold, fp.HashSize())
	logger.Info("catalogue loaded", "path", cfg.Matching.Catalogue, "entries", c.Len(), "threshold", threshold, "index", cfg.Matching.Index)
	if cfg.Matching.Index == "indexed" {
		return catalogue.NewIndexedMatcher(c, threshold, cfg.Matching.Shards), nil
	}
	return catalogue.NewLinearMatcher(c, threshold), nil
}

func newManager(cfg *config.Config) *mot.Manager[catalogue.MatchResult] {
	algorithm, _ := mot.ParseAssociationAlgorithm(cfg.Tracking.Algorithm)
	manager := mot.NewManager[catalogue.MatchResult](cfg.Tracking.IoUThreshold, cfg.Tracking.MaxNoMatch, algorithm, cfg.Tracking.RetryUnidentified)
	manager.SetHungarianLimit(cfg.Tracking.HungarianLimit)
	return manager
}

func newScanner(ctx context.Context, cfg *config.Config, det detector.Detector, logger *slog.Logger) (*scanner.Scanner, error) {
	fp, err := fingerprint.New(cfg.Fingerprint.HashSize)
	if err != nil {
		return nil, err
	}
	matcher, err := loadMatcher(ctx, cfg, fp, logger)
	if err != nil {
		return nil, err
	}
	return scanner.New(
		det,
		newManager(cfg),
		rectify.New(cfg.Processing.CardWidth, cfg.Processing.CardHeight, cfg.Processing.Mirror),
		fp,
		matcher,
		scanner.WithFrameSize(cfg.Processing.FrameSize),
		scanner.WithWorkers(cfg.Processing.Workers),
		scanner.WithLogger(logger),
	), nil
}
