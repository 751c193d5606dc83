package locking

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	minStaleAfter      = 10 * time.Minute
	staleAfterMargin   = 60 * time.Second
	infiniteStaleAfter = time.Hour
)

// HygieneConfig describes one sweep.
type HygieneConfig struct {
	// LockRoot holds lock files and fallback markers.
	LockRoot string
	// StagingRoot holds per-attempt staging directories. Optional.
	StagingRoot string
	// StaleAfter is the minimum age before an artifact is removed.
	StaleAfter time.Duration
}

// Report summarizes a sweep.
type Report struct {
	RemovedMarkers int
	RemovedStaging int
	Errors         int
	Duration       time.Duration
}

// DefaultStaleAfter is max(timeout + 60s, 10m). Infinite waits use one hour.
func DefaultStaleAfter(timeout Timeout) time.Duration {
	if timeout.IsInfinite() {
		return infiniteStaleAfter
	}
	return max(timeout.Duration()+staleAfterMargin, minStaleAfter)
}

// Sweep removes fallback markers and staging directories older than the threshold.
// Lock files are left alone: they belong to the advisory backend and may be held. Failures are
// logged and counted; the sweep never fails.
func Sweep(ctx context.Context, cfg HygieneConfig) Report {
	defer perf.Track(nil, "locking.Sweep")()

	start := time.Now()
	report := Report{}
	threshold := cfg.StaleAfter
	if threshold <= 0 {
		threshold = DefaultStaleAfter(Finite(DefaultTimeout))
	}

	if cfg.LockRoot != "" {
		sweepMarkers(ctx, cfg.LockRoot, start, threshold, &report)
	}
	if cfg.StagingRoot != "" {
		sweepStaging(ctx, cfg.StagingRoot, start, threshold, &report)
	}

	report.Duration = time.Since(start)
	log.Debug("Lock hygiene sweep finished",
		"markers", report.RemovedMarkers,
		"staging", report.RemovedStaging,
		"errors", report.Errors,
		"duration", report.Duration.Round(time.Millisecond))
	return report
}

func sweepMarkers(ctx context.Context, root string, now time.Time, threshold time.Duration, report *Report) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn("Failed to read lock directory entry", "path", path, "error", err)
				report.Errors++
			}
			return nil
		}
		if d.IsDir() || !isMarker(path) {
			return nil
		}
		if !olderThan(d, now, threshold) {
			return nil
		}

		log.Warn("Removing stale fallback lock", "path", path)
		if removed, err := removeFile(path); err != nil {
			log.Warn("Failed to remove fallback marker", "path", path, "error", err)
			report.Errors++
		} else if removed {
			report.RemovedMarkers++
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		report.Errors++
	}
}

func sweepStaging(ctx context.Context, root string, now time.Time, threshold time.Duration, report *Report) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to read staging directory", "path", root, "error", err)
			report.Errors++
		}
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if !olderThan(entry, now, threshold) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		log.Warn("Removing stale staging directory", "path", path)
		if err := os.RemoveAll(path); err != nil {
			log.Warn("Failed to remove staging directory", "path", path, "error", err)
			report.Errors++
			continue
		}
		report.RemovedStaging++
	}
}

func olderThan(entry fs.DirEntry, now time.Time, threshold time.Duration) bool {
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) >= threshold
}

func removeFile(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
