package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// FindPDFs walks root and returns the PDF paths it contains, sorted. Without
// recursive only the top level is listed. Unreadable entries are counted in
// stats and skipped.
func FindPDFs(ctx context.Context, root string, recursive, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || (skipHidden && IsHidden(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if skipHidden && IsHidden(path) {
			return nil
		}
		if !allowedPath(path) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}
	slices.Sort(paths)
	return paths, stats, nil
}
