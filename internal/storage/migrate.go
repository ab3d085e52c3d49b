// ABOUTME: Data migration between feedsync cache backends
// ABOUTME: Copies the full record set from source to destination store in one replace

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated records.
type MigrateSummary struct {
	Records int
}

// MigrateData copies every record from src into dst. The destination's
// previous contents are replaced, matching the cache's full-replace model.
func MigrateData(ctx context.Context, src, dst LocalStore) (*MigrateSummary, error) {
	records, err := src.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source records: %w", err)
	}

	if err := dst.ReplaceAll(ctx, records); err != nil {
		return nil, fmt.Errorf("write destination records: %w", err)
	}

	return &MigrateSummary{Records: len(records)}, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
