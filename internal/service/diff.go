package service

import (
	"fmt"

	"github.com/prn-tf/packvault/internal/archive"
	"github.com/prn-tf/packvault/internal/domain"
)

// FileRef is a path-keyed view of one file used by the diff engine.
type FileRef struct {
	Digest string
	Size   int64
}

// DiffResult holds the three change counters for one upload.
type DiffResult struct {
	Added    int
	Removed  int
	Modified int
}

// Diff compares the current entry set against the previous one:
// added are paths only in current, removed are paths only in previous,
// modified are shared paths whose digests differ. A shared path with an
// identical digest but a different size can only mean a broken hasher and
// is surfaced as domain.ErrDigestCollision rather than ignored.
func Diff(previous, current map[string]FileRef) (DiffResult, error) {
	var result DiffResult

	for path, cur := range current {
		prev, ok := previous[path]
		if !ok {
			result.Added++
			continue
		}
		if prev.Digest != cur.Digest {
			result.Modified++
			continue
		}
		if prev.Size != cur.Size {
			return DiffResult{}, fmt.Errorf("%w: %s", domain.ErrDigestCollision, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			result.Removed++
		}
	}
	return result, nil
}

// entryRefs converts a decomposition to the diff engine's view.
func entryRefs(entries []archive.Entry) map[string]FileRef {
	refs := make(map[string]FileRef, len(entries))
	for _, e := range entries {
		refs[e.Path] = FileRef{Digest: e.Digest, Size: e.Size}
	}
	return refs
}

// recordRefs converts stored per-entry records to the diff engine's view.
func recordRefs(records []*domain.IndividualFile) map[string]FileRef {
	refs := make(map[string]FileRef, len(records))
	for _, r := range records {
		refs[r.Path] = FileRef{Digest: r.Digest, Size: r.Size}
	}
	return refs
}
