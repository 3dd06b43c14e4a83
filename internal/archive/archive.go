// Package archive provides content hashing and zip decomposition for
// category archives.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"

	"github.com/prn-tf/packvault/internal/domain"
)

// Entry describes one non-directory file inside an archive.
type Entry struct {
	// Path is the entry's relative path exactly as stored in the archive.
	Path string

	// Digest is the SHA-256 hash of the entry's uncompressed bytes.
	Digest string

	// Size is the uncompressed size in bytes.
	Size int64
}

// File is an entry together with its content, used when building archives.
type File struct {
	Path string
	Data []byte
}

// registerFlate swaps the stdlib deflate codec for the klauspost
// implementation on a zip reader.
func registerFlate(zr *zip.Reader) {
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// newReader opens a zip reader over buf with the fast deflate codec.
func newReader(buf []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedArchive, err)
	}
	registerFlate(zr)
	return zr, nil
}

// Decompose unpacks a compressed archive buffer into an ordered list of
// {path, digest, size} entries, one per non-directory entry. Paths are
// preserved exactly as stored; a malformed archive yields
// domain.ErrMalformedArchive and no partial result.
func Decompose(buf []byte) ([]Entry, error) {
	zr, err := newReader(buf)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrMalformedArchive, f.Name, err)
		}
		digest, size, err := DigestReader(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrMalformedArchive, f.Name, err)
		}
		entries = append(entries, Entry{Path: f.Name, Digest: digest, Size: size})
	}
	return entries, nil
}

// Contents unpacks every non-directory entry of an archive buffer into
// memory. Used when the per-entry blobs are written at upload time.
func Contents(buf []byte) ([]File, error) {
	zr, err := newReader(buf)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrMalformedArchive, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrMalformedArchive, f.Name, err)
		}
		files = append(files, File{Path: f.Name, Data: data})
	}
	return files, nil
}

// Extract returns the uncompressed bytes of a single path from an archive
// buffer. Returns domain.ErrBlobNotFound if the path is not present.
func Extract(buf []byte, path string) ([]byte, error) {
	zr, err := newReader(buf)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != path || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrMalformedArchive, path, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrMalformedArchive, path, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, path)
}

// Build assembles files into a new zip archive. Entries are written in
// sorted path order so that the same file set always produces the same
// layout.
func Build(files []File) ([]byte, error) {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	for _, f := range sorted {
		w, err := zw.Create(f.Path)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return out.Bytes(), nil
}
