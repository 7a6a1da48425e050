package fs

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.trai.ch/pour/internal/core/domain"
	"go.trai.ch/pour/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Extractor = (*Extractor)(nil)

const dirPerm = 0o750

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bzip2Magic = []byte("BZh")
	zipMagic   = []byte("PK\x03\x04")
)

// Extractor unpacks tarballs (plain, gzip, bzip2, zstd) and zip archives.
// The format is detected from the leading bytes, not the file name.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks archive into dest. When the archive holds a single top-level
// directory, as GitHub release tarballs do, that directory is the source root.
func (e *Extractor) Extract(archive, dest string) (string, error) {
	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrExtractFailed, err.Error()), "path", dest)
	}

	f, err := os.Open(archive) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFileOpenFailed, err.Error()), "path", archive)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	br := bufio.NewReader(f)
	head, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(head, zipMagic):
		err = e.extractZip(archive, dest)
	case bytes.HasPrefix(head, gzipMagic):
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(br); err == nil {
			err = e.extractTar(zr, dest)
			_ = zr.Close()
		}
	case bytes.HasPrefix(head, zstdMagic):
		var zr *zstd.Decoder
		if zr, err = zstd.NewReader(br); err == nil {
			err = e.extractTar(zr, dest)
			zr.Close()
		}
	case bytes.HasPrefix(head, bzip2Magic):
		err = e.extractTar(bzip2.NewReader(br), dest)
	default:
		err = e.extractTar(br, dest)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUnsafeArchivePath) {
			return "", zerr.With(err, "archive", archive)
		}
		return "", zerr.With(zerr.Wrap(domain.ErrExtractFailed, err.Error()), "archive", archive)
	}

	return sourceRoot(dest)
}

func (e *Extractor) extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := prepareTarget(dest, target, hdr.Name, hdr.Typeflag == tar.TypeDir); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !within(dest, filepath.Join(filepath.Dir(target), hdr.Linkname)) {
				return zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "symlink escapes destination"), "entry", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := noSymlinks(dest, source, hdr.Linkname); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return err
			}
		default:
			// Device nodes and fifos are skipped.
		}
	}
}

func (e *Extractor) extractZip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close() //nolint:errcheck // Best effort close in defer

	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		if err := prepareTarget(dest, target, zf.Name, zf.FileInfo().IsDir()); err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return err
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, zf.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin joins name onto dest and rejects results outside dest.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !within(dest, target) {
		return "", zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "refusing to extract"), "entry", name)
	}
	return target, nil
}

// prepareTarget refuses targets whose parent directories pass through a
// symlink. An existing non-directory at target is removed so the new entry
// replaces it instead of writing through it.
func prepareTarget(dest, target, name string, dir bool) error {
	if target == dest {
		return nil
	}
	if err := noSymlinks(dest, filepath.Dir(target), name); err != nil {
		return err
	}

	info, err := os.Lstat(target)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case info.Mode()&os.ModeSymlink != 0 && dir:
		return zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "directory entry is a symlink"), "entry", name)
	case info.IsDir():
		return nil
	default:
		return os.Remove(target)
	}
}

// noSymlinks walks path below dest and fails on the first existing
// component that is a symlink.
func noSymlinks(dest, path, name string) error {
	rel, err := filepath.Rel(dest, path)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}

	cur := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "path crosses a symlink"), "entry", name)
		}
	}
	return nil
}

func within(dest, path string) bool {
	rel, err := filepath.Rel(dest, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // target is checked by safeJoin
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // archives come from checksummed sources
		_ = out.Close()
		return err
	}
	return out.Close()
}

// sourceRoot returns the only top-level directory of dest, or dest itself.
func sourceRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrExtractFailed, err.Error()), "path", dest)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}
