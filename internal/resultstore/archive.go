package resultstore

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveRun writes the whole run directory as a zstd-compressed tar
// stream. Archives are the exchange format for sharing result sets
// between machines.
func (s *Store) ArchiveRun(runID string, w io.Writer) error {
	if err := checkID("run", runID); err != nil {
		return err
	}
	dir := s.runDir(runID)
	if _, err := os.Stat(s.manifestPath(runID)); err != nil {
		return &PersistenceError{Op: "archive", Path: dir, Err: ErrNotFound}
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return &PersistenceError{Op: "archive", Path: dir, Err: err}
	}
	tw := tar.NewWriter(zw)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		// Entries are rooted at the run ID so extraction recreates the
		// store layout.
		header.Name = filepath.ToSlash(filepath.Join(runID, rel))
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close() //nolint:errcheck
		zw.Close() //nolint:errcheck
		return &PersistenceError{Op: "archive", Path: dir, Err: err}
	}

	if err := tw.Close(); err != nil {
		zw.Close() //nolint:errcheck
		return &PersistenceError{Op: "archive", Path: dir, Err: err}
	}
	if err := zw.Close(); err != nil {
		return &PersistenceError{Op: "archive", Path: dir, Err: err}
	}
	return nil
}

// RestoreRun extracts an archived run into the store. It refuses to
// overwrite an existing run and rejects entries that would escape the
// store root.
func (s *Store) RestoreRun(r io.Reader) (string, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return "", &PersistenceError{Op: "restore", Path: s.root, Err: err}
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	runID := ""

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &PersistenceError{Op: "restore", Path: s.root, Err: err}
		}

		name := filepath.FromSlash(header.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return "", &PersistenceError{Op: "restore", Path: header.Name, Err: fmt.Errorf("unsafe archive entry")}
		}

		top := strings.SplitN(filepath.ToSlash(name), "/", 2)[0]
		if runID == "" {
			runID = top
			if err := checkID("run", runID); err != nil {
				return "", err
			}
			if _, err := os.Stat(s.runDir(runID)); err == nil {
				return "", &PersistenceError{Op: "restore", Path: s.runDir(runID), Err: fmt.Errorf("run %s already exists", runID)}
			}
		} else if top != runID {
			return "", &PersistenceError{Op: "restore", Path: header.Name, Err: fmt.Errorf("archive spans multiple runs")}
		}

		target := filepath.Join(s.root, name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", &PersistenceError{Op: "restore", Path: target, Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", &PersistenceError{Op: "restore", Path: target, Err: err}
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return "", &PersistenceError{Op: "restore", Path: target, Err: err}
			}
			if _, err := io.Copy(f, tr); err != nil { //nolint:gosec
				f.Close() //nolint:errcheck
				return "", &PersistenceError{Op: "restore", Path: target, Err: err}
			}
			if err := f.Close(); err != nil {
				return "", &PersistenceError{Op: "restore", Path: target, Err: err}
			}
		}
	}

	if runID == "" {
		return "", &PersistenceError{Op: "restore", Path: s.root, Err: fmt.Errorf("empty archive")}
	}
	return runID, nil
}
