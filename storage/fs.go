package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lakebridge/model"
)

// FS implements Storage against the local filesystem, rooted at a fixed
// directory so callers cannot escape it with a crafted relative path.
type FS struct {
	root string
}

// NewFS creates a filesystem-backed Storage rooted at dir. The directory
// must already exist.
func NewFS(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, model.Wrap(model.ErrConfigError, "storage root does not exist", err)
	}
	if !info.IsDir() {
		return nil, model.Newf(model.ErrConfigError, "storage root %q is not a directory", dir)
	}
	return &FS{root: dir}, nil
}

// Write atomically replaces the contents at filepath: the data is staged
// to a sibling temp file and renamed into place, so a crash mid-write never
// leaves a partially-written file visible under the final name. This is
// the atomicity target writers rely on for metadata/checkpoint commits.
func (f *FS) Write(_ context.Context, path string, data io.Reader) error {
	fullPath, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return model.Wrap(model.ErrTargetWriteError, "creating parent directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return model.Wrap(model.ErrTargetWriteError, "creating temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return model.Wrap(model.ErrTargetWriteError, "writing temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return model.Wrap(model.ErrTargetWriteError, "syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return model.Wrap(model.ErrTargetWriteError, "closing temp file", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return model.Wrap(model.ErrTargetWriteError, "renaming temp file into place", err)
	}
	return nil
}

func (f *FS) Read(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Wrapf(model.ErrSourceReadError, err, "path %q not found", path)
		}
		return nil, model.Wrap(model.ErrSourceReadError, "opening file", err)
	}
	return file, nil
}

func (f *FS) List(_ context.Context, prefix string) ([]string, error) {
	searchRoot, err := f.resolve(prefix)
	if err != nil {
		return nil, err
	}
	var paths []string
	err = filepath.Walk(searchRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, model.Wrap(model.ErrSourceReadError, "listing files", err)
	}
	return paths, nil
}

// Exists reports whether filepath is present, without reading its
// contents — cheaper than Read for callers (a target writer checking
// whether a prior checkpoint file exists) that only need a presence check.
func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, model.Wrap(model.ErrSourceReadError, "checking path", err)
}

// Delete removes filepath. It is not used by any sync-path code (lakebridge
// never deletes a source's data files); it exists for completeness of the
// storage abstraction and for test fixture cleanup.
func (f *FS) Delete(_ context.Context, path string) error {
	fullPath, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return model.Wrap(model.ErrTargetWriteError, "deleting file", err)
	}
	return nil
}

// resolve cleans path and rejects anything that would escape f.root.
func (f *FS) resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", model.Newf(model.ErrConfigError, "path %q escapes storage root", path)
	}
	return filepath.Join(f.root, cleaned), nil
}
