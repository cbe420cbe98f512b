// Package fsdir adapts filesystem directories to the poller.
//
// Directories are listed through an afero.Fs, so the same adapter serves the
// operating system filesystem and in-memory filesystems.
package fsdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// Directory is a directory listed with afero.ReadDir.
// The directory does not need to exist yet; listing a missing directory is
// reported as an I/O error until it appears.
type Directory struct {
	fs   afero.Fs
	path string
}

// New returns the local directory at path, made absolute.
func New(path string) (*Directory, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath, "directory path must not be empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve %s", path), err)
	}
	return &Directory{fs: afero.NewOsFs(), path: filepath.Clean(abs)}, nil
}

// NewFs returns the directory at path on fsys. The path is used as given.
func NewFs(fsys afero.Fs, path string) (*Directory, error) {
	if fsys == nil {
		return nil, apperrors.ValidationError("filesystem must not be nil", nil)
	}
	if path == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath, "directory path must not be empty", nil)
	}
	return &Directory{fs: fsys, path: filepath.Clean(path)}, nil
}

// Resolver turns persisted keys back into local directories.
func Resolver(key string) (poller.Directory, error) {
	return New(key)
}

// Key returns the directory path.
func (d *Directory) Key() string { return d.path }

// Path returns the directory path.
func (d *Directory) Path() string { return d.path }

func (d *Directory) String() string { return d.path }

// List implements poller.Directory. Entries are returned in name order.
func (d *Directory) List(ctx context.Context) ([]poller.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("cannot list %s", d.path), err).
			WithDetail("directory", d.path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]poller.Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, &Entry{dir: d, name: info.Name(), isDir: info.IsDir()})
	}
	return entries, nil
}

// Entry is one child of a Directory. Its modification time is read lazily.
type Entry struct {
	dir   *Directory
	name  string
	isDir bool
}

// Name returns the base name of the entry.
func (e *Entry) Name() string { return e.name }

// IsDir reports whether the entry is a directory. Symlinks are not followed.
func (e *Entry) IsDir() bool { return e.isDir }

// Path returns the full path of the entry.
func (e *Entry) Path() string { return filepath.Join(e.dir.path, e.name) }

// ModTime returns the modification time in Unix milliseconds. An entry that
// vanished since the listing yields an I/O error.
func (e *Entry) ModTime() (int64, error) {
	info, err := lstat(e.dir.fs, e.Path())
	if err != nil {
		return 0, apperrors.IOError(fmt.Sprintf("cannot stat %s", e.Path()), err).
			WithDetail("directory", e.dir.path)
	}
	return info.ModTime().UnixMilli(), nil
}

func lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}
