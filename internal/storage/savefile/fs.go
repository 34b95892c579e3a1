package savefile

import (
	"io"
	"io/fs"
	"os"
)

// File is the subset of *os.File used by the writer.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	Name() string
	Stat() (fs.FileInfo, error)
	Chmod(mode fs.FileMode) error
	Sync() error
	Close() error
}

// FileSystem is the filesystem seam used by Writer.
type FileSystem interface {
	CreateTemp(dir, pattern string) (File, error)
	Open(name string) (File, error)
	Stat(name string) (fs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	// SyncDir flushes directory metadata so a rename survives a crash.
	SyncDir(dir string) error
}

// OSFileSystem delegates to package os.
type OSFileSystem struct{}

func (OSFileSystem) CreateTemp(dir, pattern string) (File, error) {
	return os.CreateTemp(dir, pattern)
}

func (OSFileSystem) Open(name string) (File, error) {
	return os.Open(name)
}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (OSFileSystem) SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
