// Package loader reads configuration sources into nested maps and
// locates application files.
//
// Configuration files are TOML or YAML; environment variables are read
// with a prefix. Every read goes through FileSystem, which the OS and
// testing/fstest.MapFS both satisfy, relative to the application root.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the read-only view of the application tree.
type FileSystem interface {
	fs.FS
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS reads the operating system file system; relative paths resolve
// against the working directory.
type OSFS struct{}

func (OSFS) Open(name string) (fs.File, error)     { return os.Open(name) }
func (OSFS) ReadFile(path string) ([]byte, error)  { return os.ReadFile(path) }
func (OSFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

// IsFile reports whether path exists and is a regular file.
func IsFile(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(filepath.Clean(path))
	return err == nil && info.IsDir()
}

// Find returns the first dir/name that exists as a regular file.
func Find(fsys FileSystem, name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if IsFile(fsys, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// ReadFile reads path after cleaning it, so "./app/x" works with fs.FS
// implementations that reject dot prefixes.
func ReadFile(fsys FileSystem, path string) ([]byte, error) {
	return fsys.ReadFile(filepath.Clean(path))
}

// FindDir returns the first dir/name that exists as a directory.
func FindDir(fsys FileSystem, name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if IsDir(fsys, candidate) {
			return candidate, true
		}
	}
	return "", false
}
