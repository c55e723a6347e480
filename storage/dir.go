// Package storage confines file operations to one flat shared directory.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrNotRegular  = errors.New("not a regular file")
)

// Entry is one regular file in the shared directory.
type Entry struct {
	Name string
	Size int64
}

// Dir is the shared directory.
type Dir struct {
	root string
}

// Open prepares root for use, creating it when missing.
func Open(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create shared directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Resolve maps a flat file name to its path inside the shared directory.
// Names carrying separators or naming the directory itself are rejected.
func (d *Dir) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	full := filepath.Join(d.root, name)
	if filepath.Dir(full) != d.root {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return full, nil
}

// List returns the regular files of the directory in name order.
func (d *Dir) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size()})
	}
	return entries, nil
}

// Open opens a regular file for reading.
func (d *Dir) Open(name string) (*os.File, fs.FileInfo, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	return file, info, nil
}

// Create opens name for writing, creating it if needed. The file is not
// truncated; callers truncate once they hold the file's lock.
func (d *Dir) Create(name string) (*os.File, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	if info, err := os.Lstat(path); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
}

// Remove deletes a regular file.
func (d *Dir) Remove(name string) error {
	path, err := d.Resolve(name)
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", name, ErrNotRegular)
	}
	return os.Remove(path)
}

// Rename renames a regular file, replacing any file already named newName.
func (d *Dir) Rename(oldName, newName string) error {
	oldPath, err := d.Resolve(oldName)
	if err != nil {
		return err
	}
	newPath, err := d.Resolve(newName)
	if err != nil {
		return err
	}
	info, err := os.Lstat(oldPath)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", oldName, ErrNotRegular)
	}
	return os.Rename(oldPath, newPath)
}
