package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TempPrefix marks in-flight atomic writes; such files are never notes.
const TempPrefix = ".quill-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to notes directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute notes directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a file name against the root and rejects anything that
// is not a plain file name directly inside it.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid file name: %q", name)
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("storage: path escapes notes dir: %s", name)
	}
	return filepath.Join(f.root, name), nil
}

// IsNoteFile reports whether name looks like a note file.
func IsNoteFile(name string) bool {
	return strings.HasSuffix(name, ".md") && !strings.HasPrefix(name, TempPrefix)
}

// List returns metadata for every note file, sorted by name.
func (f *FS) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() || !IsNoteFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat returns file info for a note file.
func (f *FS) Stat(name string) (FileInfo, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Read returns the raw bytes of a note file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a note file.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}
