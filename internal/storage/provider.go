// Package storage owns the note files on disk and the title ↔ file name mapping.
package storage

import "time"

// FileInfo describes one note file in the notes directory.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for notes-directory file operations.
// Names are plain file names relative to the notes directory.
type Provider interface {
	// List returns every .md file directly under the notes directory.
	List() ([]FileInfo, error)
	// Stat returns the file info for name.
	Stat(name string) (FileInfo, error)
	// Read returns the raw bytes of the file.
	Read(name string) ([]byte, error)
	// Write atomically writes content to the file.
	Write(name string, content []byte) error
	// Delete removes the file.
	Delete(name string) error
}
