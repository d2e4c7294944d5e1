package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the parent directory of path if it doesn't exist
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// PartPath returns the temporary path a download is written to
func (f *FileOperations) PartPath(outputPath string) string {
	return outputPath + ".part"
}

// CreatePartialFile creates or truncates the .part file for outputPath
func (f *FileOperations) CreatePartialFile(outputPath string) (*os.File, error) {
	if err := f.EnsureDir(outputPath); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.OpenFile(f.PartPath(outputPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create partial file: %w", err)
	}
	return file, nil
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// RemovePartial deletes a leftover .part file, ignoring a missing file
func (f *FileOperations) RemovePartial(outputPath string) error {
	err := os.Remove(f.PartPath(outputPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SanitizeFilename turns a remote file name into a safe local base name
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "download"
	}
	return name
}
