// Package local implements an image store on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem image store.
type Config struct {
	// BaseDir is the directory images are written into.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ImageStore writes image files into a single directory and never replaces
// an existing file.
type ImageStore struct {
	baseDir string
}

// New creates the store, creating BaseDir when it does not exist.
func New(cfg Config) (*ImageStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &ImageStore{baseDir: cfg.BaseDir}, nil
}

// Put writes data under name and returns the file path. It fails with an
// error matching os.ErrExist when the file is already present.
func (s *ImageStore) Put(_ context.Context, name string, _ string, data []byte) (string, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	// #nosec G304 -- path is confined to baseDir by resolve.
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		closeErr := f.Close()
		removeErr := os.Remove(fullPath)
		return "", fmt.Errorf("write image file: %w", errors.Join(err, closeErr, removeErr))
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	return fullPath, nil
}

func (s *ImageStore) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	fullPath := filepath.Join(s.baseDir, name)

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return cleanFullPath, nil
}
