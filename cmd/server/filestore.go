package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// diskFileStore persists uploaded bytes under the local filesystem,
// creating any missing parent directories.
type diskFileStore struct{}

func (diskFileStore) Save(_ context.Context, path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	return nil
}
