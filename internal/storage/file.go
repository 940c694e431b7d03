package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// FileStore keeps the assistant record as a small JSON file
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path, typically ./assistant.json
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the record. A missing file is not an error.
func (s *FileStore) Load() (models.AssistantConfig, bool, error) {
	var rec models.AssistantConfig

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	if err := validate(rec); err != nil {
		return rec, false, fmt.Errorf("%s: %w", s.path, err)
	}

	return rec, true, nil
}

// Save writes the record through a temp file so readers never see a partial write
func (s *FileStore) Save(rec models.AssistantConfig) error {
	if err := validate(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".assistant-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	logger.Info("assistant record saved", zap.String("path", s.path))
	return nil
}

// Reset deletes the record file
func (s *FileStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op for file storage
func (s *FileStore) Close() error {
	return nil
}
