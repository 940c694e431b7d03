package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

var (
	bucketName = []byte("assistant")
	recordKey  = []byte("config")
)

// BoltStore keeps the assistant record in a BBolt database
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	// Create bucket if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("assistant store initialized", zap.String("path", path))
	return &BoltStore{db: db}, nil
}

// Load retrieves the record if one has been saved
func (s *BoltStore) Load() (models.AssistantConfig, bool, error) {
	var rec models.AssistantConfig
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get(recordKey)
		if data == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return validate(rec)
	})
	if err != nil {
		return models.AssistantConfig{}, false, err
	}

	return rec, found, nil
}

// Save stores the record, replacing any previous one
func (s *BoltStore) Save(rec models.AssistantConfig) error {
	if err := validate(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(recordKey, data)
	})
}

// Reset removes the record so the next start registers a new assistant
func (s *BoltStore) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(recordKey)
	})
}

// Close closes the database connection
func (s *BoltStore) Close() error {
	return s.db.Close()
}
