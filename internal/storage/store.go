package storage

import (
	"errors"
	"fmt"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/models"
)

// ErrMalformed is returned when a persisted record exists but cannot be used
var ErrMalformed = errors.New("malformed assistant record")

// Store persists the single assistant configuration record
type Store interface {
	// Load returns the record and true if one has been persisted
	Load() (models.AssistantConfig, bool, error)

	// Save persists the record, replacing any previous one
	Save(cfg models.AssistantConfig) error

	// Reset removes the record. Resetting an empty store is not an error.
	Reset() error

	// Close releases underlying resources
	Close() error
}

// Open creates the store selected by configuration
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "", "file":
		return NewFileStore(cfg.Assistant.IDFile), nil
	case "bolt":
		return NewBoltStore(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func validate(rec models.AssistantConfig) error {
	if rec.AssistantID == "" {
		return fmt.Errorf("%w: empty assistant_id", ErrMalformed)
	}
	return nil
}
