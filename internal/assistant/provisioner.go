package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/internal/storage"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// Registrar registers assistants with the remote service
type Registrar interface {
	UploadKnowledge(ctx context.Context, path string) (string, error)
	CreateAssistant(ctx context.Context, def models.AssistantDefinition) (string, error)
}

// Options describes the assistant created when no record exists
type Options struct {
	Name          string
	Model         string
	Instructions  string
	KnowledgeFile string
	Functions     []models.FunctionDef
}

// Provisioner makes sure exactly one persisted assistant is in use
type Provisioner struct {
	store     storage.Store
	registrar Registrar
	opts      Options
}

// NewProvisioner creates a new provisioner
func NewProvisioner(store storage.Store, registrar Registrar, opts Options) *Provisioner {
	return &Provisioner{
		store:     store,
		registrar: registrar,
		opts:      opts,
	}
}

// Ensure returns the persisted assistant ID, registering a new assistant
// first if none has been persisted. A persisted record is trusted as-is.
func (p *Provisioner) Ensure(ctx context.Context) (string, error) {
	log := logger.Named("assistant")

	rec, found, err := p.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load assistant record: %w", err)
	}
	if found {
		log.Info("loaded existing assistant", zap.String("assistant_id", rec.AssistantID))
		return rec.AssistantID, nil
	}

	log.Info("no assistant record found, creating assistant",
		zap.String("model", p.opts.Model),
		zap.String("knowledge_file", p.opts.KnowledgeFile),
	)

	vectorStoreID, err := p.registrar.UploadKnowledge(ctx, p.opts.KnowledgeFile)
	if err != nil {
		return "", fmt.Errorf("failed to upload knowledge document: %w", err)
	}

	id, err := p.registrar.CreateAssistant(ctx, models.AssistantDefinition{
		Name:          p.opts.Name,
		Instructions:  p.opts.Instructions,
		Model:         p.opts.Model,
		Functions:     p.opts.Functions,
		VectorStoreID: vectorStoreID,
	})
	if err != nil {
		return "", err
	}

	if err := p.store.Save(models.AssistantConfig{AssistantID: id}); err != nil {
		return "", fmt.Errorf("assistant %s created but not persisted: %w", id, err)
	}

	log.Info("created new assistant and saved the ID", zap.String("assistant_id", id))
	return id, nil
}
