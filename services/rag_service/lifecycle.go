package rag_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/serisow/lesocle-kb/kb_type"
)

// Manager reports on and resets the whole knowledge base: the vector store
// and the upload store together.
type Manager struct {
	store  *VectorStore
	files  UploadStore
	logger *slog.Logger
}

func NewManager(store *VectorStore, files UploadStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		files:  files,
		logger: logger,
	}
}

func (m *Manager) Status(ctx context.Context) (*kb_type.Status, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	files, err := m.files.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return &kb_type.Status{
		DocumentCount:    count,
		UploadedFiles:    files,
		PersistDirectory: m.store.Location(),
	}, nil
}

// Clear returns the knowledge base to its startup state. Both stores are
// reset even if the first one fails; any failure is reported and leaves the
// state undefined.
func (m *Manager) Clear(ctx context.Context) error {
	storeErr := m.store.Reset(ctx)
	if storeErr != nil {
		m.logger.Error("Failed to reset vector store", slog.String("error", storeErr.Error()))
	}

	filesErr := m.files.Wipe()
	if filesErr != nil {
		m.logger.Error("Failed to wipe uploads", slog.String("error", filesErr.Error()))
		filesErr = fmt.Errorf("failed to wipe uploads: %w", filesErr)
	}

	if err := errors.Join(storeErr, filesErr); err != nil {
		return newKBError(ErrLifecycle, err)
	}

	m.logger.Info("Knowledge base cleared")
	return nil
}
