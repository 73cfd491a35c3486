package file

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/marketflow/pkg/models"
	"github.com/dukex/marketflow/pkg/persistence"
)

const templatesDir = "templates"

// Template reads templates/<id>.json.
func (fp *Persistence) Template(_ context.Context, id string) (*models.MessageTemplate, error) {
	err := validateID(id)
	if err != nil {
		return nil, err
	}

	var template models.MessageTemplate

	err = fp.readJSON(templatesDir, id, &template)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("template %s: %w", id, persistence.ErrTemplateNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &template, nil
}

// SaveTemplate writes a template so message nodes can reference it.
func (fp *Persistence) SaveTemplate(_ context.Context, template *models.MessageTemplate) error {
	err := validateID(template.ID)
	if err != nil {
		return err
	}

	return fp.writeJSON(templatesDir, template.ID, template)
}
