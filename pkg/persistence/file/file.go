// Package file provides file-based persistence for flows, execution logs, checkpoints and templates.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/marketflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of JSON files under
// a root directory. Log appends and their stats update share one lock.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ExecutionLogs() persistence.ExecutionLogRepository {
	return &executionLogRepository{fp}
}

func (fp *Persistence) Checkpoints() persistence.CheckpointRepository {
	return &checkpointRepository{fp}
}

// validateID validates that an identifier is safe to use as a file name.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

func (fp *Persistence) dir(kind string) string {
	return filepath.Join(fp.root, kind)
}

func (fp *Persistence) path(kind, id, ext string) string {
	return filepath.Join(fp.root, kind, id+ext)
}

// writeJSON writes value to kind/id.json, creating the directory as needed.
func (fp *Persistence) writeJSON(kind, id string, value any) error {
	err := os.MkdirAll(fp.dir(kind), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	return os.WriteFile(fp.path(kind, id, ".json"), data, 0600)
}

// readJSON reads kind/id.json into value. It returns os.ErrNotExist
// (wrapped) when the file is missing.
func (fp *Persistence) readJSON(kind, id string, value any) error {
	body, err := os.ReadFile(filepath.Clean(fp.path(kind, id, ".json")))
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// ids lists the identifiers stored under kind, sorted by file name.
func (fp *Persistence) ids(kind string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(fp.dir(kind), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(match), ".json"))
	}

	return ids, nil
}
