// Package store persists templates and generation history
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Generation statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrTemplateExists is returned by Create when the id is taken
var ErrTemplateExists = errors.New("template already exists")

// TemplateStore holds certificate templates keyed by id
type TemplateStore interface {
	// List returns all templates, newest first
	List(ctx context.Context) ([]*certformat.Template, error)
	Get(ctx context.Context, id string) (*certformat.Template, error)
	// Create stores t, assigning an id when it has none
	Create(ctx context.Context, t *certformat.Template) (*certformat.Template, error)
	Update(ctx context.Context, t *certformat.Template) (*certformat.Template, error)
	Delete(ctx context.Context, id string) error
}

// HistoryStore records one entry per generated certificate
type HistoryStore interface {
	CreateGeneration(ctx context.Context, rec *GenerationRecord) (*GenerationRecord, error)
	// ListGenerations returns records newest first; limit <= 0 returns all
	ListGenerations(ctx context.Context, limit int) ([]*GenerationRecord, error)
}

// Store is the combined persistence surface used by the server
type Store interface {
	TemplateStore
	HistoryStore
	Close() error
}

// GenerationRecord is the history entry for one data row
type GenerationRecord struct {
	ID            string                 `json:"id"`
	RunID         string                 `json:"runId,omitempty"`
	TemplateID    string                 `json:"templateId"`
	RowIndex      int                    `json:"rowIndex"`
	RecipientName string                 `json:"recipientName"`
	Status        string                 `json:"status"`
	FileURL       string                 `json:"fileUrl,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Options selects and configures a backend
type Options struct {
	Driver string // file, sqlite, mysql
	DSN    string
	Path   string
}

// Open returns the store backend named by opts.Driver
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "file":
		return NewFileStore(opts.Path)
	case "sqlite", "mysql":
		return OpenSQL(ctx, opts.Driver, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", opts.Driver)
	}
}

func cloneRecord(r *GenerationRecord) *GenerationRecord {
	cp := *r
	if r.Metadata != nil {
		data, _ := json.Marshal(r.Metadata)
		cp.Metadata = nil
		json.Unmarshal(data, &cp.Metadata)
	}
	return &cp
}
