package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// FileStore keeps templates in a JSON file and history in an append-only
// JSON Lines file next to it
type FileStore struct {
	filePath    string
	historyPath string
	templates   map[string]*certformat.Template
	generations []*GenerationRecord
	mu          sync.RWMutex
	now         func() time.Time
}

type fileData struct {
	Templates map[string]*certformat.Template `json:"templates"`
}

// NewFileStore opens (or lazily creates) the store file at filePath. An
// empty path keeps everything in memory.
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		filePath:    filePath,
		historyPath: HistoryPath(filePath),
		templates:   make(map[string]*certformat.Template),
		now:         time.Now,
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return s, nil
}

// HistoryPath returns the history file used alongside a template file:
// templates.json keeps its history in templates.history.jsonl
func HistoryPath(filePath string) string {
	if filePath == "" {
		return ""
	}
	return strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".history.jsonl"
}

// List returns every template, newest first
func (s *FileStore) List(ctx context.Context) ([]*certformat.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*certformat.Template, 0, len(s.templates))
	for _, t := range s.templates {
		result = append(result, t.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Get returns a copy of the template
func (s *FileStore) Get(ctx context.Context, id string) (*certformat.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.templates[id]
	if !exists {
		return nil, fmt.Errorf("template %s: %w", id, certformat.ErrTemplateNotFound)
	}
	return t.Clone(), nil
}

// Create stores a new template
func (s *FileStore) Create(ctx context.Context, t *certformat.Template) (*certformat.Template, error) {
	if err := certformat.Validate(t); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := t.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if _, exists := s.templates[stored.ID]; exists {
		return nil, fmt.Errorf("template %s: %w", stored.ID, ErrTemplateExists)
	}

	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	next := maps.Clone(s.templates)
	next[stored.ID] = stored
	if err := s.commit(next); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// Update replaces an existing template, keeping its creation time
func (s *FileStore) Update(ctx context.Context, t *certformat.Template) (*certformat.Template, error) {
	if err := certformat.Validate(t); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.templates[t.ID]
	if !exists {
		return nil, fmt.Errorf("template %s: %w", t.ID, certformat.ErrTemplateNotFound)
	}

	stored := t.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = s.now().UTC()

	next := maps.Clone(s.templates)
	next[stored.ID] = stored
	if err := s.commit(next); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// Delete removes a template
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[id]; !exists {
		return fmt.Errorf("template %s: %w", id, certformat.ErrTemplateNotFound)
	}

	next := maps.Clone(s.templates)
	delete(next, id)
	return s.commit(next)
}

// CreateGeneration appends a history record
func (s *FileStore) CreateGeneration(ctx context.Context, rec *GenerationRecord) (*GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneRecord(rec)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}

	if err := s.appendHistory(stored); err != nil {
		return nil, err
	}
	s.generations = append(s.generations, stored)
	return cloneRecord(stored), nil
}

// ListGenerations returns history newest first
func (s *FileStore) ListGenerations(ctx context.Context, limit int) ([]*GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.generations)
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]*GenerationRecord, 0, limit)
	for i := n - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, cloneRecord(s.generations[i]))
	}
	return result, nil
}

// Close is a no-op; every write is flushed immediately
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() error {
	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	switch {
	case os.IsNotExist(err):
		// Created on first save
	case err != nil:
		return err
	default:
		var fd fileData
		if err := json.Unmarshal(data, &fd); err != nil {
			return err
		}
		if fd.Templates != nil {
			s.templates = fd.Templates
		}
	}

	return s.loadHistory()
}

func (s *FileStore) loadHistory() error {
	f, err := os.Open(s.historyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var rec GenerationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("%s line %d: %w", s.historyPath, line, err)
		}
		s.generations = append(s.generations, &rec)
	}
	return scanner.Err()
}

// commit writes next to disk and swaps it in only once the write succeeded
func (s *FileStore) commit(next map[string]*certformat.Template) error {
	if s.filePath != "" {
		data, err := json.MarshalIndent(fileData{Templates: next}, "", "  ")
		if err != nil {
			return err
		}
		if err := writeFileAtomic(s.filePath, data); err != nil {
			return err
		}
	}
	s.templates = next
	return nil
}

func (s *FileStore) appendHistory(rec *GenerationRecord) error {
	if s.historyPath == "" {
		return nil
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeFileAtomic replaces path through a temp file in the same directory
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
