package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// CoreFile is the schema document every extraction session starts from.
const CoreFile = "core.json"

// ContentType describes one selectable content-type schema, as presented to
// the detection prompt.
type ContentType struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	File        string `json:"file"`
}

// Repository loads schema documents from a directory of JSON files and
// caches them. Documents are immutable once loaded.
type Repository struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Document
}

// NewRepository creates a repository reading from dir.
func NewRepository(dir string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*Document),
	}
}

// Load reads and caches one schema document by file name. The .json
// extension is optional.
func (r *Repository) Load(name string) (*Document, error) {
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	r.mu.RLock()
	doc, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return doc, nil
	}

	path := filepath.Join(r.dir, filepath.Base(name))
	r.logger.Debug("Loading schema document", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	doc = &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", name, err)
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(name), ".json")
	}

	r.mu.Lock()
	r.cache[name] = doc
	r.mu.Unlock()

	r.logger.Debug("Schema loaded", "schema", doc.ID, "fields", len(doc.Fields))
	return doc, nil
}

// Core loads the core schema document.
func (r *Repository) Core() (*Document, error) {
	return r.Load(CoreFile)
}

// ContentTypes lists every non-core schema in the directory with its
// description, for content-type detection.
func (r *Repository) ContentTypes() ([]ContentType, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var types []ContentType
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == CoreFile {
			continue
		}
		doc, err := r.Load(name)
		if err != nil {
			r.logger.Warn("Skipping unreadable schema file", "file", name, "error", err)
			continue
		}
		types = append(types, ContentType{
			Name:        doc.ID,
			Description: doc.Description,
			File:        name,
		})
	}

	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}
