// Package jsonschema holds the versioned JSON schemas that application,
// assessment and placement application documents are validated against.
//
// Built-in schemas are YAML files embedded in the binary. A record whose
// schema version is not the newest for its type is outdated and read-only.
//
// Import Path: approvedpremises.io/cas/internal/jsonschema
package jsonschema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Type names what kind of document a schema validates.
type Type string

const (
	TypeApprovedPremisesApplication       Type = "approved-premises-application"
	TypeTemporaryAccommodationApplication Type = "temporary-accommodation-application"
	TypeCas2Application                   Type = "cas2-application"
	TypeApprovedPremisesAssessment        Type = "approved-premises-assessment"
	TypeTemporaryAccommodationAssessment  Type = "temporary-accommodation-assessment"
	TypePlacementApplication              Type = "approved-premises-placement-application"
)

// Validation outcomes, used as field error types on $.data.
const (
	ErrorEmpty   = "empty"
	ErrorInvalid = "invalid"
)

// Document is one schema version.
type Document struct {
	ID      string
	Type    Type
	AddedAt time.Time
	Schema  *openapi3.Schema
}

//go:embed schemas/*.yaml
var builtin embed.FS

type fileFormat struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	AddedAt time.Time      `yaml:"addedAt"`
	Schema  map[string]any `yaml:"schema"`
}

// Registry indexes documents by id and by type.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Document
	newest map[Type]*Document
}

// NewRegistry indexes docs. The latest AddedAt per type becomes current.
func NewRegistry(docs ...*Document) *Registry {
	r := &Registry{
		byID:   make(map[string]*Document),
		newest: make(map[Type]*Document),
	}
	for _, d := range docs {
		r.Register(d)
	}
	return r
}

// LoadBuiltin parses every embedded schema file.
func LoadBuiltin() (*Registry, error) {
	entries, err := fs.ReadDir(builtin, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	r := NewRegistry()
	for _, e := range entries {
		raw, err := builtin.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", e.Name(), err)
		}
		r.Register(doc)
	}
	return r, nil
}

// ParseDocument decodes a YAML schema file into a Document.
func ParseDocument(raw []byte) (*Document, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if f.ID == "" || f.Type == "" {
		return nil, errors.New("schema file needs id and type")
	}
	schema, err := CompileSchema(f.Schema)
	if err != nil {
		return nil, err
	}
	return &Document{ID: f.ID, Type: Type(f.Type), AddedAt: f.AddedAt, Schema: schema}, nil
}

// CompileSchema turns a decoded JSON-schema object into an openapi3.Schema.
func CompileSchema(def map[string]any) (*openapi3.Schema, error) {
	if def == nil {
		return openapi3.NewObjectSchema(), nil
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	schema := &openapi3.Schema{}
	if err := schema.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return schema, nil
}

// Register adds or replaces a document.
func (r *Registry) Register(d *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = d
	if cur, ok := r.newest[d.Type]; !ok || d.AddedAt.After(cur.AddedAt) {
		r.newest[d.Type] = d
	}
}

// Get returns the document with the given id.
func (r *Registry) Get(id string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// NewestFor returns the current schema for a type.
func (r *Registry) NewestFor(t Type) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.newest[t]
	if !ok {
		return nil, fmt.Errorf("no json schema registered for %s", t)
	}
	return d, nil
}

// IsOutdated reports whether schemaID is not the newest version of t.
func (r *Registry) IsOutdated(t Type, schemaID string) bool {
	d, err := r.NewestFor(t)
	if err != nil {
		return true
	}
	return d.ID != schemaID
}

// Validate checks data against the schema version it was written for.
// It returns "" when valid, ErrorEmpty or ErrorInvalid otherwise.
func (r *Registry) Validate(schemaID string, data *string) string {
	if data == nil || strings.TrimSpace(*data) == "" {
		return ErrorEmpty
	}
	d, ok := r.Get(schemaID)
	if !ok {
		return ErrorInvalid
	}
	var value any
	if err := json.Unmarshal([]byte(*data), &value); err != nil {
		return ErrorInvalid
	}
	if obj, ok := value.(map[string]any); ok && len(obj) == 0 {
		return ErrorEmpty
	}
	if err := d.Schema.VisitJSON(value); err != nil {
		return ErrorInvalid
	}
	return ""
}
