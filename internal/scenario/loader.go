package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Registry holds all available scenarios in registration order.
type Registry struct {
	scenarios map[string]*Definition
	order     []string
}

// NewRegistry creates an empty scenario registry.
func NewRegistry() *Registry {
	return &Registry{
		scenarios: make(map[string]*Definition),
	}
}

// Builtin returns a registry holding the embedded scenarios.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFromEmbedded(builtinFS, "builtin"); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a validated definition. Ids must be unique.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return &ValidationError{Field: "definition", Message: "is nil"}
	}
	if _, exists := r.scenarios[def.ID]; exists {
		return &ValidationError{Scenario: def.ID, Field: "id", Message: "is already registered"}
	}
	r.scenarios[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// LoadFromFile loads a scenario from a YAML file
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scenario file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return err
	}
	return r.Register(def)
}

// LoadFromDir loads all scenarios from a directory. Files are read in name
// order, which is also the listing order.
func (r *Registry) LoadFromDir(dir string) error {
	if err := r.loadFS(os.DirFS(dir), "."); err != nil {
		return fmt.Errorf("failed to load scenarios from %s: %w", dir, err)
	}
	return nil
}

// LoadFromEmbedded loads scenarios from an embedded filesystem.
func (r *Registry) LoadFromEmbedded(fsys fs.FS, dir string) error {
	if err := r.loadFS(fsys, dir); err != nil {
		return fmt.Errorf("failed to load embedded scenarios: %w", err)
	}
	return nil
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		def, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := r.Register(def); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Get retrieves a scenario by id.
func (r *Registry) Get(id string) (*Definition, error) {
	def, ok := r.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario '%s': %w", id, ErrNotFound)
	}
	return def, nil
}

// List returns all scenario ids in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns all scenarios in registration order.
func (r *Registry) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.scenarios[id])
	}
	return defs
}

// ListWithDescriptions returns all scenarios with their one-line blurbs.
func (r *Registry) ListWithDescriptions() map[string]string {
	result := make(map[string]string, len(r.scenarios))
	for id, def := range r.scenarios {
		result[id] = def.Blurb
	}
	return result
}
