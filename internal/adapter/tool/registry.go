package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"wads/internal/domain"
)

// Registry holds named tools and the compiled JSON Schema for each. It
// implements domain.ToolExecutor for the tool-call loop.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]domain.Tool
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]domain.Tool),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger,
	}
}

// Register adds a tool and compiles its parameter schema. Returns an error
// if the name is already registered. A schema that fails to compile is a
// programming error in the tool, not a runtime condition: the tool is
// registered without validation and a warning is logged.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	compiled, err := compileSchema(t)
	if err != nil {
		r.logger.Warn("argument validation disabled for tool", "tool", name, "error", err)
	} else if compiled != nil {
		r.schemas[name] = compiled
	}

	r.tools[name] = t
	return nil
}

// MustRegister registers a set of tools and panics on a duplicate name.
// Intended for startup wiring where a duplicate is a bug.
func (r *Registry) MustRegister(tools ...domain.Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

func compileSchema(t domain.Tool) (*jsonschema.Schema, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}
	return compiled, nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Schemas returns every tool's schema, sorted by name so the advertised
// tool list is stable across requests.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// IsDestructive reports whether the named tool requires confirmation.
// Unknown names are not destructive; Get rejects them first.
func (r *Registry) IsDestructive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return ok && t.Tier() == domain.TierDestructive
}

// Validate checks model-supplied arguments against the tool's compiled
// parameter schema.
func (r *Registry) Validate(name string, params json.RawMessage) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()

	if schema == nil {
		return nil
	}

	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return domain.NewDomainError("Registry.Validate", domain.ErrInvalidInput, err.Error())
	}
	if err := schema.Validate(v); err != nil {
		return domain.NewDomainError("Registry.Validate", domain.ErrSchemaViolation, err.Error())
	}
	return nil
}
