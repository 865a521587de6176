package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/logging"
	"hyperfocus/internal/tools/ports"
)

// RegisteredTool pairs a tool's metadata with its handler. The registry
// exclusively owns this mapping.
type RegisteredTool struct {
	Meta    ports.ToolMetadata
	Handler ports.Handler
}

// Registry is the central authority mapping a tool name (or alias) to its
// metadata and handler. Registration is a one-time startup activity; the
// registry is read-only during normal operation.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*RegisteredTool
	aliases    map[string]string
	order      []string
	cachedDefs []ports.ToolDefinition
	defsDirty  bool
	logger     logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		tools:     make(map[string]*RegisteredTool),
		aliases:   make(map[string]string),
		defsDirty: true,
		logger:    logging.OrNop(logger),
	}
}

// Register inserts a tool under its metadata name plus optional aliases.
// Name collisions are configuration errors and fatal at startup.
func (r *Registry) Register(meta ports.ToolMetadata, handler ports.Handler, aliases ...string) error {
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", meta.Name)
	}
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("tool already exists: %s", meta.Name)
	}
	if target, exists := r.aliases[meta.Name]; exists {
		return fmt.Errorf("tool name %s collides with alias of %s", meta.Name, target)
	}
	for _, alias := range aliases {
		if _, exists := r.tools[alias]; exists {
			return fmt.Errorf("alias %s collides with tool name", alias)
		}
		if _, exists := r.aliases[alias]; exists {
			return fmt.Errorf("alias already exists: %s", alias)
		}
	}

	r.tools[meta.Name] = &RegisteredTool{Meta: meta, Handler: handler}
	r.order = append(r.order, meta.Name)
	for _, alias := range aliases {
		r.aliases[alias] = meta.Name
	}
	r.defsDirty = true
	r.logger.Debug("Registered tool %s (category=%s, cacheable=%v)", meta.Name, meta.Category, meta.Cacheable)
	return nil
}

// Get resolves a direct name or a registered alias. Absence is reported via
// the boolean, not an error; use Resolve when a typed error is needed.
func (r *Registry) Get(nameOrAlias string) (*RegisteredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.tools[nameOrAlias]; ok {
		return tool, true
	}
	if canonical, ok := r.aliases[nameOrAlias]; ok {
		if tool, ok := r.tools[canonical]; ok {
			return tool, true
		}
	}
	return nil, false
}

// GetHandler resolves just the handler for a name or alias.
func (r *Registry) GetHandler(nameOrAlias string) (ports.Handler, bool) {
	tool, ok := r.Get(nameOrAlias)
	if !ok {
		return nil, false
	}
	return tool.Handler, true
}

// Resolve is Get with a typed not-found error enumerating the known tool
// names, ready to surface to the caller.
func (r *Registry) Resolve(nameOrAlias string) (*RegisteredTool, error) {
	tool, ok := r.Get(nameOrAlias)
	if !ok {
		return nil, apperrors.NewNotFound(nameOrAlias, r.Names())
	}
	return tool, nil
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// List returns the LLM-facing definitions of every registered tool in
// insertion order. The slice is memoized until the next registration.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	if !r.defsDirty && r.cachedDefs != nil {
		defs := r.cachedDefs
		r.mu.RUnlock()
		return defs
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring the write lock.
	if !r.defsDirty && r.cachedDefs != nil {
		return r.cachedDefs
	}
	defs := make([]ports.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Meta.Definition())
	}
	r.cachedDefs = defs
	r.defsDirty = false
	return defs
}

// ListMetadata returns full metadata for every tool in insertion order.
func (r *Registry) ListMetadata() []ports.ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]ports.ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		metas = append(metas, r.tools[name].Meta)
	}
	return metas
}

// ListByCategory returns metadata for tools in the given category,
// insertion order preserved.
func (r *Registry) ListByCategory(category string) []ports.ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var metas []ports.ToolMetadata
	for _, name := range r.order {
		if meta := r.tools[name].Meta; meta.Category == category {
			metas = append(metas, meta)
		}
	}
	return metas
}

// SearchByTags returns metadata for tools carrying at least one of the
// given tags.
func (r *Registry) SearchByTags(tags ...string) []ports.ToolMetadata {
	if len(tags) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[tag] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var metas []ports.ToolMetadata
	for _, name := range r.order {
		meta := r.tools[name].Meta
		for _, tag := range meta.Tags {
			if wanted[tag] {
				metas = append(metas, meta)
				break
			}
		}
	}
	return metas
}

// ValidateInput runs the tool's input schema against args and returns
// field-level violations. A missing tool is the only error condition.
func (r *Registry) ValidateInput(nameOrAlias string, args map[string]any) ([]FieldViolation, error) {
	tool, err := r.Resolve(nameOrAlias)
	if err != nil {
		return nil, err
	}
	return ValidateArguments(tool.Meta.InputSchema, args), nil
}
