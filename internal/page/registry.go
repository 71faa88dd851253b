// internal/page/registry.go
package page

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidDescriptor indicates a registration with an empty namespace
	// or page id.
	ErrInvalidDescriptor = errors.New("page descriptor requires a namespace and a page id")

	// ErrDuplicatePage indicates the (namespace, page id) pair is already
	// registered.
	ErrDuplicatePage = errors.New("page already registered")

	// ErrUnknownPage indicates no page is registered under the requested
	// (namespace, page id) pair.
	ErrUnknownPage = errors.New("unknown page")
)

// Registry maps (namespace, page id) to page definitions. It is constructed
// at startup, populated by the compiled-in namespaces, and pruned when a
// namespace is unloaded.
type Registry struct {
	mu    sync.RWMutex
	pages map[string]map[string]Definition // namespace -> pageID -> definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]map[string]Definition)}
}

// Register adds a page definition. The first registration for a pair wins;
// a duplicate fails with ErrDuplicatePage and leaves the original intact.
func (r *Registry) Register(def Definition) error {
	if def.Namespace == "" || def.PageID == "" {
		return ErrInvalidDescriptor
	}
	if def.New == nil {
		return fmt.Errorf("page %q in namespace %q: %w: nil factory",
			def.PageID, def.Namespace, ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.pages[def.Namespace]
	if !ok {
		ns = make(map[string]Definition)
		r.pages[def.Namespace] = ns
	}
	if _, exists := ns[def.PageID]; exists {
		return fmt.Errorf("page %q in namespace %q: %w", def.PageID, def.Namespace, ErrDuplicatePage)
	}
	ns[def.PageID] = def
	return nil
}

// Resolve looks up a page definition.
func (r *Registry) Resolve(namespace, pageID string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ns, ok := r.pages[namespace]
	if !ok {
		return Definition{}, fmt.Errorf("page %q in namespace %q: %w", pageID, namespace, ErrUnknownPage)
	}
	def, ok := ns[pageID]
	if !ok {
		return Definition{}, fmt.Errorf("page %q in namespace %q: %w", pageID, namespace, ErrUnknownPage)
	}
	return def, nil
}

// UnregisterNamespace removes every page under the namespace. Sessions still
// bound to a removed definition keep their already-constructed instances;
// any later switch resolves against the registry and fails with
// ErrUnknownPage.
func (r *Registry) UnregisterNamespace(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, namespace)
}
