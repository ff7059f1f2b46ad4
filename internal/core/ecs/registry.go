package ecs

// Store is implemented by every component store attached to a World.
type Store interface {
	Remove(id EntityID)
	Clear()
}

// Registry is the set of stores of one World. Final removal of an entity and
// a full reset both go through it, so no store keeps state for a dead id.
type Registry struct {
	stores []Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make([]Store, 0, 8)}
}

func (r *Registry) Register(s Store) {
	r.stores = append(r.stores, s)
}

// RemoveAll drops id from every store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

// Clear empties every store.
func (r *Registry) Clear() {
	for _, s := range r.stores {
		s.Clear()
	}
}

func (r *Registry) Len() int { return len(r.stores) }
