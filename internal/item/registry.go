package item

import (
	"fmt"
	"sort"

	"github.com/boson/simcore/internal/core/ecs"
	"github.com/kamstrup/intmap"
)

// Registry is the full set of simulation items. Ids are allocated from the
// ECS world so that per-item plugin stores registered on the same world are
// cleaned up together with the item.
//
// Removal is deferred: Remove only queues the id, the item stays visible to
// Get and iteration until Flush runs at the housekeeping point of a tick.
type Registry struct {
	world *ecs.World
	items *intmap.Map[ID, Item]
	order []ID // ascending; rebuilt lazily
	dirty bool
}

func NewRegistry(world *ecs.World) *Registry {
	return &Registry{
		world: world,
		items: intmap.New[ID, Item](256),
	}
}

// World exposes the ECS world for plugin store registration.
func (r *Registry) World() *ecs.World { return r.world }

// NewID allocates the id for an item about to be constructed.
func (r *Registry) NewID() ID {
	return r.world.CreateEntity()
}

// Add registers an item created with an id from NewID.
func (r *Registry) Add(it Item) error {
	id := it.ID()
	if !r.world.Alive(id) {
		return fmt.Errorf("item %d: id not allocated by this registry", id)
	}
	if _, dup := r.items.Get(id); dup {
		return fmt.Errorf("item %d: already registered", id)
	}
	r.items.Put(id, it)
	r.dirty = true
	return nil
}

// Get returns the item with the given id.
func (r *Registry) Get(id ID) (Item, bool) {
	return r.items.Get(id)
}

// Unit returns the item with the given id if it is a unit.
func (r *Registry) Unit(id ID) (*Unit, bool) {
	it, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	u, ok := it.(*Unit)
	return u, ok
}

// Remove queues an item for removal at the next Flush.
func (r *Registry) Remove(id ID) {
	if _, ok := r.items.Get(id); ok {
		r.world.MarkForDestruction(id)
	}
}

// RemovalPending reports whether id is queued for removal.
func (r *Registry) RemovalPending(id ID) bool {
	return r.world.Pending(id)
}

// Flush removes every queued item and returns their ids in ascending order.
func (r *Registry) Flush() []ID {
	flushed := r.world.FlushDestroyQueue()
	for _, id := range flushed {
		r.items.Del(id)
	}
	if len(flushed) > 0 {
		r.dirty = true
	}
	return flushed
}

// Len returns the number of registered items, including queued removals.
func (r *Registry) Len() int { return r.items.Len() }

// IDs returns a snapshot of all item ids in ascending order.
func (r *Registry) IDs() []ID {
	r.rebuild()
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// Each visits every item in ascending id order. fn may call Remove.
func (r *Registry) Each(fn func(Item)) {
	for _, id := range r.IDs() {
		if it, ok := r.items.Get(id); ok {
			fn(it)
		}
	}
}

// Units returns all units (live and wrecked) in ascending id order.
func (r *Registry) Units() []*Unit {
	r.rebuild()
	out := make([]*Unit, 0, len(r.order))
	for _, id := range r.order {
		it, _ := r.items.Get(id)
		if u, ok := it.(*Unit); ok {
			out = append(out, u)
		}
	}
	return out
}

// Clear drops every item without running any removal logic.
func (r *Registry) Clear() {
	r.items.Clear()
	r.world.Reset()
	r.order = r.order[:0]
	r.dirty = false
}

func (r *Registry) rebuild() {
	if !r.dirty {
		return
	}
	r.order = r.order[:0]
	r.items.ForEach(func(id ID, _ Item) bool {
		r.order = append(r.order, id)
		return true
	})
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	r.dirty = false
}
