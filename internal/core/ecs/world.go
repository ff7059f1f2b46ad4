package ecs

// World owns the entity pool, the component registry, and a deferred
// destruction queue. Queued entities stay fully alive until FlushDestroyQueue
// runs at the housekeeping point of a tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	queued       map[EntityID]struct{}
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
		queued:       make(map[EntityID]struct{}, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for the next flush. Marking twice is a no-op.
func (w *World) MarkForDestruction(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	if _, ok := w.queued[id]; ok {
		return
	}
	w.queued[id] = struct{}{}
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending reports whether id is queued for destruction.
func (w *World) Pending(id EntityID) bool {
	_, ok := w.queued[id]
	return ok
}

// FlushDestroyQueue destroys all queued entities in ascending id order,
// clears their components and returns the destroyed ids.
func (w *World) FlushDestroyQueue() []EntityID {
	if len(w.destroyQueue) == 0 {
		return nil
	}
	flushed := make([]EntityID, len(w.destroyQueue))
	copy(flushed, w.destroyQueue)
	SortIDs(flushed)
	for _, id := range flushed {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		delete(w.queued, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return flushed
}

// Reset drops every entity and queued destruction without touching stores.
func (w *World) Reset() {
	w.pool.Reset()
	w.destroyQueue = w.destroyQueue[:0]
	for id := range w.queued {
		delete(w.queued, id)
	}
}
