package ecs

// World owns the entity pool, the component registry and a deferred
// destruction queue flushed by CleanupSystem at the end of each tick.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	queued       map[EntityID]struct{}
	onDestroy    []func(EntityID)
}

func NewWorld() *World {
	return &World{
		pool:     NewEntityPool(),
		registry: NewRegistry(),
		queued:   make(map[EntityID]struct{}),
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

// OnDestroy registers fn to run for each entity right before its components
// are removed.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.onDestroy = append(w.onDestroy, fn)
}

// MarkForDestruction queues an entity for end-of-tick cleanup. Marking twice
// is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	if _, ok := w.queued[id]; ok || !w.pool.Alive(id) {
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

// FlushDestroyQueue destroys all queued entities in mark order and returns how
// many were destroyed. Entities marked by a destroy hook are flushed in the
// same call.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for ; n < len(w.destroyQueue); n++ {
		id := w.destroyQueue[n]
		for _, fn := range w.onDestroy {
			fn(id)
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		delete(w.queued, id)
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
