package runtime

// Batch gives user code a per-worker container it can mutate without
// locking, addressed by ThreadID(). Grounded in original_source's
// vine::batch<container> template, translated to a Go generic.
type Batch[T any] struct {
	e          *Engine
	containers []T
}

// NewBatch allocates one T per worker thread of e. It must be created
// after MainLoop has started (ThreadCount() is otherwise zero).
func NewBatch[T any](e *Engine) *Batch[T] {
	n := e.ThreadCount()
	if n < 1 {
		n = 1
	}
	return &Batch[T]{e: e, containers: make([]T, n)}
}

// Local returns a pointer to the calling worker's own container. Calling
// it from a non-worker goroutine panics, since there is no slot to return.
func (b *Batch[T]) Local() *T {
	id := b.e.ThreadID()
	if id < 0 {
		panic("runtime: Batch.Local called from outside a worker goroutine")
	}
	return &b.containers[id]
}

// All returns a pointer to every worker's container, for a final
// reduction after a machine has quiesced.
func (b *Batch[T]) All() []*T {
	out := make([]*T, len(b.containers))
	for i := range b.containers {
		out[i] = &b.containers[i]
	}
	return out
}
