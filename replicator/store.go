package replicator

// Store is the read side of a component store: the set of tracked entities
// and the current value of each of their components.
type Store interface {
	// Entities lists the entities that may have tracked components. Order
	// does not matter.
	Entities() ([]Entity, error)

	// Get returns the value of component name on entity e, or false if the
	// entity does not have it.
	Get(e Entity, name string) (any, bool, error)
}

// Writer is a Store that differences can be applied to.
type Writer interface {
	Store

	// Put inserts or overwrites a component value.
	Put(e Entity, name string, v any) error

	// Delete removes a component. Deleting a missing component is not an
	// error.
	Delete(e Entity, name string) error
}

// Batcher is implemented by writers that can apply a group of writes
// atomically. fn receives a Writer that is only valid inside the call; if
// fn fails, none of its writes are kept.
type Batcher interface {
	Batch(fn func(w Writer) error) error
}
