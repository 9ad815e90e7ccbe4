package replicator

import (
	"fmt"
	"maps"
	"slices"
)

type (
	// Entity identifies one tracked entity.
	Entity uint64

	Op int

	// Change is the new state of one component of one entity. Data holds the
	// component's codec encoding for OpPut and is nil for OpDelete.
	Change struct {
		Op   Op
		Data []byte
	}

	// Difference maps entities to their changed components, keyed by
	// component name. Entities with no changes are absent.
	Difference map[Entity]map[string]Change
)

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
)

// Put returns a change carrying an encoded value.
func Put(data []byte) Change {
	return Change{Op: OpPut, Data: data}
}

// Tombstone returns a change that removes the component.
func Tombstone() Change {
	return Change{Op: OpDelete}
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

func (chg Change) String() string {
	if chg.Op == OpPut {
		return fmt.Sprintf("put(%x)", chg.Data)
	}
	return chg.Op.String()
}

func (d Difference) set(e Entity, name string, chg Change) {
	m := d[e]
	if m == nil {
		m = make(map[string]Change)
		d[e] = m
	}
	m[name] = chg
}

// Entities returns the entities of d in ascending order.
func (d Difference) Entities() []Entity {
	return slices.Sorted(maps.Keys(d))
}

// Counts returns the number of puts and deletes in d.
func (d Difference) Counts() (puts, deletes int) {
	for _, m := range d {
		for _, chg := range m {
			switch chg.Op {
			case OpPut:
				puts++
			case OpDelete:
				deletes++
			}
		}
	}
	return
}
