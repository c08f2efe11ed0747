package thread

import (
	"github.com/google/uuid"

	"github.com/mjl-/mthread/mlog"
)

// index is the Message-ID to Container table built by indexing. Insertion
// order of ids is kept, it determines the order of the root set.
type index[T any] struct {
	table map[string]*Container[T]
	ids   []string
}

func (x *index[T]) get(id string) *Container[T] {
	return x.table[id]
}

func (x *index[T]) put(id string, c *Container[T]) {
	if _, ok := x.table[id]; !ok {
		x.ids = append(x.ids, id)
	}
	x.table[id] = c
}

// indexMessages builds the id to Container table: a Container per observed id,
// including ids only seen in References, linked according to the References
// chains and each message's own id.
func (th *threader[T]) indexMessages(messages []*MessageInfo[T]) *index[T] {
	x := &index[T]{table: map[string]*Container[T]{}, ids: make([]string, 0, len(messages))}

	for _, m := range messages {
		th.log.Debug("indexing message", mlog.Field("msgid", m.ID), mlog.Field("references", m.References))

		id := m.ID
		container := x.get(id)
		if container != nil && container.Message == nil {
			// An empty container was created for this id from a References field, store
			// the message in it.
			container.Message = m
		} else {
			if container != nil {
				// Message-ID clash. Make this message a follower of the earlier one by
				// referencing the clashing id, and index it under a fresh synthetic id.
				th.log.Debug("message-id clash, making duplicate a child of the original", mlog.Field("msgid", id))
				m.References = append(m.References, id)
				id = uuid.NewString()
			}

			container = &Container[T]{Message: m}
			x.put(id, container)
		}

		// Link the References field's Containers together in the order implied by
		// the References header. A container that already has another parent is
		// detached and moved under the previous reference, but no link is added if
		// it would introduce a loop: before asserting A->B, check whether either is
		// already reachable as a descendant of the other.
		var previous *Container[T]
		for _, reference := range m.References {
			rc := x.get(reference)
			if rc == nil {
				rc = &Container[T]{}
				x.put(reference, rc)
			}

			if previous != nil {
				if !reachable(previous, rc) && !reachable(rc, previous) {
					if rc.Parent != nil {
						removeChild(rc, false)
					}
					th.addChild(previous, rc)
				}
			}

			previous = rc
		}

		// The last reference is the definitive parent: this message may have been
		// given a parent before, inferred from another message's References, throw
		// that one away. No link is made if it would put the message above or below
		// itself.
		if previous != nil && previous != container && !reachable(previous, container) {
			if container.Parent != nil {
				removeChild(container, false)
			}
			th.addChild(previous, container)
		}
	}
	return x
}

// findRoot gathers the Containers without parent as a sibling chain, in index
// insertion order. Returns the first root, with the others linked via next.
// Nil if there are none.
func findRoot[T any](x *index[T]) *Container[T] {
	var firstRoot, lastRoot *Container[T]
	for _, id := range x.ids {
		c := x.table[id]
		if c.Parent == nil {
			if firstRoot == nil {
				firstRoot = c
			}
			if lastRoot != nil {
				lastRoot.Next = c
			}
			lastRoot = c
		}
	}
	return firstRoot
}

// countIndex returns the number of containers in the index, optionally only
// those holding a message.
func countIndex[T any](x *index[T], countEmpty bool) int {
	if countEmpty {
		return len(x.table)
	}
	n := 0
	for _, c := range x.table {
		if c.Message != nil {
			n++
		}
	}
	return n
}
