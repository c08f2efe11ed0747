package thread

import (
	"github.com/mjl-/mthread/mlog"
)

// MessageInfo is a message as seen by the threading engine: its Message-ID, the
// ancestor Message-IDs from its References, and its subject. Payload is opaque
// to the engine and carries whatever the caller wants to find back in the tree.
//
// References is normally read-only, but on a Message-ID clash the engine
// appends the clashing id so the duplicate becomes a follow-up of the original.
type MessageInfo[T any] struct {
	ID         string
	References []string
	Subject    string
	Payload    T
}

// Container is a node in the thread tree. The tree is in first-child/
// next-sibling form: a parent's children are Child, Child.Next, and so on.
// Message is nil for placeholder containers: ids only seen in References, the
// virtual root, and synthetic parents made during subject grouping.
//
// Parent is a back-reference, not an ownership edge. Callers may traverse the
// fields freely but must not modify them; all mutation happens inside the
// engine.
type Container[T any] struct {
	Message *MessageInfo[T]
	Parent  *Container[T]
	Child   *Container[T]
	Next    *Container[T]
}

// threader holds the per-call state of a Thread invocation.
type threader[T any] struct {
	log   *mlog.Log
	strip func(string) string
}

func (th *threader[T]) stripSubject(s string) string {
	if th.strip == nil {
		return s
	}
	return th.strip(s)
}

// addChild appends child, and any siblings following it, to the end of
// parent's children list. Each added node is detached from its old parent
// (removed from that parent's children list) and gets its parent set.
//
// The sibling chain being added is checked for a cycle while walking it. On
// detection the next link is broken at the first repeat and a diagnostic is
// logged; the call continues.
func (th *threader[T]) addChild(parent, child *Container[T]) {
	currentChildren := map[*Container[T]]bool{}

	if sibling := parent.Child; sibling == nil {
		parent.Child = child
	} else {
		// At least one child, advance to the last.
		for sibling.Next != nil {
			currentChildren[sibling] = true
			sibling = sibling.Next
		}
		sibling.Next = child
	}

	// Update the parent for the added node and its siblings, detaching each from
	// its old parent. Old parents we already cut a chain out of are not walked
	// again.
	alreadyDetached := map[*Container[T]]bool{parent: true}

	for ns := child; ns != nil; ns = ns.Next {
		if oldParent := ns.Parent; oldParent != nil && !alreadyDetached[oldParent] {
			var prev *Container[T]
			for os := oldParent.Child; os != nil; os = os.Next {
				if ns == os {
					// The chain from ns onwards moves to the new parent, cut it loose here.
					if prev == nil {
						oldParent.Child = nil
					} else {
						prev.Next = nil
					}
					break
				}
				prev = os
			}
			alreadyDetached[oldParent] = true
		}
		ns.Parent = parent

		currentChildren[ns] = true
		if ns.Next != nil && currentChildren[ns.Next] {
			metricCircular.Inc()
			th.log.Info("circular sibling reference detected, breaking chain", mlog.Field("msgid", containerID(ns)))
			ns.Next = nil
			break
		}
	}
}

// removeChild unlinks child from its parent's children list. With
// withSiblings, child and all siblings following it are unlinked as a chain
// and the trailing siblings get a nil parent; otherwise only child is removed
// and its next link is cleared.
func removeChild[T any](child *Container[T], withSiblings bool) {
	parent := child.Parent
	child.Parent = nil
	if parent == nil || parent.Child == nil {
		return
	}
	found := false
	var prev *Container[T]
	for sibling := parent.Child; sibling != nil; sibling = sibling.Next {
		if sibling == child {
			found = true
			if withSiblings {
				if prev == nil {
					parent.Child = nil
				} else {
					prev.Next = nil
				}
			} else {
				if prev == nil {
					parent.Child = sibling.Next
				} else {
					prev.Next = sibling.Next
				}
				child.Next = nil
				break
			}
		} else if found && withSiblings {
			sibling.Parent = nil
		}
		prev = sibling
	}
}

// spliceChild replaces oldChild in its parent's children list with newChild
// and newChild's current chain of next siblings. The tail of the inserted
// chain inherits oldChild's next link. Inserted nodes get their parent
// updated; oldChild ends up detached, with nil parent and next.
func spliceChild[T any](oldChild, newChild *Container[T]) {
	parent := oldChild.Parent

	var prev *Container[T]
	found := false
	for sibling := parent.Child; sibling != nil; sibling = sibling.Next {
		if !found && sibling == oldChild {
			if prev == nil {
				parent.Child = newChild
			} else {
				prev.Next = newChild
			}
			sibling = newChild
			found = true
		}
		if found {
			sibling.Parent = parent
			if sibling.Next == nil {
				sibling.Next = oldChild.Next
				break
			}
		}
		prev = sibling
	}
	if found {
		oldChild.Next = nil
		oldChild.Parent = nil
	}
}

// reachable returns whether a is b or a descendant of b, following child and
// next links. Used to prevent the indexer from introducing ancestor cycles.
// Iterative with an explicit work stack, trees can be deep.
func reachable[T any](a, b *Container[T]) bool {
	if a == b {
		return true
	}
	if b.Child == nil {
		return false
	}
	work := []*Container[T]{b.Child}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if n == a {
			return true
		}
		if n.Next != nil {
			work = append(work, n.Next)
		}
		if n.Child != nil {
			work = append(work, n.Child)
		}
	}
	return false
}

// isCircular returns whether the sibling chain starting at node loops back on
// itself.
func isCircular[T any](node *Container[T]) bool {
	if node == nil || node.Next == nil {
		return false
	}
	seen := map[*Container[T]]bool{}
	for current := node; current != nil; current = current.Next {
		if seen[current] {
			return true
		}
		seen[current] = true
	}
	return false
}

// containerID returns the message-id for a container, for diagnostics.
func containerID[T any](c *Container[T]) string {
	if c == nil || c.Message == nil {
		return ""
	}
	return c.Message.ID
}
