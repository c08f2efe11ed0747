package thread

import (
	"fmt"
)

// WalkAction is returned by a walk function to steer iteration.
type WalkAction int

const (
	// WalkContinue continues iteration with the next node.
	WalkContinue WalkAction = iota
	// WalkHalt stops the walk.
	WalkHalt
	// WalkLast rewinds iteration to the previously visited node, or to the
	// root if that node has since been removed from the tree. Used after
	// mutating the tree mid-walk. Only one rewind in a row is effective:
	// rewinding again without progress stays on the same node.
	WalkLast
)

// Walk iterates over root and all its descendants without recursion, calling
// fn for each node, root first. Children are visited before next siblings.
//
// Returning WalkLast for the root is invalid and panics. After a rewind the
// root can be visited again; walk functions that mutate must recognize it.
//
// The tree must not be circular.
func Walk[T any](root *Container[T], fn func(*Container[T]) WalkAction) {
	switch action := fn(root); action {
	case WalkContinue:
	case WalkHalt:
		return
	case WalkLast:
		panic("thread: only WalkContinue/WalkHalt are valid for the root node")
	default:
		panic(fmt.Sprintf("thread: unknown walk action %d", action))
	}

	last := root

	for current := root.Child; current != nil; {
		switch action := fn(current); action {
		case WalkContinue:
		case WalkHalt:
			return
		case WalkLast:
			if current == root {
				panic("thread: only WalkContinue/WalkHalt are valid for the root node")
			}
			if last.Parent == nil {
				// The rewind target has been removed from the tree, restart from the root.
				current = root
			} else {
				current = last
			}
			continue
		default:
			panic(fmt.Sprintf("thread: unknown walk action %d", action))
		}

		last = current

		if current.Child != nil {
			// There is a child, going deeper.
			current = current.Child
		} else if current != root && current.Next != nil {
			// No child but siblings.
			current = current.Next
		} else if current != root && current.Parent != nil {
			// Last descendant on this path, find the nearest next by going up.
			for {
				if current.Parent == nil {
					panic(fmt.Sprintf("thread: tree is inconsistent, no parent link for %v", containerID(current)))
				}
				current = current.Parent
				if current == root {
					return
				}
				if current.Next != nil {
					break
				}
			}
			current = current.Next
		} else {
			current = nil
		}
	}
}

// Count returns the number of containers below root, the root itself not
// included. Without countEmpty, only containers holding a message are counted.
func Count[T any](root *Container[T], countEmpty bool) int {
	n := 0
	Walk(root, func(c *Container[T]) WalkAction {
		if c == root {
			return WalkContinue
		}
		if countEmpty || c.Message != nil {
			n++
		}
		return WalkContinue
	})
	return n
}
