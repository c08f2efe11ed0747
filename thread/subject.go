package thread

import (
	"strings"

	"github.com/mjl-/mthread/mlog"
)

// groupRootBySubject merges members of the root set that share a normalized
// subject, so messages without References still get threaded where possible.
func (th *threader[T]) groupRootBySubject(fakeRoot *Container[T]) {
	// Associate each normalized subject occurring in the root set with the most
	// interesting root carrying it.
	subjectTable := map[string]*Container[T]{}

	for root := fakeRoot.Child; root != nil; root = root.Next {
		subject := th.extractSubject(root, true)

		if subject == "" {
			// No usable subject, give up on this container.
			continue
		}

		otherRoot := subjectTable[subject]
		if otherRoot == nil {
			subjectTable[subject] = root
		} else if root.Message == nil && otherRoot.Message != nil {
			// An empty container is more interesting as a root than a non-empty one.
			subjectTable[subject] = root
		} else if len(th.extractSubject(otherRoot, false)) > len(subject) && subject == th.extractSubject(root, false) {
			// The stored root has a reply-prefixed version of this subject and this
			// root has the plain version, the plain version is the more interesting.
			subjectTable[subject] = root
		}
	}

	// Iterate the root set again and merge each root with the table entry for
	// its subject, if that is a different container.
	var next *Container[T]
	for root := fakeRoot.Child; root != nil; root = next {
		// Save next now, this root may be removed from the sibling list below.
		next = root.Next

		subject := th.extractSubject(root, true)
		otherRoot := subjectTable[subject]

		if otherRoot == nil || otherRoot == root {
			continue
		}

		if next == otherRoot {
			// Don't compare the same pair twice.
			next = otherRoot.Next
		}

		thisEmpty := root.Message == nil
		thatEmpty := otherRoot.Message == nil
		switch {
		case thisEmpty && thatEmpty:
			// Both are placeholders: append one's children to the other and remove the
			// now childless one.
			if otherChild := otherRoot.Child; otherChild != nil {
				removeChild(otherChild, true)
				th.addChild(root, otherChild)
			}
			removeChild(otherRoot, false)
			// The removed node leaves the root set, track its replacement.
			subjectTable[subject] = root

		case thisEmpty != thatEmpty:
			// One is a placeholder and the other is not: the non-empty one becomes a
			// child of the empty one, next to the other real messages with this
			// subject.
			if thisEmpty {
				removeChild(otherRoot, false)
				th.addChild(root, otherRoot)
				subjectTable[subject] = root
			} else {
				removeChild(root, false)
				th.addChild(otherRoot, root)
			}

		default:
			thatIsReply := th.isReply(otherRoot.Message.Subject)
			thisIsReply := th.isReply(root.Message.Subject)
			if !thatIsReply && thisIsReply {
				// The table entry is the original and this is a reply to it.
				removeChild(root, false)
				th.addChild(otherRoot, root)
			} else if thatIsReply && !thisIsReply {
				// The table entry is the reply and this is the original, they were
				// misordered.
				removeChild(otherRoot, false)
				th.addChild(root, otherRoot)
				subjectTable[subject] = root
			} else {
				// Both are replies, or neither is. Group them under a new empty
				// container as siblings instead of asserting a hierarchy that may not
				// be true.
				newParent := &Container[T]{}
				spliceChild(otherRoot, newParent)
				th.addChild(newParent, otherRoot)
				removeChild(root, false)
				th.addChild(newParent, root)
				subjectTable[subject] = newParent
			}
		}
	}

	th.log.Debug("threading: after subject grouping", mlog.Field("messages", Count(fakeRoot, false)))
}

// isReply reports whether stripping reply markers strictly shortens the
// trimmed subject.
func (th *threader[T]) isReply(subject string) bool {
	return len(th.stripSubject(subject)) < len(strings.TrimSpace(subject))
}

// extractSubject returns the subject of the subtree at container: the subject
// of its message, or for a placeholder the first subject found among its
// descendants. With strip, reply markers are removed.
func (th *threader[T]) extractSubject(container *Container[T], strip bool) string {
	var subject string
	if container.Message != nil {
		subject = container.Message.Subject
	} else {
		subject = findChildSubject(container)
	}

	if strip {
		subject = th.stripSubject(subject)
	}

	return subject
}

// findChildSubject searches container's descendants for a non-empty subject:
// first the immediate children left to right, then each child's subtree. An
// explicit work stack bounds the search on deep trees.
func findChildSubject[T any](container *Container[T]) string {
	work := []*Container[T]{container}
	for len(work) > 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]

		// Empty containers are reparented during pruning, the first child does not
		// necessarily hold a message. Siblings first.
		var subject string
		for child := c.Child; child != nil; child = child.Next {
			if child.Message != nil {
				subject = child.Message.Subject
				break
			}
		}
		if subject != "" {
			return subject
		}

		// If the siblings were unsuccessful, go deeper, leftmost subtree first.
		var children []*Container[T]
		for child := c.Child; child != nil; child = child.Next {
			children = append(children, child)
		}
		for i := len(children) - 1; i >= 0; i-- {
			work = append(work, children[i])
		}
	}
	return ""
}
