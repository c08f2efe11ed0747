package thread

// prune removes empty containers under fakeRoot whose presence adds no
// structure: childless empty containers are dropped, empty containers with
// children are replaced by their children. Children are not promoted into the
// root set, unless the empty container has exactly one child.
//
// Mutating mid-walk invalidates the walker's position, so every mutation
// rewinds to the previously visited node (or the root when that node was
// itself removed) and iteration continues from there. Each mutation removes
// an empty container, so the walk terminates.
func (th *threader[T]) prune(fakeRoot *Container[T]) {
	Walk(fakeRoot, func(node *Container[T]) WalkAction {
		if node == fakeRoot {
			// A rewind can land back on the root, leave it alone.
			return WalkContinue
		}

		if node.Message == nil {
			child := node.Child
			if child == nil {
				// Empty container without children, nuke it.
				removeChild(node, false)
				return WalkLast
			} else if node.Parent != fakeRoot || child.Next == nil {
				// Empty container with children: splice the children into its place.
				// Not done when that would promote multiple children to the root set;
				// a single child takes the place of a transparent empty root.
				removeChild(child, true)
				spliceChild(node, child)
				return WalkLast
			}
		}
		return WalkContinue
	})
}
