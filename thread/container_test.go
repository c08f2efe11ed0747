package thread

import (
	"testing"
)

func tc(id string) *Container[string] {
	if id == "" {
		return &Container[string]{}
	}
	return &Container[string]{Message: &MessageInfo[string]{ID: id, Payload: id}}
}

func childIDs(parent *Container[string]) []string {
	var l []string
	for c := parent.Child; c != nil; c = c.Next {
		l = append(l, containerID(c))
	}
	return l
}

func tcompareIDs(t *testing.T, got, exp []string) {
	t.Helper()
	if len(got) != len(exp) {
		t.Fatalf("got children %v, expected %v", got, exp)
	}
	for i := range got {
		if got[i] != exp[i] {
			t.Fatalf("got children %v, expected %v", got, exp)
		}
	}
}

func newTestThreader() *threader[string] {
	return &threader[string]{log: tlog}
}

func TestAddChild(t *testing.T) {
	th := newTestThreader()

	parent := tc("p")
	a, b, c := tc("a"), tc("b"), tc("c")

	th.addChild(parent, a)
	th.addChild(parent, b)
	tcompareIDs(t, childIDs(parent), []string{"a", "b"})
	if a.Parent != parent || b.Parent != parent {
		t.Fatalf("children should have their parent set")
	}

	// Adding a node with following siblings moves the whole chain.
	other := tc("q")
	th.addChild(other, c)
	d := tc("d")
	c.Next = d
	d.Parent = other
	th.addChild(parent, c)
	tcompareIDs(t, childIDs(parent), []string{"a", "b", "c", "d"})
	if other.Child != nil {
		t.Fatalf("old parent should have lost the moved chain")
	}
	if d.Parent != parent {
		t.Fatalf("trailing sibling should have been reparented")
	}
}

func TestAddChildReparent(t *testing.T) {
	th := newTestThreader()

	p1, p2 := tc("p1"), tc("p2")
	a, b := tc("a"), tc("b")
	th.addChild(p1, a)
	th.addChild(p1, b)

	// Moving a mid-chain child cuts its old parent's list at that point; the
	// moved chain includes the following siblings.
	th.addChild(p2, a)
	tcompareIDs(t, childIDs(p2), []string{"a", "b"})
	if p1.Child != nil {
		t.Fatalf("p1 should have no children left, got %v", childIDs(p1))
	}
}

func TestAddChildCircular(t *testing.T) {
	th := newTestThreader()

	parent := tc("p")
	a, b := tc("a"), tc("b")
	a.Next = b
	b.Next = a // Broken input: circular sibling chain.
	if !isCircular(a) {
		t.Fatalf("isCircular should detect the loop")
	}

	th.addChild(parent, a)
	if isCircular(parent.Child) {
		t.Fatalf("addChild should have broken the circular chain")
	}
	tcompareIDs(t, childIDs(parent), []string{"a", "b"})
}

func TestRemoveChild(t *testing.T) {
	th := newTestThreader()

	parent := tc("p")
	a, b, c := tc("a"), tc("b"), tc("c")
	th.addChild(parent, a)
	th.addChild(parent, b)
	th.addChild(parent, c)

	removeChild(b, false)
	tcompareIDs(t, childIDs(parent), []string{"a", "c"})
	if b.Parent != nil || b.Next != nil {
		t.Fatalf("removed child should be fully detached")
	}

	// Removing the first child.
	removeChild(a, false)
	tcompareIDs(t, childIDs(parent), []string{"c"})

	// Removing a chain.
	th.addChild(parent, a)
	th.addChild(parent, b)
	removeChild(a, true)
	tcompareIDs(t, childIDs(parent), []string{"c"})
	if a.Next != b {
		t.Fatalf("chain removal should keep the next links of the removed chain")
	}
	if b.Parent != nil {
		t.Fatalf("chain removal should clear the parent of following siblings")
	}

	// Removing a parentless node is a no-op.
	removeChild(tc("x"), false)
}

func TestSpliceChild(t *testing.T) {
	th := newTestThreader()

	parent := tc("p")
	a, b, c := tc("a"), tc("b"), tc("c")
	th.addChild(parent, a)
	th.addChild(parent, b)
	th.addChild(parent, c)

	// Replace b with a chain of two new nodes; the tail inherits b's next.
	x, y := tc("x"), tc("y")
	x.Next = y
	spliceChild(b, x)
	tcompareIDs(t, childIDs(parent), []string{"a", "x", "y", "c"})
	if x.Parent != parent || y.Parent != parent {
		t.Fatalf("spliced nodes should have their parent updated")
	}
	if b.Parent != nil || b.Next != nil {
		t.Fatalf("old child should be detached after splice")
	}

	// Replace the first child.
	z := tc("z")
	spliceChild(a, z)
	tcompareIDs(t, childIDs(parent), []string{"z", "x", "y", "c"})
}

func TestReachable(t *testing.T) {
	th := newTestThreader()

	a, b, c, d := tc("a"), tc("b"), tc("c"), tc("d")
	th.addChild(a, b)
	th.addChild(b, c)
	th.addChild(a, d)

	if !reachable(a, a) {
		t.Fatalf("node should be reachable from itself")
	}
	if !reachable(c, a) {
		t.Fatalf("grandchild should be reachable from the root")
	}
	if !reachable(d, a) {
		t.Fatalf("second child should be reachable from the root")
	}
	if reachable(a, c) {
		t.Fatalf("ancestor should not be reachable from a descendant")
	}
	if reachable(d, b) {
		t.Fatalf("nodes in sibling subtrees should not be reachable")
	}
}

func TestReachableDeep(t *testing.T) {
	// reachable must not recurse, deep chains are legal input.
	th := newTestThreader()
	root := tc("root")
	cur := root
	for i := 0; i < 200000; i++ {
		n := &Container[string]{}
		th.addChild(cur, n)
		cur = n
	}
	if !reachable(cur, root) {
		t.Fatalf("deep descendant should be reachable")
	}
	if reachable(root, cur) {
		t.Fatalf("root should not be reachable from leaf")
	}
}
