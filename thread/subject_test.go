package thread

import (
	"testing"

	"github.com/mjl-/mthread/message"
)

func newSubjectThreader() *threader[string] {
	return &threader[string]{log: tlog, strip: message.StripSubject}
}

func TestExtractSubject(t *testing.T) {
	th := newSubjectThreader()

	a := tc("a")
	a.Message.Subject = "Re: Hello"
	if s := th.extractSubject(a, false); s != "Re: Hello" {
		t.Fatalf("got %q, expected raw subject", s)
	}
	if s := th.extractSubject(a, true); s != "Hello" {
		t.Fatalf("got %q, expected stripped subject", s)
	}

	// A placeholder takes the first subject among its descendants: immediate
	// children first, then deeper.
	e := tc("")
	e2 := tc("")
	b := tc("b")
	b.Message.Subject = "deeper"
	c := tc("c")
	c.Message.Subject = "sibling"
	th.addChild(e, e2)
	th.addChild(e2, b)
	th.addChild(e, c)
	if s := th.extractSubject(e, false); s != "sibling" {
		t.Fatalf("got %q, expected subject of first message-carrying immediate child", s)
	}

	removeChild(c, false)
	if s := th.extractSubject(e, false); s != "deeper" {
		t.Fatalf("got %q, expected subject found deeper in the tree", s)
	}

	if s := th.extractSubject(tc(""), false); s != "" {
		t.Fatalf("got %q, expected empty subject for childless placeholder", s)
	}
}

func TestFindChildSubjectDeep(t *testing.T) {
	// The child subject search must not recurse, deep trees are legal.
	th := newSubjectThreader()
	top := tc("")
	cur := top
	for i := 0; i < 100000; i++ {
		n := tc("")
		th.addChild(cur, n)
		cur = n
	}
	deep := tc("deep")
	deep.Message.Subject = "found"
	th.addChild(cur, deep)

	if s := findChildSubject(top); s != "found" {
		t.Fatalf("got %q, expected subject from deep descendant", s)
	}
}

func TestGroupEmptyAbsorbsNonEmpty(t *testing.T) {
	th := newSubjectThreader()

	// An empty root and a non-empty root with the same subject: the non-empty
	// becomes a child of the empty.
	root := &Container[string]{}
	e := tc("")
	a := tc("a")
	a.Message.Subject = "topic"
	th.addChild(e, a)
	b := tc("b")
	b.Message.Subject = "Re: topic"
	th.addChild(root, e)
	th.addChild(root, b)

	th.groupRootBySubject(root)
	tcheckTree(t, root, "-(a b)")
	if b.Parent != e {
		t.Fatalf("non-empty root should have been reparented under the empty root")
	}
}

func TestGroupBothEmpty(t *testing.T) {
	th := newSubjectThreader()

	// Two empty roots with the same child subject merge into one.
	root := buildTree(t, "-(a) -(b)")
	root.Child.Child.Message.Subject = "topic"
	root.Child.Next.Child.Message.Subject = "Re: topic"

	th.groupRootBySubject(root)
	// The second root absorbs the children of the first and takes its place.
	tcheckTree(t, root, "-(b a)")
}

func TestGroupMisordered(t *testing.T) {
	th := newSubjectThreader()

	// Reply seen before the original: the original still ends up on top.
	root := buildTree(t, "a b")
	root.Child.Message.Subject = "Re: topic"
	root.Child.Next.Message.Subject = "topic"

	th.groupRootBySubject(root)
	tcheckTree(t, root, "b(a)")
}

func TestGroupDistinctSubjects(t *testing.T) {
	th := newSubjectThreader()

	root := buildTree(t, "a b c")
	root.Child.Message.Subject = "one"
	root.Child.Next.Message.Subject = "two"
	root.Child.Next.Next.Message.Subject = "three"

	th.groupRootBySubject(root)
	tcheckTree(t, root, "a b c")
}

func TestIsReply(t *testing.T) {
	th := newSubjectThreader()

	for s, exp := range map[string]bool{
		"Hello":              false,
		"Re: Hello":          true,
		"RE[5]: Hello":       true,
		"Re: Re[4]: Re: x":   true,
		"Fwd: Hello":         true,
		"Rethinking: a plan": false,
		"":                   false,
	} {
		if got := th.isReply(s); got != exp {
			t.Fatalf("isReply(%q): got %v, expected %v", s, got, exp)
		}
	}
}
