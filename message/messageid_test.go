package message

import (
	"testing"
)

func TestMessageIDCanonical(t *testing.T) {
	check := func(s, expID string, expRaw bool) {
		t.Helper()
		id, raw, err := MessageIDCanonical(s)
		if err != nil {
			t.Fatalf("canonical message-id for %q: %s", s, err)
		}
		if id != expID || raw != expRaw {
			t.Fatalf("canonical message-id for %q: got %q %v, expected %q %v", s, id, raw, expID, expRaw)
		}
	}
	checkErr := func(s string) {
		t.Helper()
		if _, _, err := MessageIDCanonical(s); err == nil {
			t.Fatalf("canonical message-id for %q: got no error", s)
		}
	}

	check("<a@x.example>", "a@x.example", false)
	check("<A@X.example>", "a@x.example", false)
	check(" <a@x.example> ", "a@x.example", false)
	check("<a@x.example> (added by postmaster)", "a@x.example", false)
	check(`<"a"@x.example>`, "a@x.example", false)
	check(`<"a b"@x.example>`, `"a b"@x.example`, false)
	check("<nodomain>", "nodomain", true)
	check("<a@b@c>", "a@b@c", true)
	check("<@x.example>", "@x.example", true)

	checkErr("a@x.example")
	checkErr("<a@x.example")
	checkErr("<>")
	checkErr("")
}
