package threaddb

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mjl-/mthread/mlog"
)

var ctxbg = context.Background()

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func TestRethread(t *testing.T) {
	log := mlog.New("threaddb")
	p := filepath.Join(t.TempDir(), "thread.db")
	db, err := Open(ctxbg, log, p)
	tcheck(t, err, "open database")
	defer func() {
		err := db.Close()
		tcheck(t, err, "closing database")
	}()

	m0 := &Msg{MessageID: "m0@localhost", Subject: "test1"}
	m1 := &Msg{MessageID: "m1@localhost", References: []string{"<m0@localhost>"}, Subject: "Re: test1"}
	m2 := &Msg{MessageID: "m2@localhost", References: []string{"<m0@localhost> <m1@localhost>"}, Subject: "Re: test1"}
	m3 := &Msg{MessageID: "m3@localhost", InReplyTo: []string{"<m1@localhost>"}, Subject: "Re: test1"}
	// Parent not in the database, link through a missing ancestor.
	m4 := &Msg{MessageID: "m4@localhost", References: []string{"<m0@localhost> <gone@localhost>"}, Subject: "Re: test1"}
	// Separate thread, subject-only reply.
	m5 := &Msg{MessageID: "m5@localhost", Subject: "other"}
	m6 := &Msg{MessageID: "m6@localhost", Subject: "Re: other"}
	// No message-id at all.
	m7 := &Msg{Subject: "loner"}

	err = db.Add(ctxbg, m0, m1, m2, m3, m4, m5, m6, m7)
	tcheck(t, err, "add messages")
	if m0.ID == 0 || m7.ID == 0 {
		t.Fatalf("insert should have assigned ids")
	}

	n, err := db.Rethread(ctxbg, true)
	tcheck(t, err, "rethread")
	if n != 8 {
		t.Fatalf("rethreaded %d messages, expected 8", n)
	}

	check := func(id int64, expThreadID int64, expParentIDs []int64, expMissingLink bool) {
		t.Helper()
		m := Msg{ID: id}
		err := db.db.Get(ctxbg, &m)
		tcheck(t, err, "get message")
		if m.ThreadID != expThreadID || !reflect.DeepEqual(m.ThreadParentIDs, expParentIDs) || m.ThreadMissingLink != expMissingLink {
			t.Fatalf("got thread id %d, parent ids %v, missing link %v, expected %d %v %v", m.ThreadID, m.ThreadParentIDs, m.ThreadMissingLink, expThreadID, expParentIDs, expMissingLink)
		}
	}

	check(m0.ID, m0.ID, nil, false)
	check(m1.ID, m0.ID, []int64{m0.ID}, false)
	check(m2.ID, m0.ID, []int64{m1.ID, m0.ID}, false)
	check(m3.ID, m0.ID, []int64{m1.ID, m0.ID}, false)
	// The missing ancestor was pruned, m4 hangs under m0 directly.
	check(m4.ID, m0.ID, []int64{m0.ID}, false)
	check(m5.ID, m5.ID, nil, false)
	check(m6.ID, m5.ID, []int64{m5.ID}, false)
	check(m7.ID, m7.ID, nil, false)

	// Thread and roots lookups.
	l, err := db.Thread(ctxbg, m0.ID)
	tcheck(t, err, "list thread")
	if len(l) != 5 {
		t.Fatalf("got %d messages in thread, expected 5", len(l))
	}
	roots, err := db.Roots(ctxbg)
	tcheck(t, err, "list roots")
	if len(roots) != 3 {
		t.Fatalf("got %d thread roots, expected 3", len(roots))
	}

	// Rethreading again gives the same assignments.
	n, err = db.Rethread(ctxbg, true)
	tcheck(t, err, "rethread again")
	if n != 8 {
		t.Fatalf("rethreaded %d messages, expected 8", n)
	}
	check(m2.ID, m0.ID, []int64{m1.ID, m0.ID}, false)
}

func TestRethreadEmpty(t *testing.T) {
	log := mlog.New("threaddb")
	p := filepath.Join(t.TempDir(), "thread.db")
	db, err := Open(ctxbg, log, p)
	tcheck(t, err, "open database")
	defer db.Close()

	n, err := db.Rethread(ctxbg, true)
	tcheck(t, err, "rethread empty database")
	if n != 0 {
		t.Fatalf("rethreaded %d messages in empty database, expected 0", n)
	}
}
