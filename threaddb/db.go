// Package threaddb stores messages with their threading fields, assigning
// threads with the thread package over all stored messages at once.
package threaddb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mjl-/bstore"

	"github.com/mjl-/mthread/message"
	"github.com/mjl-/mthread/mlog"
	"github.com/mjl-/mthread/thread"
)

var (
	metricRethread = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mthread_threaddb_rethread_duration_seconds",
			Help:    "Duration of rethread operations over the whole database.",
			Buckets: []float64{0.01, 0.05, 0.100, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"result"},
	)
)

// Msg is a message as stored, with the threading fields the engine assigns.
type Msg struct {
	ID int64

	// Canonicalized Message-ID, see message.MessageIDCanonical. Can be empty,
	// messages without usable Message-ID get a synthetic id during rethreading.
	MessageID string `bstore:"index"`

	// Raw References and In-Reply-To header values, ancestor ids are extracted
	// during rethreading with message.ReferencedIDs.
	References []string
	InReplyTo  []string

	Subject  string
	Received time.Time `bstore:"default now"`

	// ID of the thread root message. Assigned by Rethread, 0 before that.
	ThreadID int64 `bstore:"index"`

	// IDs of ancestor messages, from closest parent to thread root. Only
	// messages present in the database, placeholder ancestors are skipped.
	ThreadParentIDs []int64

	// Whether an empty placeholder container (an ancestor not present in the
	// database, or a synthetic grouping parent) sits anywhere between this
	// message and the virtual root in the built tree.
	ThreadMissingLink bool
}

// DBTypes are the types stored in the database, exported for backups.
var DBTypes = []any{Msg{}}

// DB is a message database with thread assignment.
type DB struct {
	log *mlog.Log
	db  *bstore.DB
}

// Open opens or creates a message database at path. Parent directories are
// created as needed.
func Open(ctx context.Context, log *mlog.Log, path string) (*DB, error) {
	if log == nil {
		log = mlog.New("threaddb")
	}
	os.MkdirAll(filepath.Dir(path), 0770)
	db, err := bstore.Open(ctx, path, &bstore.Options{Timeout: 5 * time.Second, Perm: 0660}, DBTypes...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{log: log, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Add inserts messages, assigning their IDs.
func (d *DB) Add(ctx context.Context, msgs ...*Msg) error {
	return d.db.Write(ctx, func(tx *bstore.Tx) error {
		for _, m := range msgs {
			if err := tx.Insert(m); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
}

// Rethread builds the conversation forest over all stored messages and stores
// the resulting thread fields with each message: the record ID of the thread
// root as ThreadID, the stored ancestors as ThreadParentIDs, and whether a
// link in between is missing from the database. Returns the number of updated
// messages.
func (d *DB) Rethread(ctx context.Context, compact bool) (n int, rerr error) {
	t0 := time.Now()
	defer func() {
		result := "ok"
		if rerr != nil {
			result = "error"
		}
		metricRethread.WithLabelValues(result).Observe(float64(time.Since(t0)) / float64(time.Second))
	}()

	err := d.db.Write(ctx, func(tx *bstore.Tx) error {
		q := bstore.QueryTx[Msg](tx)
		q.SortAsc("ID")
		msgs, err := q.List()
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		byID := map[int64]*Msg{}
		infos := make([]*thread.MessageInfo[int64], 0, len(msgs))
		for i := range msgs {
			m := &msgs[i]
			byID[m.ID] = m

			id := m.MessageID
			if id == "" {
				// No usable Message-ID, the message can still be an ancestor through a
				// per-record synthetic id.
				id = fmt.Sprintf("missing-message-id-%d", m.ID)
			}
			infos = append(infos, &thread.MessageInfo[int64]{
				ID:         id,
				References: message.ReferencedIDs(m.References, m.InReplyTo),
				Subject:    m.Subject,
				Payload:    m.ID,
			})
		}

		root := thread.Thread(d.log, message.StripSubject, infos, compact)

		for sub := root.Child; sub != nil; sub = sub.Next {
			threadID := subtreeThreadID(sub, byID)
			thread.Walk(sub, func(c *thread.Container[int64]) thread.WalkAction {
				if c.Message == nil {
					return thread.WalkContinue
				}
				m := byID[c.Message.Payload]
				m.ThreadID = threadID

				var parentIDs []int64
				missing := false
				for p := c.Parent; p != nil && p != root; p = p.Parent {
					if p.Message == nil {
						missing = true
						continue
					}
					parentIDs = append(parentIDs, byID[p.Message.Payload].ID)
				}
				m.ThreadParentIDs = parentIDs
				m.ThreadMissingLink = missing

				if err := tx.Update(m); err != nil {
					rerr = fmt.Errorf("update message %d: %w", m.ID, err)
					return thread.WalkHalt
				}
				n++
				return thread.WalkContinue
			})
			if rerr != nil {
				return rerr
			}
		}

		d.log.Debug("rethreaded messages", mlog.Field("count", n), mlog.Field("compact", compact))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// subtreeThreadID returns the record ID the messages of a thread share: the
// root message's, or for a placeholder root the first message found below it.
func subtreeThreadID(sub *thread.Container[int64], byID map[int64]*Msg) int64 {
	var id int64
	thread.Walk(sub, func(c *thread.Container[int64]) thread.WalkAction {
		if c.Message != nil {
			id = byID[c.Message.Payload].ID
			return thread.WalkHalt
		}
		return thread.WalkContinue
	})
	return id
}

// Thread returns the messages of one thread, in ID order.
func (d *DB) Thread(ctx context.Context, threadID int64) ([]Msg, error) {
	q := bstore.QueryDB[Msg](ctx, d.db)
	q.FilterNonzero(Msg{ThreadID: threadID})
	q.SortAsc("ID")
	return q.List()
}

// Roots returns the messages that head a thread.
func (d *DB) Roots(ctx context.Context) ([]Msg, error) {
	var l []Msg
	err := bstore.QueryDB[Msg](ctx, d.db).ForEach(func(m Msg) error {
		if m.ThreadID == m.ID {
			l = append(l, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing thread roots: %w", err)
	}
	return l, nil
}
