// Package thread builds conversation trees from flat message collections,
// following Jamie Zawinski's message threading algorithm,
// http://www.jwz.org/doc/threading.html.
//
// Messages are containerized into a node graph, nodes are linked according to
// each message's References chain while preventing cycles, empty placeholder
// nodes are optionally pruned, and root-level subtrees with equal normalized
// subjects are merged. The result is a forest of conversation trees under a
// synthetic virtual root.
package thread

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mjl-/mthread/mlog"
)

var xlog = mlog.New("thread")

var (
	metricThread = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mthread_thread_duration_seconds",
			Help:    "Duration of thread calls.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10},
		},
	)
	metricCircular = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mthread_thread_circular_total",
			Help: "Number of circular sibling references detected and repaired.",
		},
	)
)

// Thread builds the conversation forest for messages and returns its virtual
// root: a container without message and without parent whose children are the
// thread roots. Every message occurs exactly once in the returned tree.
// Messages only known from References chains appear as empty containers, or
// are pruned when compact is set (childless empty containers are then removed
// and empty containers with children replaced by those children, except that
// an empty root with more than one child is kept in the root set).
//
// stripSubject removes reply markers from a subject for grouping root-level
// subtrees by subject; a message whose subject shrinks under stripSubject
// counts as a reply. Nil means no stripping and no reply detection, grouping
// then matches on whole subjects only.
//
// Thread performs no I/O and always succeeds. Input anomalies (Message-ID
// clashes, duplicate or cyclic References) are absorbed, diagnostics go to
// log, which may be nil.
func Thread[T any](log *mlog.Log, stripSubject func(string) string, messages []*MessageInfo[T], compact bool) *Container[T] {
	t0 := time.Now()
	defer func() {
		metricThread.Observe(float64(time.Since(t0)) / float64(time.Second))
	}()

	if log == nil {
		log = xlog
	}
	th := &threader[T]{log: log, strip: stripSubject}

	if len(messages) == 0 {
		return &Container[T]{}
	}

	// 1. Index messages, linking containers by References.
	x := th.indexMessages(messages)

	// 2. Find the root set.
	firstRoot := findRoot(x)

	log.Debug("threading: indexed",
		mlog.Field("initial", len(messages)),
		mlog.Field("index", countIndex(x, true)),
		mlog.Field("indexnonempty", countIndex(x, false)))

	// 3. The id table is no longer needed.
	x = nil

	fakeRoot := &Container[T]{}
	if firstRoot != nil {
		th.addChild(fakeRoot, firstRoot)
	}

	// 4. Prune empty containers.
	if compact {
		th.prune(fakeRoot)
		log.Debug("threading: after prune",
			mlog.Field("nodes", Count(fakeRoot, true)),
			mlog.Field("messages", Count(fakeRoot, false)))
	}

	// 5. Group the root set by subject.
	th.groupRootBySubject(fakeRoot)

	return fakeRoot
}
