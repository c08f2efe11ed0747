// Package webthread exposes the threading engine as a sherpa HTTP API.
package webthread

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/mjl-/sherpa"
	"github.com/mjl-/sherpadoc"
	"github.com/mjl-/sherpaprom"

	"github.com/mjl-/mthread/message"
	"github.com/mjl-/mthread/mlog"
	"github.com/mjl-/mthread/mthreadvar"
	"github.com/mjl-/mthread/thread"
)

var xlog = mlog.New("webthread")

//go:embed api.json
var apiJSON []byte

var apiDoc = mustParseAPI("threads", apiJSON)

func mustParseAPI(api string, buf []byte) (doc sherpadoc.Section) {
	err := json.Unmarshal(buf, &doc)
	if err != nil {
		xlog.Fatalx("parsing api docs", err, mlog.Field("api", api))
	}
	return doc
}

// Handler returns a sherpa handler serving the Threads API under path, with
// call metrics registered with prometheus.
func Handler(path string) (http.Handler, error) {
	collector, err := sherpaprom.NewCollector("mthread", nil)
	if err != nil {
		return nil, err
	}
	return sherpa.NewHandler(path, mthreadvar.Version, Threads{}, &apiDoc, &sherpa.HandlerOpts{Collector: collector, AdjustFunctionNames: "none"})
}

// APIMessage is a message to thread, as submitted in a request.
type APIMessage struct {
	ID         string   // Message-ID, without <>.
	References []string // Ancestor Message-IDs, oldest first.
	Subject    string
}

// ThreadNode is a node of the built conversation forest. MessageID is empty
// for placeholder nodes.
type ThreadNode struct {
	MessageID string
	Subject   string
	Children  []ThreadNode
}

// Threads exports the threading API. All methods are exported under path
// "/api/".
type Threads struct{}

// Version returns the running version.
func (Threads) Version(ctx context.Context) string {
	return mthreadvar.Version
}

// Thread builds the conversation forest for messages and returns it as a
// tree, children of the virtual root at the top level.
func (Threads) Thread(ctx context.Context, messages []APIMessage, compact bool) []ThreadNode {
	log := xlog.WithContext(ctx)

	infos := make([]*thread.MessageInfo[int], 0, len(messages))
	for i := range messages {
		m := messages[i]
		infos = append(infos, &thread.MessageInfo[int]{ID: m.ID, References: m.References, Subject: m.Subject, Payload: i})
	}

	root := thread.Thread(log, message.StripSubject, infos, compact)

	var render func(c *thread.Container[int]) ThreadNode
	render = func(c *thread.Container[int]) ThreadNode {
		var n ThreadNode
		if c.Message != nil {
			n.MessageID = messages[c.Message.Payload].ID
			n.Subject = messages[c.Message.Payload].Subject
		}
		for k := c.Child; k != nil; k = k.Next {
			n.Children = append(n.Children, render(k))
		}
		return n
	}

	var l []ThreadNode
	for c := root.Child; c != nil; c = c.Next {
		l = append(l, render(c))
	}
	return l
}
