// Command mthread threads messages into conversation trees.
//
// It reads mbox files and prints the resulting forest, keeps a message
// database with persistent thread assignment, and serves an HTTP API for
// threading on demand.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	golog "log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mjl-/sconf"

	"github.com/mjl-/mthread/config"
	"github.com/mjl-/mthread/message"
	"github.com/mjl-/mthread/mlog"
	"github.com/mjl-/mthread/mthreadvar"
	"github.com/mjl-/mthread/thread"
	"github.com/mjl-/mthread/threaddb"
	"github.com/mjl-/mthread/webthread"
)

var xlog = mlog.New("main")

var configPath string

var commands = []struct {
	cmd string
	fn  func(c *cmd)
}{
	{"thread", cmdThread},
	{"import", cmdImport},
	{"rethread", cmdRethread},
	{"serve", cmdServe},
	{"config describe", cmdConfigDescribe},
	{"version", cmdVersion},
}

type cmd struct {
	words []string
	fn    func(c *cmd)

	// Set before calling command.
	flag     *flag.FlagSet
	flagArgs []string

	// Set by invoked command.
	params string // Arguments to command.
	help   string // Additional explanation. First line is synopsis.
	args   []string

	log *mlog.Log
}

func (c *cmd) Parse() []string {
	c.flag.Usage = c.Usage
	c.flag.Parse(c.flagArgs)
	c.args = c.flag.Args()
	return c.args
}

func (c *cmd) Usage() {
	cs := "mthread " + strings.Join(c.words, " ")
	fmt.Fprintf(os.Stderr, "usage: %s %s\n", cs, c.params)
	c.flag.SetOutput(os.Stderr)
	c.flag.PrintDefaults()
	if c.help != "" {
		fmt.Fprint(os.Stderr, "\n"+c.help+"\n")
	}
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mthread [-config mthread.conf] command ...")
	for _, c := range commands {
		fmt.Fprintln(os.Stderr, "       mthread "+c.cmd)
	}
	os.Exit(2)
}

func main() {
	flag.StringVar(&configPath, "config", "mthread.conf", "path to configuration file")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	// Match the longest command prefix.
	var match *cmd
	for _, xc := range commands {
		words := strings.Split(xc.cmd, " ")
		if len(args) < len(words) {
			continue
		}
		ok := true
		for i, w := range words {
			if args[i] != w {
				ok = false
				break
			}
		}
		if ok && (match == nil || len(words) > len(match.words)) {
			match = &cmd{words: words, fn: xc.fn, flagArgs: args[len(words):]}
		}
	}
	if match == nil {
		usage()
	}
	match.flag = flag.NewFlagSet("mthread "+strings.Join(match.words, " "), flag.ExitOnError)
	match.log = xlog
	match.fn(match)
}

// loadConfig parses the configuration file and applies the log levels. A
// missing configuration file is not an error, defaults apply.
func loadConfig() config.Config {
	var cfg config.Config
	err := sconf.ParseFile(configPath, &cfg)
	if err != nil && !os.IsNotExist(err) {
		xlog.Fatalx("parsing config file", err, mlog.Field("path", configPath))
	}
	cfg.Defaults()

	level, ok := mlog.Levels[cfg.LogLevel]
	if !ok {
		xlog.Fatal("unknown log level", mlog.Field("loglevel", cfg.LogLevel))
	}
	levels := map[string]mlog.Level{"": level}
	for pkg, s := range cfg.PackageLogLevels {
		l, ok := mlog.Levels[s]
		if !ok {
			xlog.Fatal("unknown log level", mlog.Field("loglevel", s), mlog.Field("pkg", pkg))
		}
		levels[pkg] = l
	}
	mlog.SetConfig(levels)
	return cfg
}

func cmdVersion(c *cmd) {
	c.help = "Prints the version of this mthread binary."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	fmt.Println(mthreadvar.Version)
}

func cmdConfigDescribe(c *cmd) {
	c.help = "Prints an annotated example configuration file."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	var cfg config.Config
	cfg.Defaults()
	err := sconf.Describe(os.Stdout, cfg)
	if err != nil {
		c.log.Fatalx("describing config", err)
	}
}

// mboxMsg is one message from an mbox file, with the fields threading needs.
type mboxMsg struct {
	messageID  string   // Canonical form, empty if absent or unusable.
	references []string // Raw References header values.
	inReplyTo  []string // Raw In-Reply-To header values.
	subject    string
}

// readMbox reads all messages from an mbox file.
func readMbox(log *mlog.Log, path string) []mboxMsg {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalx("opening mbox file", err, mlog.Field("path", path))
	}
	defer func() {
		err := f.Close()
		log.Check(err, "closing mbox file")
	}()

	fields := []string{"message-id", "references", "in-reply-to", "subject"}

	var msgs []mboxMsg
	mr := newMboxReader(log, f)
	for {
		buf, pos, err := mr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalx("reading mbox file", err, mlog.Field("pos", pos))
		}
		h := message.ParseHeaderFields(buf, fields)

		var id string
		if l := h["message-id"]; len(l) > 0 {
			s, _, err := message.MessageIDCanonical(l[0])
			if err != nil {
				log.Debugx("parsing message-id, skipping", err, mlog.Field("pos", pos))
			}
			id = s
		}

		var subject string
		if l := h["subject"]; len(l) > 0 {
			subject = message.DecodeSubject(l[0])
		}

		msgs = append(msgs, mboxMsg{
			messageID:  id,
			references: h["references"],
			inReplyTo:  h["in-reply-to"],
			subject:    subject,
		})
	}
	return msgs
}

func cmdThread(c *cmd) {
	var nocompact, asJSON bool
	c.flag.BoolVar(&nocompact, "nocompact", false, "keep empty containers in the tree")
	c.flag.BoolVar(&asJSON, "json", false, "print the forest as JSON instead of an indented tree")
	c.params = "[-nocompact] [-json] file.mbox"
	c.help = "Reads an mbox file, threads its messages and prints the conversation forest."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	loadConfig()

	msgs := readMbox(c.log, args[0])
	infos := make([]*thread.MessageInfo[int], 0, len(msgs))
	for i, m := range msgs {
		id := m.messageID
		if id == "" {
			id = fmt.Sprintf("missing-message-id-%d", i)
		}
		infos = append(infos, &thread.MessageInfo[int]{
			ID:         id,
			References: message.ReferencedIDs(m.references, m.inReplyTo),
			Subject:    m.subject,
			Payload:    i,
		})
	}
	root := thread.Thread(c.log, message.StripSubject, infos, !nocompact)

	if asJSON {
		type node struct {
			MessageID string
			Subject   string
			Children  []node `json:",omitempty"`
		}
		var render func(c *thread.Container[int]) node
		render = func(c *thread.Container[int]) node {
			var n node
			if c.Message != nil {
				n.MessageID = c.Message.ID
				n.Subject = c.Message.Subject
			}
			for k := c.Child; k != nil; k = k.Next {
				n.Children = append(n.Children, render(k))
			}
			return n
		}
		var l []node
		for k := root.Child; k != nil; k = k.Next {
			l = append(l, render(k))
		}
		err := json.NewEncoder(os.Stdout).Encode(l)
		if err != nil {
			c.log.Fatalx("writing json", err)
		}
		return
	}

	var printNode func(c *thread.Container[int], indent string)
	printNode = func(c *thread.Container[int], indent string) {
		label := "(missing message)"
		if c.Message != nil {
			label = fmt.Sprintf("%s: %s", c.Message.ID, c.Message.Subject)
		}
		fmt.Println(indent + label)
		for k := c.Child; k != nil; k = k.Next {
			printNode(k, indent+"  ")
		}
	}
	for k := root.Child; k != nil; k = k.Next {
		printNode(k, "")
	}
}

func cmdImport(c *cmd) {
	c.params = "file.mbox"
	c.help = "Reads an mbox file into the message database and assigns threads."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	cfg := loadConfig()

	ctx := context.Background()
	db, err := threaddb.Open(ctx, c.log, filepath.Join(cfg.DataDir, "thread.db"))
	if err != nil {
		c.log.Fatalx("opening message database", err)
	}
	defer func() {
		err := db.Close()
		c.log.Check(err, "closing message database")
	}()

	mmsgs := readMbox(c.log, args[0])
	msgs := make([]*threaddb.Msg, 0, len(mmsgs))
	for _, m := range mmsgs {
		msgs = append(msgs, &threaddb.Msg{
			MessageID:  m.messageID,
			References: m.references,
			InReplyTo:  m.inReplyTo,
			Subject:    m.subject,
		})
	}
	if err := db.Add(ctx, msgs...); err != nil {
		c.log.Fatalx("adding messages", err)
	}
	n, err := db.Rethread(ctx, cfg.Compact)
	if err != nil {
		c.log.Fatalx("assigning threads", err)
	}
	fmt.Printf("imported %d messages, %d threaded\n", len(msgs), n)
}

func cmdRethread(c *cmd) {
	c.params = ""
	c.help = "Reassigns threads for all messages in the message database."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cfg := loadConfig()

	ctx := context.Background()
	db, err := threaddb.Open(ctx, c.log, filepath.Join(cfg.DataDir, "thread.db"))
	if err != nil {
		c.log.Fatalx("opening message database", err)
	}
	defer func() {
		err := db.Close()
		c.log.Check(err, "closing message database")
	}()

	n, err := db.Rethread(ctx, cfg.Compact)
	if err != nil {
		c.log.Fatalx("assigning threads", err)
	}
	fmt.Printf("threaded %d messages\n", n)
}

func cmdServe(c *cmd) {
	c.params = ""
	c.help = "Serves the threading HTTP API under /api/ and Prometheus metrics under /metrics."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	cfg := loadConfig()

	apiHandler, err := webthread.Handler("/api/")
	if err != nil {
		c.log.Fatalx("making api handler", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:     cfg.Address,
		Handler:  mux,
		ErrorLog: golog.New(mlog.ErrWriter(c.log, mlog.LevelInfo, "http error"), "", 0),
	}
	c.log.Print("serving threading api", mlog.Field("addr", cfg.Address), mlog.Field("version", mthreadvar.Version))
	err = srv.ListenAndServe()
	c.log.Fatalx("serve", err)
}
