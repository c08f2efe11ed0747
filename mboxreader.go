package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mjl-/mthread/mlog"
)

// mboxReader parses messages from an mbox file, separated by "From " lines.
type mboxReader struct {
	path      string
	line      int
	r         *bufio.Reader
	prevempty bool
	nonfirst  bool
	eof       bool
	log       *mlog.Log
}

func newMboxReader(log *mlog.Log, f *os.File) *mboxReader {
	return &mboxReader{path: f.Name(), line: 1, r: bufio.NewReader(f), log: log}
}

func (mr *mboxReader) position() string {
	return fmt.Sprintf("%s:%d", mr.path, mr.line)
}

// Next returns the raw bytes of the next message, and the position in the
// file it started at. io.EOF when no messages remain.
func (mr *mboxReader) Next() ([]byte, string, error) {
	if mr.eof {
		return nil, "", io.EOF
	}

	from := []byte("From ")

	if !mr.nonfirst {
		// First read, we're at the beginning of the file.
		line, err := mr.r.ReadBytes('\n')
		if err == io.EOF {
			return nil, "", io.EOF
		}
		mr.line++

		if !bytes.HasPrefix(line, from) {
			return nil, mr.position(), fmt.Errorf(`first line does not start with "From "`)
		}
		mr.nonfirst = true
	}

	pos := mr.position()

	var buf []byte
	for {
		line, err := mr.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, mr.position(), fmt.Errorf("reading from mbox: %v", err)
		}

		if len(line) > 0 {
			mr.line++
			// Next "From " line indicates the start of the next message.
			if mr.prevempty && bytes.HasPrefix(line, from) {
				mr.prevempty = false
				break
			}

			// Unquote the mboxrd-style escaping of lines starting with "From ".
			if bytes.HasPrefix(line, []byte(">")) && bytes.HasPrefix(bytes.TrimLeft(line, ">"), from) {
				line = line[1:]
			}

			mr.prevempty = len(bytes.TrimRight(line, "\r\n")) == 0
			buf = append(buf, line...)
		}

		if err == io.EOF {
			mr.eof = true
			break
		}
	}

	if len(buf) == 0 {
		return nil, "", io.EOF
	}

	return buf, pos, nil
}
