package message

import (
	"bytes"
	"mime"
	"strings"
)

// ParseHeaderFields parses only the header fields in "fields" (lower-case
// names) from the complete header section "header", returning a map from
// lower-case field name to the raw values in order of occurrence, with
// continuation lines unfolded. Other fields are skipped without parsing.
// Fields with a malformed name (whitespace before the colon, or no colon at
// all) are ignored.
func ParseHeaderFields(header []byte, fields []string) map[string][]string {
	want := func(k []byte) (string, bool) {
		for _, f := range fields {
			if len(k) == len(f) && bytes.EqualFold(k, []byte(f)) {
				return f, true
			}
		}
		return "", false
	}

	r := map[string][]string{}
	var curname string
	var curval []byte
	flush := func() {
		if curname != "" {
			r[curname] = append(r[curname], strings.TrimSpace(string(curval)))
		}
		curname = ""
		curval = nil
	}

	for len(header) > 0 {
		i := bytes.IndexByte(header, '\n')
		var line []byte
		if i < 0 {
			line = header
			header = nil
		} else {
			line = header[:i]
			header = header[i+1:]
		}
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			// End of header section.
			break
		}

		if line[0] == ' ' || line[0] == '\t' {
			// Continuation.
			if curname != "" {
				curval = append(curval, ' ')
				curval = append(curval, bytes.TrimLeft(line, " \t")...)
			}
			continue
		}

		flush()

		i = bytes.IndexByte(line, ':')
		if i <= 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			continue
		}
		if name, ok := want(line[:i]); ok {
			curname = name
			curval = append(curval, bytes.TrimLeft(line[i+1:], " \t")...)
		}
	}
	flush()
	return r
}

// DecodeSubject decodes RFC 2047 encoded-words in a subject header value. On
// malformed input the raw value is returned.
func DecodeSubject(s string) string {
	var dec mime.WordDecoder
	t, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return t
}
