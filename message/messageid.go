// Package message provides the boundary helpers around the threading engine:
// Message-ID canonicalization, References/In-Reply-To extraction, subject
// reply-marker stripping, and parsing of the few header fields the tools need.
package message

import (
	"errors"
	"fmt"
	"strings"
)

var errBadMessageID = errors.New("not a message-id")

// MessageIDCanonical parses a Message-ID header value, returning a canonical
// value that is lower-cased, without <>, and without unneeded quoting, for
// matching against References/In-Reply-To. If the message-id is invalid (e.g.
// no <>), an error is returned. If the message-id does not have the common
// localpart "@" domain form, the raw value between the angle brackets and the
// bool return parameter true is returned, such values are quite common in
// practice.
func MessageIDCanonical(s string) (string, bool, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", false, fmt.Errorf("%w: missing <", errBadMessageID)
	}
	s = s[1:]
	// Seen in practice: Message-ID: <valid@valid.example> (added by postmaster@some.example)
	// Doesn't seem valid, but we allow it.
	s, rem, have := strings.Cut(s, ">")
	if !have || rem != "" && !strings.HasPrefix(rem, " ") {
		return "", false, fmt.Errorf("%w: missing >", errBadMessageID)
	}
	s = strings.ToLower(s)
	if s == "" {
		return "", false, fmt.Errorf("%w: empty message-id", errBadMessageID)
	}
	localpart, domain, found := strings.Cut(s, "@")
	if !found || localpart == "" || domain == "" || strings.Contains(domain, "@") {
		// Common reasons: no @ at all, two @'s (perhaps intended as
		// time-separator), or an empty side. Keep the raw value.
		return s, true, nil
	}
	// Drop quoting around the localpart when the quoted text needs none.
	if unquoted, ok := unquoteLocalpart(localpart); ok {
		localpart = unquoted
	}
	return localpart + "@" + domain, false, nil
}

// unquoteLocalpart removes surrounding double quotes from a localpart if the
// content is plain dot-atom text that needs no quoting. The second return
// value is false when the value is left as is.
func unquoteLocalpart(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, false
	}
	t := s[1 : len(s)-1]
	if t == "" {
		return s, false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || strings.IndexByte("!#$%&'*+-/=?^_`{|}~.", c) >= 0 {
			continue
		}
		// Anything else (including upper case, which we lower-cased away already)
		// keeps the quoting.
		return s, false
	}
	if strings.HasPrefix(t, ".") || strings.HasSuffix(t, ".") || strings.Contains(t, "..") {
		return s, false
	}
	return t, true
}
