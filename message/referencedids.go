package message

import (
	"strings"
)

// ReferencedIDs returns the Message-IDs referenced from the References
// header(s), in thread-canonical form like MessageIDCanonical. If References
// yields nothing, the first id found in the In-Reply-To header(s) is used
// instead. Empty and truncated entries are dropped.
func ReferencedIDs(references []string, inReplyTo []string) []string {
	var ids []string
	for _, v := range references {
		ids = appendMessageIDs(ids, v)
	}
	if len(ids) > 0 {
		return ids
	}
	// In-Reply-To is a fallback only, and often contains free-form text next to
	// the id, so take just one.
	for _, v := range inReplyTo {
		if l := appendMessageIDs(nil, v); len(l) > 0 {
			return l[:1]
		}
	}
	return nil
}

// appendMessageIDs scans a header value for <...> entries and appends their
// canonical ids to dst. Anything outside angle brackets (phrases, comments) is
// ignored. An opening bracket inside an entry means the previous entry was
// truncated, e.g. wrapped mid-id by an MUA and recombined badly, and starts a
// fresh entry. Whitespace inside an entry is folding from wrapped References
// lines and is dropped.
func appendMessageIDs(dst []string, value string) []string {
	var entry []byte
	open := false
	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case c == '<':
			entry = entry[:0]
			open = true
		case !open:
			// Between entries.
		case c == '>':
			if id := strings.ToLower(string(entry)); id != "" {
				dst = append(dst, canonicalRef(id))
			}
			entry = entry[:0]
			open = false
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			// Folding whitespace inside the id.
		default:
			entry = append(entry, c)
		}
	}
	return dst
}

// canonicalRef removes unneeded quoting from the localpart of an id that has
// the localpart "@" domain form, like MessageIDCanonical. Other ids are kept
// as they are.
func canonicalRef(id string) string {
	localpart, domain, found := strings.Cut(id, "@")
	if found && localpart != "" && domain != "" && !strings.Contains(domain, "@") {
		if unquoted, ok := unquoteLocalpart(localpart); ok {
			return unquoted + "@" + domain
		}
	}
	return id
}
