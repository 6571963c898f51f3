package skills

import (
	"regexp"
	"strings"
)

// tagRe matches bracket-delimited command tags: [[NAME|arg1|arg2|...]].
// Arguments cannot contain '|' or ']'; the grammar defines no escaping.
var tagRe = regexp.MustCompile(`\[\[([A-Z][A-Z0-9_]*)((?:\|[^|\[\]]*)*)\]\]`)

// Invocation is one parsed command tag occurrence.
type Invocation struct {
	Tag  string
	Args []string
	Raw  string
}

// parseTag splits a raw match into tag name and arguments.
func parseTag(raw string) Invocation {
	m := tagRe.FindStringSubmatch(raw)
	inv := Invocation{Raw: raw}
	if m == nil {
		return inv
	}
	inv.Tag = m[1]
	if m[2] != "" {
		inv.Args = strings.Split(strings.TrimPrefix(m[2], "|"), "|")
	}
	return inv
}

// ReplaceTags runs fn over every tag in text in a single left-to-right pass
// and splices the results in place. Replacement output is never re-scanned,
// so a tag emitted by a handler cannot trigger recursive expansion.
func ReplaceTags(text string, fn func(Invocation) (string, bool)) string {
	return tagRe.ReplaceAllStringFunc(text, func(raw string) string {
		replacement, handled := fn(parseTag(raw))
		if !handled {
			return raw
		}
		return replacement
	})
}

// FindTags returns all tag invocations in order of appearance.
func FindTags(text string) []Invocation {
	matches := tagRe.FindAllString(text, -1)
	invs := make([]Invocation, 0, len(matches))
	for _, m := range matches {
		invs = append(invs, parseTag(m))
	}
	return invs
}
