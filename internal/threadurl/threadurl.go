// Package threadurl parses Discord deep links into thread identifiers.
package threadurl

import (
	"regexp"
	"strings"
)

// Scheme and host are case-insensitive.
var linkPattern = regexp.MustCompile(
	`^(?i:https?://(?:(?:www|ptb|canary)\.)?discord(?:app)?\.com)/channels/(\d+)/(\d+)(?:/(\d+))?/?$`,
)

// Target is the result of parsing a link. MessageID is set only for
// three-segment links, where it is the alternate thread candidate.
type Target struct {
	GuildID   string
	ThreadID  string
	MessageID string
}

// Candidates returns the thread IDs to try, primary first.
func (t Target) Candidates() []string {
	if t.MessageID == "" || t.MessageID == t.ThreadID {
		return []string{t.ThreadID}
	}
	return []string{t.ThreadID, t.MessageID}
}

// Extract parses raw. ok is false for anything that is not a channel link.
func Extract(raw string) (target Target, ok bool) {
	link := strings.TrimSpace(raw)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}

	m := linkPattern.FindStringSubmatch(link)
	if m == nil {
		return Target{}, false
	}

	return Target{
		GuildID:   m[1],
		ThreadID:  m[2],
		MessageID: m[3],
	}, true
}

// IsLink reports whether text contains nothing but a channel link.
func IsLink(text string) bool {
	_, ok := Extract(text)
	return ok
}
