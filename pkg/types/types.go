// Package types holds the data shared across the tailing-and-shipping
// pipeline: per-source configuration, in-flight records and the
// messages handed off to the dispatcher.
package types

import "regexp"

// Facility is a syslog facility name, as it appears in a `*:source`
// section (e.g. "LOG_LOCAL0").
type Facility string

// Severity is a syslog severity name, as it appears in a `*:source`
// section (e.g. "LOG_WARNING").
type Severity string

// SourceConfig is an immutable snapshot of one source's settings.
// A running Worker swaps to a new SourceConfig atomically on reload;
// it never mutates one in place.
type SourceConfig struct {
	FilePath       string
	AnchorRegex    string
	Anchor         *regexp.Regexp // nil: single-line mode
	Template       interface{}    // arbitrary JSON value tree
	Tags           string
	TagsList       []string
	TagsDict       map[string]string
	SyslogFacility Facility
	SyslogSeverity Severity
	SyslogTag      string
	Encoding       string
}

// Match is the capture-group accessor the Renderer needs from an
// anchor match. It abstracts over regexp.Regexp.FindStringSubmatch so
// the renderer does not need to know whether a record was produced in
// single- or multi-line mode.
type Match struct {
	groups []string
}

// NewMatch wraps the raw capture groups from regexp.FindStringSubmatch
// (index 0 is the whole match).
func NewMatch(groups []string) *Match {
	if groups == nil {
		return nil
	}
	return &Match{groups: groups}
}

// Group returns capture group n, and whether it exists.
func (m *Match) Group(n int) (string, bool) {
	if m == nil || n < 0 || n >= len(m.groups) {
		return "", false
	}
	return m.groups[n], true
}

// PartialRecord is the in-flight multi-line record held by the
// Assembler.
type PartialRecord struct {
	FirstLine  string
	OtherLines []string
	Match      *Match // nil in single-line mode
	Starving   bool
}

// Empty reports whether the record carries no content at all, used to
// decide whether a shutdown flush should emit anything.
func (r *PartialRecord) Empty() bool {
	return r == nil || (r.FirstLine == "" && len(r.OtherLines) == 0)
}

// QueueMessage is the unit delivered to the Dispatcher: a snapshot of
// the source's syslog attributes at emission time plus the rendered
// payload.
type QueueMessage struct {
	Facility Facility
	Severity Severity
	Tag      string
	Payload  interface{}
	Source   string // file path, for diagnostics only
}
