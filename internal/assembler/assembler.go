// Package assembler implements the Record Assembler: it groups a
// Follower's line stream into records using an anchor regex plus a
// starvation timer, or treats every line as its own record when no
// anchor is configured.
package assembler

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/pkg/types"
)

// Assembler holds the one PartialRecord a source may have in flight.
// It is not safe for concurrent use; a Source Worker owns one
// exclusively.
type Assembler struct {
	log     *zap.SugaredLogger
	anchor  *regexp.Regexp // nil: single-line mode
	current *types.PartialRecord
}

// New creates an Assembler. A nil anchor selects single-line mode.
func New(anchor *regexp.Regexp, log *zap.SugaredLogger) *Assembler {
	return &Assembler{anchor: anchor, log: log}
}

// SetAnchor swaps the anchor regex live (it is one of the Source
// Worker's live-mutable fields). Swapping does not flush any record
// already in flight; a line arriving right after the swap is matched
// against the new anchor.
func (a *Assembler) SetAnchor(anchor *regexp.Regexp) {
	a.anchor = anchor
}

// Line feeds one raw line to the assembler. It returns a flushed
// record when the line completes one (a new anchor match ends the
// previous record), or nil if the line only extended an in-flight
// record.
func (a *Assembler) Line(line string) *types.PartialRecord {
	if a.anchor == nil {
		return &types.PartialRecord{FirstLine: line}
	}

	groups := a.anchor.FindStringSubmatch(line)
	switch {
	case groups != nil && a.current != nil:
		flushed := a.current
		a.current = &types.PartialRecord{FirstLine: line, Match: types.NewMatch(groups)}
		return flushed
	case groups != nil && a.current == nil:
		a.current = &types.PartialRecord{FirstLine: line, Match: types.NewMatch(groups)}
		return nil
	case groups == nil && a.current != nil:
		a.current.OtherLines = append(a.current.OtherLines, line)
		a.current.Starving = false
		return nil
	default: // no anchor match, no record open: orphan line
		a.log.Errorw("assembler: line matches no open record, dropping", "line", line)
		return nil
	}
}

// EOF reports a tick where the Follower yielded no line. It implements
// the two-tick starvation scheme: the first EOF after the last
// continuation line sets Starving; a second consecutive EOF flushes
// the record. Returns the flushed record, or nil.
func (a *Assembler) EOF() *types.PartialRecord {
	if a.current == nil {
		return nil
	}
	if a.current.Starving {
		flushed := a.current
		a.current = nil
		return flushed
	}
	a.current.Starving = true
	return nil
}

// Shutdown flushes any in-flight, non-empty record. A record counts as
// empty only when it has neither a first line nor continuation lines
// (see PartialRecord.Empty); such a record is discarded rather than
// emitted, while a record holding just its anchor line is flushed —
// see DESIGN.md for this Open Question's resolution.
func (a *Assembler) Shutdown() *types.PartialRecord {
	if a.current == nil || a.current.Empty() {
		a.current = nil
		return nil
	}
	flushed := a.current
	a.current = nil
	return flushed
}
