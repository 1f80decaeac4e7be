// Package logstore implements the replicated command log: an ordered,
// append-only sequence of entries with committed/applied cursors. It owns
// no concurrency control of its own — the engine's single mutex guards it,
// per the coarse-grained locking policy in spec §5.
package logstore

import "github.com/raftmq/broker/internal/command"

// Entry is an immutable (term, command) pair. Entries are identified by
// their 0-based index within the Log.
type Entry struct {
	Term    int
	Command command.Command
}

// Log is the ordered sequence of Entry plus the two monotonic cursors
// described in spec §3: committedIndex and appliedIndex.
type Log struct {
	entries   []Entry
	committed int // highest index known replicated on a majority, -1 if none
	applied   int // highest index applied to the state machine, -1 if none
}

// New returns an empty Log.
func New() *Log {
	return &Log{committed: -1, applied: -1}
}

// Size returns the number of entries in the log.
func (l *Log) Size() int { return len(l.entries) }

// LastIndex returns size-1, or -1 if the log is empty.
func (l *Log) LastIndex() int { return len(l.entries) - 1 }

// LastTerm returns the term of the last entry, or -1 if the log is empty.
func (l *Log) LastTerm() int {
	if len(l.entries) == 0 {
		return -1
	}
	return l.entries[len(l.entries)-1].Term
}

// EntryAt returns the entry at index i. The caller must ensure
// 0 <= i < Size().
func (l *Log) EntryAt(i int) Entry { return l.entries[i] }

// CommittedIndex returns the highest committed index, -1 if none.
func (l *Log) CommittedIndex() int { return l.committed }

// AppliedIndex returns the highest applied index, -1 if none.
func (l *Log) AppliedIndex() int { return l.applied }

// Append adds entry to the end of the log and returns its new index.
func (l *Log) Append(entry Entry) int {
	l.entries = append(l.entries, entry)
	return len(l.entries) - 1
}

// TruncateFrom drops all entries with index >= i. Callers must never drop
// a committed entry (Log Matching / State Safety, spec §3); this method
// does not itself enforce that invariant, mirroring the leader-trusts-
// consistency-check discipline the AppendEntries handler uses before
// calling it.
func (l *Log) TruncateFrom(i int) {
	if i < 0 || i >= len(l.entries) {
		return
	}
	l.entries = l.entries[:i]
}

// Commit advances committedIndex to min(upTo, size-1) if that is greater
// than the current value. Monotonic.
func (l *Log) Commit(upTo int) {
	max := l.LastIndex()
	if upTo > max {
		upTo = max
	}
	if upTo > l.committed {
		l.committed = upTo
	}
}

// ApplyNext increments appliedIndex and returns the entry at the new
// appliedIndex, if appliedIndex < committedIndex. Returns (0, Entry{}, false)
// when there is nothing left to apply.
func (l *Log) ApplyNext() (int, Entry, bool) {
	if l.applied >= l.committed {
		return 0, Entry{}, false
	}
	l.applied++
	return l.applied, l.entries[l.applied], true
}
