package logstore

import (
	"testing"

	"github.com/raftmq/broker/internal/command"
)

func TestEmptyLog(t *testing.T) {
	l := New()
	if l.Size() != 0 {
		t.Fatalf("expected empty log, got size %d", l.Size())
	}
	if l.LastIndex() != -1 {
		t.Fatalf("expected LastIndex -1, got %d", l.LastIndex())
	}
	if l.LastTerm() != -1 {
		t.Fatalf("expected LastTerm -1, got %d", l.LastTerm())
	}
	if l.CommittedIndex() != -1 || l.AppliedIndex() != -1 {
		t.Fatalf("expected both cursors at -1")
	}
}

func TestAppendAndEntryAt(t *testing.T) {
	l := New()
	idx := l.Append(Entry{Term: 1, Command: command.ListTopics()})
	if idx != 0 {
		t.Fatalf("expected first append at index 0, got %d", idx)
	}
	if l.LastIndex() != 0 || l.LastTerm() != 1 {
		t.Fatalf("unexpected cursor state after append")
	}
}

func TestTruncateFromDropsTail(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 2})

	l.TruncateFrom(1)
	if l.Size() != 1 {
		t.Fatalf("expected size 1 after truncating from index 1, got %d", l.Size())
	}

	l.TruncateFrom(5) // out of range, no-op
	if l.Size() != 1 {
		t.Fatalf("out-of-range TruncateFrom should be a no-op")
	}
}

func TestCommitIsMonotonicAndClamped(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 1})

	l.Commit(5) // beyond LastIndex, clamps to 1
	if l.CommittedIndex() != 1 {
		t.Fatalf("expected commit clamped to 1, got %d", l.CommittedIndex())
	}

	l.Commit(0) // attempt to regress, ignored
	if l.CommittedIndex() != 1 {
		t.Fatalf("commit must never regress, got %d", l.CommittedIndex())
	}
}

func TestApplyNextRespectsCommitBoundary(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1, Command: command.ListTopics()})
	l.Append(Entry{Term: 1, Command: command.Dequeue("x")})

	if _, _, ok := l.ApplyNext(); ok {
		t.Fatalf("nothing should be applicable before any commit")
	}

	l.Commit(0)
	idx, entry, ok := l.ApplyNext()
	if !ok || idx != 0 || entry.Command.Operation != command.OpListTopics {
		t.Fatalf("unexpected ApplyNext result: idx=%d entry=%+v ok=%v", idx, entry, ok)
	}

	if _, _, ok := l.ApplyNext(); ok {
		t.Fatalf("should not be able to apply past committedIndex")
	}

	l.Commit(1)
	idx, entry, ok = l.ApplyNext()
	if !ok || idx != 1 || entry.Command.Operation != command.OpDequeue {
		t.Fatalf("unexpected second ApplyNext result: idx=%d entry=%+v ok=%v", idx, entry, ok)
	}
}
