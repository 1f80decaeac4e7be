package testutil

import (
	"fmt"
	"sync"

	"github.com/raftmq/broker/internal/command"
)

// CommittedEntry is one node's view of a committed log position, used to
// cross-check replicas for the Log Matching and State-Machine Safety
// properties (spec §8).
type CommittedEntry struct {
	Index   int
	Term    int
	Command command.Command
	NodeID  int
}

// Violation describes a single safety-property failure found by
// InvariantChecker.
type Violation struct {
	Type        string
	Description string
}

// InvariantChecker replays committed entries recorded from every node in a
// Cluster and checks them against the safety invariants named in spec §8:
// Election Safety is checked structurally by the engine (votedFor clearing
// and quorum requirement); this checker covers Log Matching, Monotonicity,
// and State-Machine Safety, grounded on the teacher's
// pkg/testing.InvariantChecker.
type InvariantChecker struct {
	mu         sync.Mutex
	byNode     map[int][]CommittedEntry
	violations []Violation
}

// NewInvariantChecker returns an empty checker.
func NewInvariantChecker() *InvariantChecker {
	return &InvariantChecker{byNode: make(map[int][]CommittedEntry)}
}

// RecordCommit appends one committed entry observed at nodeID.
func (ic *InvariantChecker) RecordCommit(nodeID, index, term int, cmd command.Command) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.byNode[nodeID] = append(ic.byNode[nodeID], CommittedEntry{
		Index: index, Term: term, Command: cmd, NodeID: nodeID,
	})
}

// Check runs every invariant and returns whether all passed, plus any
// violations found.
func (ic *InvariantChecker) Check() (bool, []Violation) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.violations = nil
	ic.checkLogMatching()
	ic.checkMonotonicCommit()
	ic.checkTermMonotonicity()

	return len(ic.violations) == 0, ic.violations
}

// checkLogMatching verifies that no two nodes ever committed a different
// (term, command id) pair at the same index.
func (ic *InvariantChecker) checkLogMatching() {
	byIndex := make(map[int]map[int]CommittedEntry)
	for nodeID, entries := range ic.byNode {
		for _, e := range entries {
			if byIndex[e.Index] == nil {
				byIndex[e.Index] = make(map[int]CommittedEntry)
			}
			byIndex[e.Index][nodeID] = e
		}
	}

	for index, byNode := range byIndex {
		var ref *CommittedEntry
		for nodeID, e := range byNode {
			if ref == nil {
				cp := e
				ref = &cp
				continue
			}
			if e.Term != ref.Term || e.Command.ID != ref.Command.ID {
				ic.violations = append(ic.violations, Violation{
					Type: "LOG_MATCHING_VIOLATION",
					Description: fmt.Sprintf(
						"index %d: node %d committed {term=%d id=%s}, node %d committed {term=%d id=%s}",
						index, ref.NodeID, ref.Term, ref.Command.ID, nodeID, e.Term, e.Command.ID),
				})
			}
		}
	}
}

// checkMonotonicCommit verifies each node's recorded commit indices are
// strictly increasing — a node must never re-observe or regress a commit.
func (ic *InvariantChecker) checkMonotonicCommit() {
	for nodeID, entries := range ic.byNode {
		last := -1
		for _, e := range entries {
			if e.Index <= last {
				ic.violations = append(ic.violations, Violation{
					Type:        "NON_MONOTONIC_COMMIT",
					Description: fmt.Sprintf("node %d committed index %d after index %d", nodeID, e.Index, last),
				})
			}
			last = e.Index
		}
	}
}

// checkTermMonotonicity verifies a node's committed entries never show the
// term decreasing as the index increases.
func (ic *InvariantChecker) checkTermMonotonicity() {
	for nodeID, entries := range ic.byNode {
		for i := 1; i < len(entries); i++ {
			prev, curr := entries[i-1], entries[i]
			if curr.Index > prev.Index && curr.Term < prev.Term {
				ic.violations = append(ic.violations, Violation{
					Type: "TERM_MONOTONICITY_VIOLATION",
					Description: fmt.Sprintf(
						"node %d: term %d at index %d, then term %d at index %d",
						nodeID, prev.Term, prev.Index, curr.Term, curr.Index),
				})
			}
		}
	}
}

// Clear resets all recorded entries and violations.
func (ic *InvariantChecker) Clear() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.byNode = make(map[int][]CommittedEntry)
	ic.violations = nil
}
