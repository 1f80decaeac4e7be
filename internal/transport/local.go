// Package transport provides an in-memory implementation of
// raftnode.Transport for unit and property tests, grounded on the teacher's
// pkg/rpc.LocalTransport: nodes register under an index, and fault
// injection (Disconnect/Connect/Partition/Heal) lets tests exercise the
// safety properties in spec §8 under a lossy or partitioned network.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raftmq/broker/internal/raftnode"
)

// handler is the subset of *raftnode.Engine the local transport calls into.
type handler interface {
	HandleRequestVote(args *raftnode.RequestVoteArgs) *raftnode.RequestVoteReply
	HandleAppendEntries(args *raftnode.AppendEntriesArgs) *raftnode.AppendEntriesReply
}

// Local is an in-process Transport: RPCs are direct method calls rather
// than network round-trips, with optional latency and link-level fault
// injection.
type Local struct {
	mu       sync.RWMutex
	nodes    map[int]handler
	disabled map[int]map[int]bool
	latency  time.Duration
}

// NewLocal returns an empty Local transport.
func NewLocal() *Local {
	return &Local{
		nodes:    make(map[int]handler),
		disabled: make(map[int]map[int]bool),
	}
}

// Register associates a node index with the engine that should receive RPCs
// addressed to it.
func (t *Local) Register(index int, h handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[index] = h
	if t.disabled[index] == nil {
		t.disabled[index] = make(map[int]bool)
	}
}

// SetLatency applies an artificial delay to every RPC, simulating a slow
// network for timeout-path tests.
func (t *Local) SetLatency(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latency = d
}

// Disconnect drops messages sent from -> to in one direction.
func (t *Local) Disconnect(from, to int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled[from] == nil {
		t.disabled[from] = make(map[int]bool)
	}
	t.disabled[from][to] = true
}

// Connect restores a previously disconnected direction.
func (t *Local) Connect(from, to int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled[from] != nil {
		delete(t.disabled[from], to)
	}
}

// Partition isolates node from every other registered node, both ways.
func (t *Local) Partition(node int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.nodes {
		if id == node {
			continue
		}
		if t.disabled[node] == nil {
			t.disabled[node] = make(map[int]bool)
		}
		if t.disabled[id] == nil {
			t.disabled[id] = make(map[int]bool)
		}
		t.disabled[node][id] = true
		t.disabled[id][node] = true
	}
}

// Heal restores every connection to and from node.
func (t *Local) Heal(node int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled[node] = make(map[int]bool)
	for id := range t.nodes {
		if t.disabled[id] != nil {
			delete(t.disabled[id], node)
		}
	}
}

// HealAll clears every fault injected so far.
func (t *Local) HealAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = make(map[int]map[int]bool)
}

func (t *Local) connected(from, to int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.disabled[from] != nil && t.disabled[from][to] {
		return false
	}
	return true
}

func (t *Local) wait(ctx context.Context) error {
	t.mu.RLock()
	d := t.latency
	t.mu.RUnlock()
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestVote implements raftnode.Transport.
func (t *Local) RequestVote(ctx context.Context, peer int, args *raftnode.RequestVoteArgs) (*raftnode.RequestVoteReply, error) {
	if !t.connected(args.CandidateID, peer) {
		return nil, fmt.Errorf("transport: %d unreachable from %d", peer, args.CandidateID)
	}
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	t.mu.RLock()
	h, ok := t.nodes[peer]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: unknown peer %d", peer)
	}
	return h.HandleRequestVote(args), nil
}

// AppendEntries implements raftnode.Transport.
func (t *Local) AppendEntries(ctx context.Context, peer int, args *raftnode.AppendEntriesArgs) (*raftnode.AppendEntriesReply, error) {
	if !t.connected(args.LeaderID, peer) {
		return nil, fmt.Errorf("transport: %d unreachable from %d", peer, args.LeaderID)
	}
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	t.mu.RLock()
	h, ok := t.nodes[peer]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: unknown peer %d", peer)
	}
	return h.HandleAppendEntries(args), nil
}
