package raftnode

import (
	"context"

	"github.com/raftmq/broker/internal/logstore"
)

// Role is the tagged three-case variant a node occupies (spec §4.3).
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// RequestVoteArgs is the RequestVote RPC request (spec §4.4.1).
type RequestVoteArgs struct {
	Term         int
	CandidateID  int
	LastLogIndex int
	LastLogTerm  int
}

// RequestVoteReply is the RequestVote RPC reply.
type RequestVoteReply struct {
	Term        int
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC request (spec §4.4.3). Entry is
// nil for a pure heartbeat, carrying at most one entry per RPC.
type AppendEntriesArgs struct {
	Term         int
	LeaderID     int
	PrevLogIndex int
	PrevLogTerm  int
	Entry        *logstore.Entry
	LeaderCommit int
}

// AppendEntriesReply is the AppendEntries RPC reply.
type AppendEntriesReply struct {
	Term    int
	Success bool
}

// Transport is the RPC Surface's client-side caller interface: it sends a
// request to the peer identified by index and waits (subject to ctx) for a
// reply. The concrete implementation (internal/httprpc for production,
// internal/transport for in-process tests) owns addressing and framing.
type Transport interface {
	RequestVote(ctx context.Context, peer int, args *RequestVoteArgs) (*RequestVoteReply, error)
	AppendEntries(ctx context.Context, peer int, args *AppendEntriesArgs) (*AppendEntriesReply, error)
}

// Status is the result of a /status query: role and term only, no log
// access (spec §4.5).
type Status struct {
	Role Role
	Term int
}
