// Package httprpc is the peer RPC Surface: JSON-over-HTTP implementations
// of RequestVote and AppendEntries, both server-side (wired into a node's
// HTTP mux) and client-side (raftnode.Transport, dialing peer addresses
// over HTTP). Grounded in the teacher's pkg/api/http.go style — a plain
// net/http handler decoding/encoding encoding/json bodies — generalized
// from the teacher's single client-facing surface to also cover the peer
// RPCs spec §6.2 requires over JSON rather than the teacher's gRPC stack.
package httprpc

import (
	"github.com/raftmq/broker/internal/command"
	"github.com/raftmq/broker/internal/logstore"
	"github.com/raftmq/broker/internal/raftnode"
)

// voteRequest/voteReply mirror spec §6.2's POST /election/vote bodies.
type voteRequest struct {
	Term         int `json:"term"`
	CandidateID  int `json:"candidateId"`
	LastLogIndex int `json:"lastLogIndex"`
	LastLogTerm  int `json:"lastLogTerm"`
}

type voteReply struct {
	Vote bool `json:"vote"`
	Term int  `json:"term"`
}

// logEntryWire mirrors the LogEntry wire form: {term, command}.
type logEntryWire struct {
	Term    int            `json:"term"`
	Command *command.Command `json:"command"`
}

// appendRequest/appendReply mirror spec §6.2's POST /logs/append bodies.
type appendRequest struct {
	Term         int           `json:"term"`
	LeaderID     int           `json:"leaderId"`
	PrevLogTerm  int           `json:"prevLogTerm"`
	PrevLogIndex int           `json:"prevLogIndex"`
	Entry        *logEntryWire `json:"entry"`
	LeaderCommit int           `json:"leaderCommit"`
}

type appendReply struct {
	Success bool `json:"success"`
	Term    int  `json:"term"`
}

func toVoteRequest(args *raftnode.RequestVoteArgs) voteRequest {
	return voteRequest{
		Term:         args.Term,
		CandidateID:  args.CandidateID,
		LastLogIndex: args.LastLogIndex,
		LastLogTerm:  args.LastLogTerm,
	}
}

func fromVoteRequest(r voteRequest) *raftnode.RequestVoteArgs {
	return &raftnode.RequestVoteArgs{
		Term:         r.Term,
		CandidateID:  r.CandidateID,
		LastLogIndex: r.LastLogIndex,
		LastLogTerm:  r.LastLogTerm,
	}
}

func toAppendRequest(args *raftnode.AppendEntriesArgs) appendRequest {
	r := appendRequest{
		Term:         args.Term,
		LeaderID:     args.LeaderID,
		PrevLogTerm:  args.PrevLogTerm,
		PrevLogIndex: args.PrevLogIndex,
		LeaderCommit: args.LeaderCommit,
	}
	if args.Entry != nil {
		cmd := args.Entry.Command
		r.Entry = &logEntryWire{Term: args.Entry.Term, Command: &cmd}
	}
	return r
}

func fromAppendRequest(r appendRequest) *raftnode.AppendEntriesArgs {
	a := &raftnode.AppendEntriesArgs{
		Term:         r.Term,
		LeaderID:     r.LeaderID,
		PrevLogTerm:  r.PrevLogTerm,
		PrevLogIndex: r.PrevLogIndex,
		LeaderCommit: r.LeaderCommit,
	}
	if r.Entry != nil {
		var cmd command.Command
		if r.Entry.Command != nil {
			cmd = *r.Entry.Command
		}
		a.Entry = &logstore.Entry{Term: r.Entry.Term, Command: cmd}
	}
	return a
}
