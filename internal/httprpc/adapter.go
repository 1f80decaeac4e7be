package httprpc

import "github.com/raftmq/broker/internal/raftnode"

// engine is the subset of *raftnode.Engine the server adapter needs.
type engine interface {
	HandleRequestVote(args *raftnode.RequestVoteArgs) *raftnode.RequestVoteReply
	HandleAppendEntries(args *raftnode.AppendEntriesArgs) *raftnode.AppendEntriesReply
}

// EngineAdapter wraps a *raftnode.Engine so it satisfies the Server's
// handler interface, translating the wire structs to/from the engine's
// internal RPC argument types.
type EngineAdapter struct {
	Engine engine
}

func (a EngineAdapter) HandleRequestVoteWire(req voteRequest) voteReply {
	reply := a.Engine.HandleRequestVote(fromVoteRequest(req))
	return voteReply{Vote: reply.VoteGranted, Term: reply.Term}
}

func (a EngineAdapter) HandleAppendEntriesWire(req appendRequest) appendReply {
	reply := a.Engine.HandleAppendEntries(fromAppendRequest(req))
	return appendReply{Success: reply.Success, Term: reply.Term}
}
