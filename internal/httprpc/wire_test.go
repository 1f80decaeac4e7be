package httprpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raftmq/broker/internal/command"
	"github.com/raftmq/broker/internal/logstore"
	"github.com/raftmq/broker/internal/raftnode"
)

type fakeEngine struct {
	voteReply   *raftnode.RequestVoteReply
	appendReply *raftnode.AppendEntriesReply
	gotVote     *raftnode.RequestVoteArgs
	gotAppend   *raftnode.AppendEntriesArgs
}

func (f *fakeEngine) HandleRequestVote(args *raftnode.RequestVoteArgs) *raftnode.RequestVoteReply {
	f.gotVote = args
	return f.voteReply
}

func (f *fakeEngine) HandleAppendEntries(args *raftnode.AppendEntriesArgs) *raftnode.AppendEntriesReply {
	f.gotAppend = args
	return f.appendReply
}

func TestElectionVoteWireFormat(t *testing.T) {
	fe := &fakeEngine{voteReply: &raftnode.RequestVoteReply{Term: 3, VoteGranted: true}}
	srv := NewServer(EngineAdapter{Engine: fe})

	body := `{"term":2,"candidateId":1,"lastLogIndex":5,"lastLogTerm":2}`
	req := httptest.NewRequest(http.MethodPost, "/election/vote", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reply voteReply
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if !reply.Vote || reply.Term != 3 {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if fe.gotVote.Term != 2 || fe.gotVote.CandidateID != 1 || fe.gotVote.LastLogIndex != 5 || fe.gotVote.LastLogTerm != 2 {
		t.Fatalf("request not decoded correctly: %+v", fe.gotVote)
	}
}

func TestLogsAppendWireFormatWithEntry(t *testing.T) {
	fe := &fakeEngine{appendReply: &raftnode.AppendEntriesReply{Term: 5, Success: true}}
	srv := NewServer(EngineAdapter{Engine: fe})

	cmd := command.CreateTopic("orders")
	data, _ := json.Marshal(cmd)

	body := `{"term":5,"leaderId":0,"prevLogTerm":4,"prevLogIndex":3,"leaderCommit":2,"entry":{"term":5,"command":` + string(data) + `}}`
	req := httptest.NewRequest(http.MethodPost, "/logs/append", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reply appendReply
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if !reply.Success || reply.Term != 5 {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if fe.gotAppend.Entry == nil || fe.gotAppend.Entry.Command.ID != cmd.ID {
		t.Fatalf("entry not decoded correctly: %+v", fe.gotAppend.Entry)
	}
}

func TestLogsAppendWireFormatHeartbeatHasNilEntry(t *testing.T) {
	fe := &fakeEngine{appendReply: &raftnode.AppendEntriesReply{Term: 1, Success: true}}
	srv := NewServer(EngineAdapter{Engine: fe})

	body := `{"term":1,"leaderId":0,"prevLogTerm":0,"prevLogIndex":-1,"leaderCommit":-1,"entry":null}`
	req := httptest.NewRequest(http.MethodPost, "/logs/append", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if fe.gotAppend.Entry != nil {
		t.Fatalf("expected nil entry for heartbeat, got %+v", fe.gotAppend.Entry)
	}
}

func TestToAppendRequestRoundTrip(t *testing.T) {
	args := &raftnode.AppendEntriesArgs{
		Term: 1, LeaderID: 0, PrevLogIndex: -1, PrevLogTerm: -1,
		Entry:        &logstore.Entry{Term: 1, Command: command.Enqueue("orders", "hi")},
		LeaderCommit: -1,
	}

	wire := toAppendRequest(args)
	back := fromAppendRequest(wire)

	if back.Entry == nil || back.Entry.Command.Topic != "orders" || back.Entry.Command.Message != "hi" {
		t.Fatalf("round trip lost entry payload: %+v", back.Entry)
	}
}
