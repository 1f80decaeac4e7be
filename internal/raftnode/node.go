// Package raftnode implements the Node State and Consensus Engine
// components of spec §4.3/§4.4: term/role/vote bookkeeping, the periodic
// driver tick, leader election, log replication, commit advancement, and
// applying committed entries to the state machine.
package raftnode

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/raftmq/broker/internal/command"
	"github.com/raftmq/broker/internal/logstore"
	"github.com/raftmq/broker/internal/statemachine"
)

// Config holds the tunables called out in spec §4.3/§4.4/§5.
type Config struct {
	Index              int
	Peers              []int // other node indices in the cluster
	TotalNodes         int
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	TickInterval       time.Duration // driver cadence, design default 10ms
	RPCTimeout         time.Duration // per-RPC timeout for fan-out calls
	FanOutWorkers      int           // bounded worker pool size, design default 5
}

// DefaultConfig returns the design defaults from spec §4.3/§4.4/§5.
func DefaultConfig(index int, peers []int) Config {
	return Config{
		Index:              index,
		Peers:              peers,
		TotalNodes:         len(peers) + 1,
		ElectionTimeoutMin: 100 * time.Millisecond,
		ElectionTimeoutMax: 500 * time.Millisecond,
		TickInterval:       10 * time.Millisecond,
		RPCTimeout:         100 * time.Millisecond,
		FanOutWorkers:      5,
	}
}

// Engine is the Consensus Engine plus the Node State it drives. A single
// mutex guards every field, following the teacher's Node struct: one
// coarse-grained region covering log, term/role/vote, and replication
// cursors (spec §5).
type Engine struct {
	mu sync.Mutex

	cfg Config
	rng *rand.Rand

	term       int
	role       Role
	votedFor   *int
	leaderHint *int

	log *logstore.Log
	sm  *statemachine.StateMachine

	nextIndex  map[int]int
	matchIndex map[int]int

	electionDeadline time.Time

	transport Transport
	waiters   map[int]chan struct{} // log index -> closed when applied

	stopCh chan struct{}
	logger *log.Logger
}

// New constructs an Engine. transport must be supplied by the caller (a
// production node wires internal/httprpc; tests wire internal/transport's
// in-memory Local transport).
func New(cfg Config, transport Transport, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano() + int64(cfg.Index))),
		role:       Follower,
		log:        logstore.New(),
		sm:         statemachine.New(),
		nextIndex:  make(map[int]int),
		matchIndex: make(map[int]int),
		transport:  transport,
		waiters:    make(map[int]chan struct{}),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
	e.electionDeadline = time.Now().Add(e.randomElectionTimeout())
	return e
}

// Run drives the engine's tick loop until ctx is done or Stop is called.
// This is the long-lived task described in spec §9: one clock-driven
// driver, scoped to the node's lifetime.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// Stop releases the driver goroutine started by Run.
func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
}

// tick performs the single driver step from spec §4.4: replicate/commit if
// Leader, run an election if the timer expired, then apply pending entries.
func (e *Engine) tick() {
	e.mu.Lock()
	role := e.role
	expired := !e.electionDeadline.After(time.Now())
	e.mu.Unlock()

	if role == Leader {
		e.replicateOnce()
		e.advanceCommit()
	} else if expired {
		e.runElection()
	}
	e.applyPending()
}

// --- election (spec §4.4.1) ---

func (e *Engine) runElection() {
	e.mu.Lock()
	e.role = Candidate
	e.term++
	term := e.term
	self := e.cfg.Index
	e.votedFor = &self
	e.resetElectionDeadlineLocked()
	deadline := e.electionDeadline
	lastLogIdx := e.log.LastIndex()
	lastLogTerm := e.log.LastTerm()
	peers := append([]int(nil), e.cfg.Peers...)
	total := e.cfg.TotalNodes
	e.logger.Printf("node %d: starting election for term %d", e.cfg.Index, term)
	e.mu.Unlock()

	needed := total/2 + 1
	votes := 1 // voted for self

	if votes >= needed {
		e.mu.Lock()
		if e.role == Candidate && e.term == term {
			e.becomeLeaderLocked()
		}
		e.mu.Unlock()
		return
	}

	type voteResult struct {
		peer  int
		reply *RequestVoteReply
		err   error
	}

	resultCh := make(chan voteResult, len(peers)*2)
	retried := make(map[int]bool, len(peers))
	pending := make(map[int]bool, len(peers))
	for _, p := range peers {
		pending[p] = true
	}

	send := func(peer int) {
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
			defer cancel()
			reply, err := e.transport.RequestVote(rctx, peer, &RequestVoteArgs{
				Term:         term,
				CandidateID:  self,
				LastLogIndex: lastLogIdx,
				LastLogTerm:  lastLogTerm,
			})
			resultCh <- voteResult{peer: peer, reply: reply, err: err}
		}()
	}

	e.fanOut(peers, send)

	for len(pending) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		select {
		case res := <-resultCh:
			if res.err != nil {
				if !retried[res.peer] {
					retried[res.peer] = true
					send(res.peer)
				} else {
					delete(pending, res.peer)
				}
				continue
			}
			delete(pending, res.peer)

			e.mu.Lock()
			if res.reply.Term > e.term {
				e.becomeFollowerLocked(res.reply.Term)
				e.mu.Unlock()
				return
			}
			if e.role != Candidate || e.term != term {
				e.mu.Unlock()
				return
			}
			if res.reply.VoteGranted {
				votes++
				if votes >= needed {
					e.becomeLeaderLocked()
					e.mu.Unlock()
					return
				}
			}
			e.mu.Unlock()
		case <-time.After(remaining):
		}
	}

	e.mu.Lock()
	if e.role == Candidate && e.term == term {
		e.logger.Printf("node %d: election timed out for term %d, reverting to follower", e.cfg.Index, term)
		e.role = Follower
	}
	e.mu.Unlock()
}

// fanOut runs work(peer) for every peer, bounded to cfg.FanOutWorkers
// concurrent dispatches in flight (spec §5).
func (e *Engine) fanOut(peers []int, work func(peer int)) {
	sem := make(chan struct{}, e.cfg.FanOutWorkers)
	for _, p := range peers {
		sem <- struct{}{}
		go func(peer int) {
			defer func() { <-sem }()
			work(peer)
		}(p)
	}
}

// HandleRequestVote is the RequestVote RPC handler (spec §4.4.2).
func (e *Engine) HandleRequestVote(args *RequestVoteArgs) *RequestVoteReply {
	e.mu.Lock()
	defer e.mu.Unlock()

	reply := &RequestVoteReply{Term: e.term, VoteGranted: false}

	ownLastTerm := e.log.LastTerm()
	if e.log.Size() > 0 && (ownLastTerm > args.LastLogTerm ||
		(ownLastTerm == args.LastLogTerm && e.log.Size() > args.LastLogIndex+1)) {
		return reply
	}

	if e.role == Leader && args.Term == e.term {
		return reply
	}

	if args.Term > e.term {
		e.becomeFollowerLocked(args.Term)
		candidate := args.CandidateID
		e.votedFor = &candidate
		reply.Term = e.term
		reply.VoteGranted = true
		e.resetElectionDeadlineLocked()
		e.logger.Printf("node %d: granted vote to %d for term %d", e.cfg.Index, args.CandidateID, args.Term)
		return reply
	}

	if args.Term == e.term && (e.votedFor == nil || *e.votedFor == args.CandidateID) {
		candidate := args.CandidateID
		e.votedFor = &candidate
		reply.VoteGranted = true
		e.resetElectionDeadlineLocked()
		e.logger.Printf("node %d: granted vote to %d for term %d", e.cfg.Index, args.CandidateID, args.Term)
		return reply
	}

	return reply
}

// --- replication (spec §4.4.3) ---

func (e *Engine) replicateOnce() {
	e.mu.Lock()
	if e.role != Leader {
		e.mu.Unlock()
		return
	}
	term := e.term
	peers := append([]int(nil), e.cfg.Peers...)
	leaderCommit := e.log.CommittedIndex()
	self := e.cfg.Index
	e.mu.Unlock()

	e.fanOut(peers, func(peer int) {
		e.mu.Lock()
		if e.role != Leader || e.term != term {
			e.mu.Unlock()
			return
		}
		nextIdx := e.nextIndex[peer]
		prevLogIdx := nextIdx - 1
		prevLogTerm := -1
		if prevLogIdx >= 0 && prevLogIdx < e.log.Size() {
			prevLogTerm = e.log.EntryAt(prevLogIdx).Term
		}
		var entry *logstore.Entry
		if nextIdx < e.log.Size() {
			ent := e.log.EntryAt(nextIdx)
			entry = &ent
		}
		args := &AppendEntriesArgs{
			Term:         term,
			LeaderID:     self,
			PrevLogIndex: prevLogIdx,
			PrevLogTerm:  prevLogTerm,
			Entry:        entry,
			LeaderCommit: leaderCommit,
		}
		e.mu.Unlock()

		rctx, cancel := context.WithTimeout(context.Background(), e.cfg.RPCTimeout)
		reply, err := e.transport.AppendEntries(rctx, peer, args)
		cancel()
		if err != nil {
			return // leave cursors unchanged, retry next tick
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		if reply.Term > e.term {
			e.becomeFollowerLocked(reply.Term)
			return
		}
		if e.role != Leader || e.term != term {
			return
		}

		if reply.Success {
			if entry == nil {
				e.matchIndex[peer] = nextIdx - 1
			} else {
				e.matchIndex[peer] = nextIdx
				e.nextIndex[peer] = nextIdx + 1
			}
		} else {
			if e.nextIndex[peer] > 0 {
				e.nextIndex[peer]--
			}
		}
	})
}

// advanceCommit implements spec §4.4.5.
func (e *Engine) advanceCommit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.role != Leader {
		return
	}

	majority := e.cfg.TotalNodes/2 + 1
	for n := e.log.CommittedIndex() + 1; n <= e.log.LastIndex(); n++ {
		count := 1 // leader itself
		for _, peer := range e.cfg.Peers {
			if e.matchIndex[peer] >= n {
				count++
			}
		}
		if count >= majority && e.log.EntryAt(n).Term == e.term {
			e.log.Commit(n)
		}
	}
}

// HandleAppendEntries is the AppendEntries RPC handler (spec §4.4.4).
func (e *Engine) HandleAppendEntries(args *AppendEntriesArgs) *AppendEntriesReply {
	e.mu.Lock()
	defer e.mu.Unlock()

	if args.Term < e.term {
		return &AppendEntriesReply{Term: e.term, Success: false}
	}

	e.resetElectionDeadlineLocked()
	leader := args.LeaderID
	e.leaderHint = &leader

	if args.Term > e.term {
		e.becomeFollowerLocked(args.Term)
	} else if e.role == Candidate {
		e.role = Follower
	}

	reply := &AppendEntriesReply{Term: e.term, Success: false}

	if args.PrevLogIndex >= 0 {
		if e.log.Size() <= args.PrevLogIndex || e.log.EntryAt(args.PrevLogIndex).Term != args.PrevLogTerm {
			return reply
		}
	}

	if args.Entry != nil {
		nextIdx := args.PrevLogIndex + 1
		if e.log.Size() > nextIdx {
			existing := e.log.EntryAt(nextIdx)
			if existing.Term != args.Entry.Term || existing.Command.ID != args.Entry.Command.ID {
				e.log.TruncateFrom(nextIdx)
			}
		}
		if e.log.Size() == nextIdx {
			e.log.Append(*args.Entry)
		}
	}

	if args.LeaderCommit > e.log.CommittedIndex() {
		e.log.Commit(min(args.LeaderCommit, e.log.LastIndex()))
	}

	reply.Success = true
	return reply
}

// --- apply (spec §4.4.6) ---

func (e *Engine) applyPending() {
	for {
		e.mu.Lock()
		idx, entry, ok := e.log.ApplyNext()
		if !ok {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		e.sm.Apply(entry.Command)

		e.mu.Lock()
		if ch, ok := e.waiters[idx]; ok {
			close(ch)
			delete(e.waiters, idx)
		}
		e.mu.Unlock()
	}
}

// --- client-facing operations (spec §4.5) ---

// ErrNotLeader is returned when a non-Leader node is asked to submit a
// write/read (spec §4.5, §7).
type ErrNotLeader struct {
	LeaderHint *int
}

func (e *ErrNotLeader) Error() string { return "not the leader" }

// Submit appends cmd to the log (leader only) and blocks until it has been
// applied, then returns its recorded result.
func (e *Engine) Submit(ctx context.Context, cmd command.Command) (statemachine.Result, error) {
	e.mu.Lock()
	if e.role != Leader {
		hint := e.leaderHint
		e.mu.Unlock()
		return statemachine.Result{}, &ErrNotLeader{LeaderHint: hint}
	}

	idx := e.log.Append(logstore.Entry{Term: e.term, Command: cmd})
	ch := make(chan struct{})
	e.waiters[idx] = ch
	e.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.waiters, idx)
		e.mu.Unlock()
		return statemachine.Result{}, ErrTimeout
	}

	result, _ := e.sm.Result(cmd.ID)
	e.sm.Forget(cmd.ID)
	return result, nil
}

// Status returns the node's role and term without touching the log
// (spec §4.5 /status).
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Role: e.role, Term: e.term}
}

// LeaderHint returns the last observed leader index, if any.
func (e *Engine) LeaderHint() *int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderHint
}

// CommittedIndex and AppliedIndex expose the log cursors for tests and
// diagnostics.
func (e *Engine) CommittedIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.CommittedIndex()
}

func (e *Engine) AppliedIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.AppliedIndex()
}

// CommittedEntries returns a copy of every entry up to and including
// CommittedIndex, for test harnesses that cross-check replicas (spec §8).
func (e *Engine) CommittedEntries() []logstore.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	committed := e.log.CommittedIndex()
	out := make([]logstore.Entry, 0, committed+1)
	for i := 0; i <= committed; i++ {
		out = append(out, e.log.EntryAt(i))
	}
	return out
}

// StateMachine exposes the engine's state machine for read-only inspection
// (the Client API's ListTopics/Dequeue results still flow through Submit;
// this is used by tests).
func (e *Engine) StateMachine() *statemachine.StateMachine { return e.sm }

// --- role transitions (spec §4.3), callers must hold e.mu ---

func (e *Engine) becomeFollowerLocked(term int) {
	e.role = Follower
	e.term = term
	e.votedFor = nil
}

func (e *Engine) becomeLeaderLocked() {
	e.logger.Printf("node %d: becoming leader for term %d", e.cfg.Index, e.term)
	e.role = Leader
	self := e.cfg.Index
	e.leaderHint = &self
	for _, peer := range e.cfg.Peers {
		e.nextIndex[peer] = e.log.Size()
		e.matchIndex[peer] = -1
	}
}

func (e *Engine) resetElectionDeadlineLocked() {
	e.electionDeadline = time.Now().Add(e.randomElectionTimeout())
}

func (e *Engine) randomElectionTimeout() time.Duration {
	lo := e.cfg.ElectionTimeoutMin
	hi := e.cfg.ElectionTimeoutMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int63n(int64(hi-lo)))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
