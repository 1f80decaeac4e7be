// Package statemachine implements the deterministic interpreter of
// committed commands: a topic-name -> FIFO message queue mapping, plus the
// result table keyed by command id that the Client API reads from once an
// entry has been applied.
package statemachine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/raftmq/broker/internal/command"
)

// Result is the outcome of applying a single Command. Only the fields
// relevant to the command's operation are populated; see Apply.
type Result struct {
	Success bool
	Topics  []string
	Message string
	Error   string
}

// StateMachine owns the topic queues and the results table, guarded by a
// single mutex — Apply is invoked exclusively from the engine's applyPending
// loop (the single-applier invariant in spec §5), while Result/Snapshot may
// be read concurrently from client-facing handlers.
type StateMachine struct {
	mu      sync.Mutex
	topics  map[string][]string
	results map[string]Result
}

// New returns an empty StateMachine.
func New() *StateMachine {
	return &StateMachine{
		topics:  make(map[string][]string),
		results: make(map[string]Result),
	}
}

// Apply interprets cmd against the current state and records its Result
// under cmd.ID. Any panic raised by a future operation handler is captured
// and turned into an {error: ...} result so that appliedIndex still
// advances and replicas stay in lock-step (spec §4.2, §7 apply-fatal).
func (s *StateMachine) Apply(cmd command.Command) (result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = Result{Error: fmt.Sprintf("%v", r)}
		}
		s.results[cmd.ID] = result
	}()

	switch cmd.Operation {
	case command.OpCreateTopic:
		return s.createTopic(cmd.Topic)
	case command.OpListTopics:
		return s.listTopics()
	case command.OpEnqueue:
		return s.enqueue(cmd.Topic, cmd.Message)
	case command.OpDequeue:
		return s.dequeue(cmd.Topic)
	default:
		return Result{Error: fmt.Sprintf("unknown operation %d", cmd.Operation)}
	}
}

func (s *StateMachine) createTopic(topic string) Result {
	if _, exists := s.topics[topic]; exists {
		return Result{Success: false}
	}
	s.topics[topic] = []string{}
	return Result{Success: true}
}

func (s *StateMachine) listTopics() Result {
	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return Result{Success: true, Topics: names}
}

func (s *StateMachine) enqueue(topic, message string) Result {
	if _, exists := s.topics[topic]; !exists {
		return Result{Success: false}
	}
	s.topics[topic] = append(s.topics[topic], message)
	return Result{Success: true}
}

// dequeue implements the stricter behavior adopted in spec §9 Open
// Question 1: a missing-or-empty topic is {success: false} with no state
// change, never a fall-through success.
func (s *StateMachine) dequeue(topic string) Result {
	queue, exists := s.topics[topic]
	if !exists || len(queue) == 0 {
		return Result{Success: false}
	}
	message := queue[0]
	s.topics[topic] = queue[1:]
	return Result{Success: true, Message: message}
}

// Result returns the recorded result for a command id, if any. A result
// may be absent if the command has not yet been applied.
func (s *StateMachine) Result(id string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}

// Forget discards a result once its waiting handler has consumed it
// (spec §3: "a result entry may be discarded after consumption").
func (s *StateMachine) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, id)
}

// Snapshot returns a defensive copy of the topic->queue mapping, useful
// for test assertions and cross-replica comparison.
func (s *StateMachine) Snapshot() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.topics))
	for topic, queue := range s.topics {
		cp := make([]string, len(queue))
		copy(cp, queue)
		out[topic] = cp
	}
	return out
}
