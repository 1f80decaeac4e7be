package raftnode_test

import (
	"context"
	"testing"
	"time"

	"github.com/raftmq/broker/internal/command"
	"github.com/raftmq/broker/internal/raftnode"
	"github.com/raftmq/broker/internal/testutil"
)

func TestElectsExactlyOneLeaderPerTerm(t *testing.T) {
	c := testutil.NewCluster(3)
	stop := c.Start()
	defer stop()

	leader := c.WaitForLeader(2 * time.Second)
	if leader < 0 {
		t.Fatalf("no leader elected within timeout")
	}

	term := c.Engines[leader].Status().Term
	leadersAtTerm := 0
	for _, e := range c.Engines {
		s := e.Status()
		if s.Term == term && s.Role == raftnode.Leader {
			leadersAtTerm++
		}
	}
	if leadersAtTerm != 1 {
		t.Fatalf("expected exactly one leader at term %d, found %d", term, leadersAtTerm)
	}
}

func TestSubmitReplicatesAndApplies(t *testing.T) {
	c := testutil.NewCluster(3)
	stop := c.Start()
	defer stop()

	leader := c.WaitForLeader(2 * time.Second)
	if leader < 0 {
		t.Fatalf("no leader elected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := c.Engines[leader].Submit(ctx, command.CreateTopic("orders"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected topic creation to succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allApplied := true
		for _, e := range c.Engines {
			if e.AppliedIndex() < 0 {
				allApplied = false
			}
		}
		if allApplied {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i, e := range c.Engines {
		snap := e.StateMachine().Snapshot()
		if _, ok := snap["orders"]; !ok {
			t.Fatalf("node %d did not replicate topic creation: %v", i, snap)
		}
	}
}

func TestNonLeaderSubmitReturnsNotLeader(t *testing.T) {
	c := testutil.NewCluster(3)
	stop := c.Start()
	defer stop()

	leader := c.WaitForLeader(2 * time.Second)
	if leader < 0 {
		t.Fatalf("no leader elected")
	}
	follower := c.RandomFollower(leader)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.Engines[follower].Submit(ctx, command.ListTopics())
	if err == nil {
		t.Fatalf("expected non-leader submit to fail")
	}
	var notLeader *raftnode.ErrNotLeader
	if _, ok := err.(*raftnode.ErrNotLeader); !ok {
		t.Fatalf("expected *ErrNotLeader, got %T (%v)", err, err)
	}
	_ = notLeader
}

func TestSubmitCancelledByContext(t *testing.T) {
	c := testutil.NewCluster(1)
	stop := c.Start()
	defer stop()

	leader := c.WaitForLeader(2 * time.Second)
	if leader < 0 {
		t.Fatalf("no leader elected in single-node cluster")
	}

	// Stop the driver so the submitted entry never gets applied, then
	// confirm the wait is cancellable.
	c.Engines[leader].Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Engines[leader].Submit(ctx, command.ListTopics())
	if err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestSafetyInvariantsHoldAcrossReplication(t *testing.T) {
	c := testutil.NewCluster(3)
	stop := c.Start()
	defer stop()

	leader := c.WaitForLeader(2 * time.Second)
	if leader < 0 {
		t.Fatalf("no leader elected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Engines[leader].Submit(ctx, command.CreateTopic("orders"))
	c.Engines[leader].Submit(ctx, command.Enqueue("orders", "a"))
	c.Engines[leader].Submit(ctx, command.Enqueue("orders", "b"))

	time.Sleep(100 * time.Millisecond)

	checker := testutil.NewInvariantChecker()
	c.CollectInto(checker)
	ok, violations := checker.Check()
	if !ok {
		t.Fatalf("safety invariants violated: %+v", violations)
	}
}
