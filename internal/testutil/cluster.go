// Package testutil provides a property-testing harness for the broker's
// consensus safety properties (spec §8), grounded on the teacher's
// pkg/testing package: a TestCluster wiring N engines over an in-memory
// transport, and an InvariantChecker that replays each node's committed
// entries looking for Log Matching / State-Machine Safety violations.
package testutil

import (
	"context"
	"math/rand"
	"time"

	"github.com/raftmq/broker/internal/raftnode"
	"github.com/raftmq/broker/internal/transport"
)

// Cluster wires size engines together over a shared Local transport,
// mirroring the teacher's TestCluster but without any WAL/durability
// layer — this repo's Non-goals exclude snapshotting and disk persistence.
type Cluster struct {
	Engines   []*raftnode.Engine
	Transport *transport.Local
	stop      []func()
}

// NewCluster builds a size-node cluster with short, test-friendly election
// timeouts. The drivers are not running until Start is called.
func NewCluster(size int) *Cluster {
	lt := transport.NewLocal()
	c := &Cluster{Transport: lt, Engines: make([]*raftnode.Engine, size)}

	for i := 0; i < size; i++ {
		peers := make([]int, 0, size-1)
		for j := 0; j < size; j++ {
			if j != i {
				peers = append(peers, j)
			}
		}
		cfg := raftnode.DefaultConfig(i, peers)
		cfg.ElectionTimeoutMin = 30 * time.Millisecond
		cfg.ElectionTimeoutMax = 60 * time.Millisecond
		cfg.TickInterval = 5 * time.Millisecond
		cfg.RPCTimeout = 20 * time.Millisecond

		e := raftnode.New(cfg, lt, nil)
		c.Engines[i] = e
		lt.Register(i, e)
	}

	return c
}

// Start launches every engine's driver loop. Returns a function that stops
// them all.
func (c *Cluster) Start() func() {
	cancels := make([]context.CancelFunc, len(c.Engines))
	for i, e := range c.Engines {
		eng := e
		ctx, cancel := context.WithCancel(context.Background())
		cancels[i] = cancel
		go eng.Run(ctx)
	}
	c.stop = make([]func(), len(cancels))
	for i, cancel := range cancels {
		c.stop[i] = cancel
	}
	return c.Stop
}

// Stop halts every engine's driver loop.
func (c *Cluster) Stop() {
	for _, cancel := range c.stop {
		cancel()
	}
	for _, e := range c.Engines {
		e.Stop()
	}
}

// WaitForLeader polls until some engine reports Leader, or returns -1 on
// timeout.
func (c *Cluster) WaitForLeader(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for i, e := range c.Engines {
			if e.Status().Role == raftnode.Leader {
				return i
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return -1
}

// CollectInto records every engine's committed entries into ic, for a
// post-run Check() call.
func (c *Cluster) CollectInto(ic *InvariantChecker) {
	for nodeID, e := range c.Engines {
		for index, entry := range e.CommittedEntries() {
			ic.RecordCommit(nodeID, index, entry.Term, entry.Command)
		}
	}
}

// RandomFollower returns the index of a non-leader node, or -1 if none.
func (c *Cluster) RandomFollower(leader int) int {
	candidates := make([]int, 0, len(c.Engines)-1)
	for i := range c.Engines {
		if i != leader {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[rand.Intn(len(candidates))]
}
