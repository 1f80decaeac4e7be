package raftnode

import "errors"

var (
	// ErrTimeout is returned by Submit when ctx is cancelled before the
	// command is applied (spec §5, §7).
	ErrTimeout = errors.New("operation timed out")

	// ErrNodeStopped reports that the engine has been Stopped. Submit does
	// not check for a stopped engine: on one, it waits until ctx is done and
	// then returns ErrTimeout.
	ErrNodeStopped = errors.New("node has been stopped")
)
