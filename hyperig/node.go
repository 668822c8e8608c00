// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package hyperig implements the HIG: the per-chain speculative executor
// that keeps chain state, proposes CAT votes, enforces key-level
// pessimistic locking across pending CATs, and resolves dependent
// transactions once their CATs finalise (spec §4.2 — "THE hardest part").
package hyperig

import (
	"context"
	"fmt"
	"sync"
	"time"

	catlog "github.com/catprotocol/catprotocol/log"
	"github.com/catprotocol/catprotocol/metrics"
	"github.com/catprotocol/catprotocol/types"
)

// Config bundles the per-HIG knobs spec §6 names.
type Config struct {
	Chain                       types.ChainId
	InitialBalance              int64
	NumAccounts                 uint32
	CATLifetimeBlocks           uint64
	AllowCATPendingDependencies bool
	// VoteDelay is the artificial per-HIG delay applied to outbound vote
	// messages, used to model slow chains (spec §4.2/S6).
	VoteDelay time.Duration
}

// Node is one chain's Hyper Information Gateway. It exclusively owns its
// chain state, locks and dependency graph (spec §3 Ownership); its mutex
// mu guards state in short critical sections the same way the teacher's
// worker struct guards Task (work/worker.go).
type Node struct {
	mu sync.Mutex
	st *state

	toHS    chan<- types.CATVote
	voteOut chan types.CATVote
	delay   time.Duration

	logger catlog.Logger
	done   chan struct{}
}

// New builds a HIG for cfg.Chain, preloading NumAccounts accounts at
// InitialBalance, and wires its outbound votes to toHS.
func New(cfg Config, toHS chan<- types.CATVote, bufferSize int) *Node {
	return &Node{
		st:      newState(cfg.Chain, cfg.InitialBalance, cfg.NumAccounts, cfg.CATLifetimeBlocks, cfg.AllowCATPendingDependencies),
		toHS:    toHS,
		voteOut: make(chan types.CATVote, bufferSize),
		delay:   cfg.VoteDelay,
		logger:  catlog.NewModuleLogger(fmt.Sprintf("HIG:%s", cfg.Chain)),
		done:    make(chan struct{}),
	}
}

// Run drains sb from inbound and processes them, and forwards queued
// votes to HS, each carrying the configured per-HIG delay measured from
// its own dequeue rather than from behind whatever else is in flight.
// If ProcessSubBlock returns an error (such as ErrCATTimeoutContradiction),
// Run logs it at Error level and returns, so this HIG stops processing;
// Run has no error result, so the error is not passed on to its caller.
func (n *Node) Run(ctx context.Context, inbound <-chan types.SubBlock) {
	go n.voteSender(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case sb, ok := <-inbound:
			if !ok {
				return
			}
			if err := n.ProcessSubBlock(sb); err != nil {
				n.logger.Errorw("fatal error processing subblock", "error", err, "height", sb.BlockHeight)
				return
			}
		}
	}
}

// Shutdown stops Run idempotently.
func (n *Node) Shutdown() {
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}

// voteSender dequeues votes one at a time but hands each off to its own
// deliverVote goroutine immediately: a backlog of votes queued in the same
// subblock each wait the same fixed n.delay from when they were dequeued,
// instead of compounding behind each other's wait.
func (n *Node) voteSender(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case v, ok := <-n.voteOut:
			if !ok {
				return
			}
			go n.deliverVote(ctx, v)
		}
	}
}

// deliverVote sends v to toHS after n.delay, or immediately if undelayed.
func (n *Node) deliverVote(ctx context.Context, v types.CATVote) {
	if n.delay > 0 {
		t := time.NewTimer(n.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		case <-n.done:
			return
		}
	}
	select {
	case n.toHS <- v:
	case <-ctx.Done():
	case <-n.done:
	}
}

// ProcessSubBlock processes every transaction in sb in order, per spec
// §4.2: assert chain identity, stamp the new block height, run the
// timeout sweep using that height as "now", then dispatch transactions.
func (n *Node) ProcessSubBlock(sb types.SubBlock) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sb.ChainId != n.st.myChain {
		return fmt.Errorf("%w: expected %q, got %q", ErrWrongChainId, n.st.myChain, sb.ChainId)
	}
	n.st.currentBlockHeight = sb.BlockHeight

	n.sweepTimeoutsLocked()

	for _, tx := range sb.Transactions {
		if err := n.processTransactionLocked(tx); err != nil {
			return err
		}
	}
	metrics.LockedKeys.WithLabelValues(string(n.st.myChain)).Set(float64(len(n.st.lockedKeys)))
	return nil
}

// GetTransactionStatus returns the current status of a transaction this
// HIG has seen.
func (n *Node) GetTransactionStatus(id types.TransactionId) (types.TransactionStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.st.txStatus[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errTransactionNotFound, id)
	}
	return s, nil
}

// GetChainState returns a snapshot copy of every account balance this HIG
// has committed, for assertions and result export (spec §4.2's
// "Chain-state accessor").
func (n *Node) GetChainState() map[types.AccountID]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[types.AccountID]int64, len(n.st.balances))
	for k, v := range n.st.balances {
		out[k] = v
	}
	return out
}

// Counters exposes the tallies spec §8 checks invariants against.
type Counters struct {
	RegularPending, RegularSuccess, RegularFailure int
	CATPending, CATSuccess, CATFailure             int
	CATPendingResolving, CATPendingPostponed       int
}

// GetCounters returns a snapshot of this HIG's status counters.
func (n *Node) GetCounters() Counters {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := n.st.counters
	return Counters{
		RegularPending:      c.regularPending,
		RegularSuccess:      c.regularSuccess,
		RegularFailure:      c.regularFailure,
		CATPending:          c.catPending,
		CATSuccess:          c.catSuccess,
		CATFailure:          c.catFailure,
		CATPendingResolving: c.catPendingResolving,
		CATPendingPostponed: c.catPendingPostponed,
	}
}

// GetProposedCATStatus returns the vote this HIG sent for a CAT, if any.
func (n *Node) GetProposedCATStatus(id types.CATId) (types.StatusLimited, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, ok := n.st.cats[id]
	if !ok {
		return 0, false
	}
	return rec.vote, true
}

// LockedKeyCount returns the number of keys currently locked, for the
// time-series export spec §6 names.
func (n *Node) LockedKeyCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.st.lockedKeys)
}
