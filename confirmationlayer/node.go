// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package confirmationlayer implements the CL: the tick-driven total
// orderer that serialises submitted transactions into numbered blocks and
// fans out per-chain subblocks to registered HIGs (spec §4.1).
package confirmationlayer

import (
	"context"
	"sync"
	"time"

	catlog "github.com/catprotocol/catprotocol/log"
	"github.com/catprotocol/catprotocol/metrics"
	"github.com/catprotocol/catprotocol/types"
)

var logger = catlog.NewModuleLogger("CL")

// state is the internal, mutex-guarded state of a Node, kept separate
// from the node's channels per the teacher's worker/Task split
// (work/worker.go): external read/write calls (RegisterChain,
// SubmitTransaction, GetSubBlock, ...) take the mutex directly, while the
// block-production loop takes it only for its own short critical
// sections.
type state struct {
	mu sync.Mutex

	registeredChains map[types.ChainId]chan<- types.SubBlock
	currentBlock     uint64
	blockInterval    time.Duration
	pending          []types.CLTransaction
	// blockTransactions[height][chain] is that chain's transactions for
	// the block at height, recorded once and never mutated afterwards.
	blockTransactions map[uint64]map[types.ChainId][]types.Transaction
}

// Node is the confirmation layer. It exclusively owns block production
// and the pending-submission queue (spec §3 Ownership).
type Node struct {
	st *state

	// fromHS receives the CLTransaction envelopes HS submits once a CAT's
	// decision is final. It is drained into the pending queue once per
	// tick (spec §4.1 step 1), not continuously, so that tick boundaries
	// stay the sole place pending transactions convert into a block.
	fromHS <-chan types.CLTransaction

	done chan struct{}
}

// New builds a CL node with the given block interval, consuming decision
// submissions from fromHS.
func New(blockInterval time.Duration, fromHS <-chan types.CLTransaction) (*Node, error) {
	if blockInterval <= 0 {
		return nil, ErrInvalidBlockInterval
	}
	return &Node{
		st: &state{
			registeredChains:  make(map[types.ChainId]chan<- types.SubBlock),
			blockInterval:     blockInterval,
			blockTransactions: make(map[uint64]map[types.ChainId][]types.Transaction),
		},
		fromHS: fromHS,
		done:   make(chan struct{}),
	}, nil
}

// RegisterChain registers a chain's outbound subblock channel and returns
// the current block height as of registration.
func (n *Node) RegisterChain(chain types.ChainId, outbound chan<- types.SubBlock) (uint64, error) {
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	if _, ok := n.st.registeredChains[chain]; ok {
		return 0, ErrChainAlreadyRegistered
	}
	n.st.registeredChains[chain] = outbound
	return n.st.currentBlock, nil
}

// SubmitTransaction validates that every constituent chain is registered
// and appends the submission to the pending queue. It never blocks (spec
// §4.1).
func (n *Node) SubmitTransaction(tx types.CLTransaction) error {
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	for _, c := range tx.ConstituentChains {
		if _, ok := n.st.registeredChains[c]; !ok {
			return ErrChainNotFound
		}
	}
	n.st.pending = append(n.st.pending, tx)
	return nil
}

// GetSubBlock returns the recorded subblock for chain at height, an empty
// one if the chain saw no traffic at that height.
func (n *Node) GetSubBlock(chain types.ChainId, height uint64) (types.SubBlock, error) {
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	if _, ok := n.st.registeredChains[chain]; !ok {
		return types.SubBlock{}, ErrChainNotFound
	}
	txs := n.st.blockTransactions[height][chain]
	return types.SubBlock{BlockHeight: height, ChainId: chain, Transactions: txs}, nil
}

// GetCurrentBlock returns the current block height.
func (n *Node) GetCurrentBlock() uint64 {
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	return n.st.currentBlock
}

// GetBlockInterval returns the current block interval.
func (n *Node) GetBlockInterval() time.Duration {
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	return n.st.blockInterval
}

// SetBlockInterval changes the block interval for subsequent ticks. It
// rejects a non-positive duration (spec §4.1).
func (n *Node) SetBlockInterval(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidBlockInterval
	}
	n.st.mu.Lock()
	defer n.st.mu.Unlock()
	n.st.blockInterval = d
	return nil
}

// Run starts the block-production loop and blocks until ctx is cancelled
// or Shutdown is called. Callers typically run it in its own goroutine.
func (n *Node) Run(ctx context.Context) {
	interval := n.GetBlockInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.tick()
			if d := n.GetBlockInterval(); d != interval {
				interval = d
				ticker.Reset(d)
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

// tick runs one block-production cycle (spec §4.1's five numbered steps).
func (n *Node) tick() {
	n.st.mu.Lock()

	n.drainFromHSLocked()

	n.st.currentBlock++
	height := n.st.currentBlock

	registered := make([]types.ChainId, 0, len(n.st.registeredChains))
	for c := range n.st.registeredChains {
		registered = append(registered, c)
	}

	perChain := make(map[types.ChainId][]types.Transaction, len(registered))
	for _, cl := range n.st.pending {
		allRegistered := true
		for _, c := range cl.ConstituentChains {
			if _, ok := n.st.registeredChains[c]; !ok {
				allRegistered = false
				break
			}
		}
		if !allRegistered {
			continue // spec §4.1 step 3: discard submissions with an unregistered chain
		}
		for _, tx := range cl.Transactions {
			perChain[tx.TargetChain] = append(perChain[tx.TargetChain], tx)
		}
	}
	n.st.pending = nil
	n.st.blockTransactions[height] = perChain

	outbound := make(map[types.ChainId]chan<- types.SubBlock, len(registered))
	for _, c := range registered {
		outbound[c] = n.st.registeredChains[c]
	}
	n.st.mu.Unlock()

	metrics.BlocksProduced.Inc()

	for _, c := range registered {
		sb := types.SubBlock{BlockHeight: height, ChainId: c, Transactions: perChain[c]}
		select {
		case outbound[c] <- sb:
		default:
			logger.Warnw("dropping subblock, chain outbound channel full", "chain", c, "height", height)
		}
	}
}

// drainFromHSLocked appends every currently-available HS decision to the
// pending queue. Called with st.mu held; must not block (spec §4.1 step
// 1 — drain, don't wait).
func (n *Node) drainFromHSLocked() {
	for {
		select {
		case tx := <-n.fromHS:
			n.st.pending = append(n.st.pending, tx)
		default:
			return
		}
	}
}
