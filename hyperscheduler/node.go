// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package hyperscheduler implements the HS: the single aggregator that
// collects each constituent chain's vote on a CAT, decides Success or
// Failure, and submits the decision back through CL as StatusUpdate
// transactions targeted at exactly those chains (spec §4.4).
package hyperscheduler

import (
	"context"
	"fmt"
	"sync"

	catlog "github.com/catprotocol/catprotocol/log"
	"github.com/catprotocol/catprotocol/metrics"
	"github.com/catprotocol/catprotocol/types"
)

// CLSubmitter is the slice of confirmationlayer.Node that HS needs: it is
// an interface so tests can stub out CL, the same way the teacher codes
// against consensus.Engine rather than a concrete engine.
type CLSubmitter interface {
	SubmitTransaction(tx types.CLTransaction) error
}

// ChannelSubmitter adapts a plain channel to CLSubmitter, matching CL's
// own fromHS intake (confirmationlayer.Node.drainFromHSLocked, spec §4.1
// step 1) rather than routing HS's decisions through the client-facing
// SubmitTransaction call.
type ChannelSubmitter chan<- types.CLTransaction

// SubmitTransaction enqueues tx, dropping it with an error if the channel
// is saturated rather than blocking HS's decision loop.
func (c ChannelSubmitter) SubmitTransaction(tx types.CLTransaction) error {
	select {
	case c <- tx:
		return nil
	default:
		return fmt.Errorf("hs->cl channel full, dropping status update %s", tx.ID)
	}
}

type catAggregate struct {
	constituents []types.ChainId
	votes        map[types.ChainId]types.StatusLimited
	decided      bool
	decision     types.StatusLimited
}

func newAggregate(constituents []types.ChainId) *catAggregate {
	return &catAggregate{
		constituents: constituents,
		votes:        make(map[types.ChainId]types.StatusLimited, len(constituents)),
	}
}

func (a *catAggregate) isConstituent(chain types.ChainId) bool {
	for _, c := range a.constituents {
		if c == chain {
			return true
		}
	}
	return false
}

// evaluate reports whether enough votes are in to decide, and what the
// decision is: any Failure vote short-circuits to Failure; otherwise the
// CAT succeeds once every constituent chain has voted Success.
func (a *catAggregate) evaluate() (types.StatusLimited, bool) {
	for _, v := range a.votes {
		if v == types.LimitedFailure {
			return types.LimitedFailure, true
		}
	}
	if len(a.votes) == len(a.constituents) {
		return types.LimitedSuccess, true
	}
	return 0, false
}

// Node is the hyper scheduler. It holds one tally per in-flight CAT and
// submits the decision exactly once, to exactly the CAT's constituent
// chains (an Open Question the expanded spec resolves this way — see
// SPEC_FULL.md §13).
type Node struct {
	mu   sync.Mutex
	cats map[types.CATId]*catAggregate

	cl     CLSubmitter
	logger catlog.Logger
}

// New builds an HS that submits decisions through cl.
func New(cl CLSubmitter) *Node {
	return &Node{
		cats:   make(map[types.CATId]*catAggregate),
		cl:     cl,
		logger: catlog.NewModuleLogger("HS"),
	}
}

// ReceiveVote records a chain's vote on a CAT. Once every constituent
// chain has voted, or any has voted Failure, the decision is computed
// and broadcast through CL exactly once; later votes for an already
// decided CAT are recorded for observability but do not re-broadcast.
func (n *Node) ReceiveVote(v types.CATVote) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	agg, ok := n.cats[v.CATId]
	if !ok {
		agg = newAggregate(v.Constituents)
		n.cats[v.CATId] = agg
	}
	if !agg.isConstituent(v.ChainId) {
		return fmt.Errorf("%w: cat %s, chain %s", ErrUnknownConstituent, v.CATId, v.ChainId)
	}
	if _, dup := agg.votes[v.ChainId]; dup {
		return fmt.Errorf("%w: cat %s, chain %s", ErrDuplicateProposal, v.CATId, v.ChainId)
	}
	agg.votes[v.ChainId] = v.Vote

	if agg.decided {
		return nil
	}
	decision, ready := agg.evaluate()
	if !ready {
		return nil
	}
	agg.decided = true
	agg.decision = decision

	metrics.CATDecisions.WithLabelValues(decision.String()).Inc()
	n.logger.Infow("CAT decided", "cat", v.CATId, "decision", decision.String(), "constituents", agg.constituents)

	for _, chain := range agg.constituents {
		tx, err := types.NewStatusUpdateSubmission(v.CATId, chain, decision)
		if err != nil {
			n.logger.Errorw("failed to build status update", "cat", v.CATId, "chain", chain, "error", err)
			continue
		}
		if err := n.cl.SubmitTransaction(tx); err != nil {
			n.logger.Errorw("failed to submit status update", "cat", v.CATId, "chain", chain, "error", err)
		}
	}
	return nil
}

// GetCATStatus reports a CAT's aggregate status: CATPending until it is
// decided, then CATSuccess or CATFailure. ok is false only for a CAT HS
// has recorded no vote for.
func (n *Node) GetCATStatus(id types.CATId) (types.CATStatus, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	agg, ok := n.cats[id]
	if !ok || !agg.decided {
		return types.CATPending, ok && !agg.decided
	}
	if agg.decision == types.LimitedSuccess {
		return types.CATSuccess, true
	}
	return types.CATFailure, true
}

// GetPendingCATs lists CATs HS has seen at least one vote for but has not
// yet decided.
func (n *Node) GetPendingCATs() []types.CATId {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []types.CATId
	for id, agg := range n.cats {
		if !agg.decided {
			out = append(out, id)
		}
	}
	return out
}

// RunVotes drains votes from inbound until ctx is cancelled or inbound is
// closed, calling ReceiveVote for each. Every HIG may share the same
// inbound channel; channels are safe for concurrent senders.
func (n *Node) RunVotes(ctx context.Context, inbound <-chan types.CATVote) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-inbound:
			if !ok {
				return
			}
			if err := n.ReceiveVote(v); err != nil {
				n.logger.Warnw("rejected vote", "cat", v.CATId, "chain", v.ChainId, "error", err)
			}
		}
	}
}
