package hyperig

import (
	"fmt"

	"github.com/catprotocol/catprotocol/metrics"
	"github.com/catprotocol/catprotocol/types"
	"github.com/catprotocol/catprotocol/vm"
	set "gopkg.in/fatih/set.v0"
)

// processTransactionLocked dispatches one transaction by its parsed kind
// (spec §4.2 bullets 2-5). Callers hold n.mu.
func (n *Node) processTransactionLocked(tx types.Transaction) error {
	parsed, err := types.ParseData(tx.Data)
	if err != nil {
		return fmt.Errorf("chain %s: %w", n.st.myChain, err)
	}

	switch parsed.Kind {
	case types.KindRegular:
		n.handleRegularLocked(tx.ID, parsed.Op, nil)
	case types.KindDependent:
		catID := parsed.CATId
		n.handleRegularLocked(tx.ID, parsed.Op, &catID)
	case types.KindCAT:
		n.handleCATLocked(tx, parsed.Op)
	case types.KindStatusUpdate:
		return n.handleStatusUpdateLocked(parsed.CATId, parsed.Decision)
	}
	return nil
}

// blockersForKeysLocked returns the distinct CATIds currently holding the
// lock on any of keys.
func (n *Node) blockersForKeysLocked(keys []types.AccountID) []types.CATId {
	seen := make(map[types.CATId]bool)
	var out []types.CATId
	for _, k := range keys {
		owner, locked := n.st.lockedKeys[k]
		if !locked || seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, owner)
	}
	return out
}

// handleRegularLocked processes a Regular transaction, or a Dependent one
// when explicitDep is non-nil: it waits on whichever CATs hold its keys
// plus, for Dependent, the named CAT even absent a key conflict (spec
// §4.2 bullet 2 and the Dependent variant in §6).
func (n *Node) handleRegularLocked(txID types.TransactionId, op types.Op, explicitDep *types.CATId) {
	keys := keysOf(op)
	blockers := n.blockersForKeysLocked(keys)

	if explicitDep != nil {
		if rec, ok := n.st.cats[*explicitDep]; ok && rec.status == types.StatusPending {
			already := false
			for _, b := range blockers {
				if b == *explicitDep {
					already = true
					break
				}
			}
			if !already {
				blockers = append(blockers, *explicitDep)
			}
		}
	}

	if len(blockers) > 0 {
		n.st.txStatus[txID] = types.StatusPending
		n.st.counters.regularPending++
		n.st.addWaiter(txID, blockers, pendingAction{txID: txID, op: op})
		return
	}
	n.executeRegularNowLocked(txID, op)
}

// executeRegularNowLocked runs op against committed balances and records
// its terminal status (spec §4.3/§4.2 bullet 2).
func (n *Node) executeRegularNowLocked(txID types.TransactionId, op types.Op) {
	cs, outcome := vm.Execute(op, n.st.balances)
	if outcome == types.LimitedSuccess {
		vm.Apply(n.st.balances, cs)
	}
	status := outcome.AsTransactionStatus()
	n.st.txStatus[txID] = status
	if status == types.StatusSuccess {
		n.st.counters.regularSuccess++
	} else {
		n.st.counters.regularFailure++
	}
	metrics.TransactionsTotal.WithLabelValues(string(n.st.myChain), string(metrics.ClassRegular), status.String()).Inc()
}

// handleCATLocked processes a CAT transaction: it either acquires its
// keys' locks outright, votes Failure immediately (no pending-dependency
// policy), or executes speculatively and defers its own finalization
// behind the CAT(s) already holding those locks (spec §4.2 bullet 3).
func (n *Node) handleCATLocked(tx types.Transaction, op types.Op) {
	catID := types.CATId(tx.Parent)
	keys := keysOf(op)
	blockers := n.blockersForKeysLocked(keys)

	if len(blockers) == 0 {
		cs, vote := vm.Execute(op, n.st.balances)
		rec := &catRecord{
			vote:         vote,
			delta:        cs,
			lockedKeys:   keySet(keys),
			constituents: tx.ConstituentChains,
			maxLifetime:  n.st.currentBlockHeight + n.st.catLifetimeBlocks,
			status:       types.StatusPending,
		}
		n.st.cats[catID] = rec
		for _, k := range keys {
			n.st.lockedKeys[k] = catID
		}
		n.st.counters.catPending++
		n.bumpCatPendingSubcounter(vote, 1)
		n.sendVoteLocked(catID, vote, tx.ConstituentChains)
		return
	}

	if !n.st.allowCATPendingDependencies {
		rec := &catRecord{
			vote:         types.LimitedFailure,
			delta:        vm.ChangeSet{},
			lockedKeys:   set.New(),
			constituents: tx.ConstituentChains,
			maxLifetime:  n.st.currentBlockHeight + n.st.catLifetimeBlocks,
			status:       types.StatusPending,
		}
		n.st.cats[catID] = rec
		n.st.counters.catPending++
		n.bumpCatPendingSubcounter(types.LimitedFailure, 1)
		n.sendVoteLocked(catID, types.LimitedFailure, tx.ConstituentChains)
		return
	}

	// Speculative execution against committed state, ignoring the
	// conflicting lock: this CAT's own finalization is what gets deferred.
	cs, vote := vm.Execute(op, n.st.balances)
	rec := &catRecord{
		vote:         vote,
		delta:        cs,
		lockedKeys:   keySet(keys),
		constituents: tx.ConstituentChains,
		maxLifetime:  n.st.currentBlockHeight + n.st.catLifetimeBlocks,
		status:       types.StatusPending,
	}
	n.st.cats[catID] = rec
	n.st.counters.catPending++
	n.bumpCatPendingSubcounter(vote, 1)
	n.st.addPureDependency(types.TransactionId(catID), blockers)
	n.sendVoteLocked(catID, vote, tx.ConstituentChains)
}

// bumpCatPendingSubcounter adjusts the resolving/postponed pending split by
// delta (+1 on creation, -1 on finalization): resolving counts a proposed
// Success vote, postponed counts a proposed Failure vote, since HS's
// eventual decision tracks this HIG's own vote regardless of whether the
// CAT had to wait behind a lock before voting.
func (n *Node) bumpCatPendingSubcounter(vote types.StatusLimited, delta int) {
	if vote == types.LimitedSuccess {
		n.st.counters.catPendingResolving += delta
	} else {
		n.st.counters.catPendingPostponed += delta
	}
	metrics.CATPending.WithLabelValues(string(n.st.myChain), "resolving").Set(float64(n.st.counters.catPendingResolving))
	metrics.CATPending.WithLabelValues(string(n.st.myChain), "postponed").Set(float64(n.st.counters.catPendingPostponed))
}

func keySet(keys []types.AccountID) *set.Set {
	s := set.New()
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// sendVoteLocked queues this chain's CATVote for delayed delivery to HS,
// dropping (with a log) if the outbound queue is saturated rather than
// blocking the processing loop.
func (n *Node) sendVoteLocked(catID types.CATId, vote types.StatusLimited, constituents []types.ChainId) {
	v := types.CATVote{CATId: catID, ChainId: n.st.myChain, Vote: vote, Constituents: constituents}
	select {
	case n.voteOut <- v:
	default:
		n.logger.Warnw("vote queue full, dropping vote", "cat", catID, "chain", n.st.myChain)
	}
}

// handleStatusUpdateLocked applies or discards a CAT's decision, or
// defers doing so if this CAT is itself still waiting on other CATs
// (spec §4.2 bullet 5, §4.2 bullet 3).
func (n *Node) handleStatusUpdateLocked(catID types.CATId, decision types.StatusLimited) error {
	rec, ok := n.st.cats[catID]
	if !ok {
		n.logger.Warnw("status update for unknown CAT", "cat", catID)
		return nil
	}

	if rec.status != types.StatusPending {
		// Already terminal, via a local timeout or an earlier status
		// update. A later Success contradicting a Failure outcome is the
		// fatal violation regardless of how this CAT reached Failure; a
		// later Failure (including one that just confirms a local
		// timeout, or a plain duplicate update) is an idempotent no-op.
		if decision == types.LimitedSuccess && rec.status != types.StatusSuccess {
			return fmt.Errorf("%w: cat %s", ErrCATTimeoutContradiction, catID)
		}
		return nil
	}

	if n.st.isBlocked(types.TransactionId(catID)) {
		n.st.setAction(types.TransactionId(catID), pendingAction{isCATFinalize: true, catID: catID, decision: decision})
		return nil
	}

	n.finalizeCATLocked(catID, decision)
	return nil
}

// finalizeCATLocked applies catID's decision, releases its locks, and
// cascades to whatever it was blocking.
func (n *Node) finalizeCATLocked(catID types.CATId, decision types.StatusLimited) {
	rec := n.st.cats[catID]
	if decision == types.LimitedSuccess {
		vm.Apply(n.st.balances, rec.delta)
	}
	rec.status = decision.AsTransactionStatus()

	for _, kv := range rec.lockedKeys.List() {
		k := kv.(types.AccountID)
		if owner, ok := n.st.lockedKeys[k]; ok && owner == catID {
			delete(n.st.lockedKeys, k)
		}
	}

	n.st.counters.catPending--
	n.bumpCatPendingSubcounter(rec.vote, -1)
	if rec.status == types.StatusSuccess {
		n.st.counters.catSuccess++
	} else {
		n.st.counters.catFailure++
	}
	metrics.TransactionsTotal.WithLabelValues(string(n.st.myChain), string(metrics.ClassCAT), rec.status.String()).Inc()

	ready := n.st.releaseWaiters(catID)
	n.executeReadyLocked(ready)
}

// executeReadyLocked runs whatever unblocked transactions/CAT-finalizations
// releaseWaiters returned, in the FIFO order they were queued in.
func (n *Node) executeReadyLocked(ready []types.TransactionId) {
	for _, txID := range ready {
		if rec, ok := n.st.cats[types.CATId(txID)]; ok {
			// A dependent CAT's keys are free now; it claims them and, if
			// its own decision already arrived, finalizes immediately.
			for _, kv := range rec.lockedKeys.List() {
				k := kv.(types.AccountID)
				n.st.lockedKeys[k] = types.CATId(txID)
			}
			if action, has := n.st.takeAction(txID); has && action.isCATFinalize {
				n.finalizeCATLocked(action.catID, action.decision)
			}
			continue
		}
		action, has := n.st.takeAction(txID)
		if !has {
			continue
		}
		n.st.counters.regularPending--
		n.executeRegularNowLocked(action.txID, action.op)
	}
}
