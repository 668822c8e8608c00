package hyperig

import (
	"github.com/catprotocol/catprotocol/types"
	"github.com/catprotocol/catprotocol/vm"
	set "gopkg.in/fatih/set.v0"
)

// catRecord is everything a HIG tracks about one CAT from the moment it
// first sees it until it is forgotten.
type catRecord struct {
	vote         types.StatusLimited
	delta        vm.ChangeSet
	lockedKeys   *set.Set // AccountID values this CAT needs/owns the lock on
	constituents []types.ChainId
	maxLifetime  uint64 // block height past which the timeout sweep aborts this CAT
	status       types.TransactionStatus

	// timedOut is set by the timeout sweep when this CAT is aborted
	// locally before HS's decision arrives; a later Success status update
	// for a timed-out CAT is the contradiction spec §7 names.
	timedOut bool
}

// pendingAction is what to do once a blocked transaction's dependency set
// drains to empty: either execute a deferred regular op, or finally apply
// a CAT decision that had to wait on other CATs to finalise first (spec
// §4.2 bullet 3's "allow_cat_pending_dependencies" policy).
type pendingAction struct {
	isCATFinalize bool

	// regular/dependent case
	txID types.TransactionId
	op   types.Op

	// CAT-finalize case
	catID    types.CATId
	decision types.StatusLimited
}

// state is the mutex-guarded internals of a HIG. Everything that isn't a
// channel lives here, mirroring the teacher's worker/Task split
// (work/worker.go): the processing loop and every public accessor take
// the same lock for short critical sections.
type state struct {
	myChain types.ChainId

	balances map[types.AccountID]int64

	txStatus map[types.TransactionId]types.TransactionStatus

	cats map[types.CATId]*catRecord

	// lockedKeys maps a locked account to the CATId that owns the lock.
	lockedKeys map[types.AccountID]types.CATId

	// waitingFor[t] is the set of CATIds t is still waiting on;
	// waitersOf[c] is the ordered list of ids waiting on CATId c. Both
	// are id-indexed maps, no direct references, per spec §9's design
	// note on representing the CAT/waiter graph.
	waitingFor map[types.TransactionId]*set.Set
	waitersOf  map[types.CATId][]types.TransactionId
	actions    map[types.TransactionId]pendingAction

	currentBlockHeight uint64

	catLifetimeBlocks           uint64
	allowCATPendingDependencies bool

	counters counters
}

// counters tallies the invariants spec §8 tests: pending+success+failure
// per class equals transactions seen of that class, and the
// resolving/postponed CAT-pending split.
type counters struct {
	regularPending, regularSuccess, regularFailure int
	catPending, catSuccess, catFailure             int
	catPendingResolving, catPendingPostponed       int
}

func newState(chain types.ChainId, initialBalance int64, numAccounts uint32, catLifetimeBlocks uint64, allowDeps bool) *state {
	balances := make(map[types.AccountID]int64, numAccounts)
	for i := uint32(0); i < numAccounts; i++ {
		balances[types.AccountID(i)] = initialBalance
	}
	return &state{
		myChain:                     chain,
		balances:                    balances,
		txStatus:                    make(map[types.TransactionId]types.TransactionStatus),
		cats:                        make(map[types.CATId]*catRecord),
		lockedKeys:                  make(map[types.AccountID]types.CATId),
		waitingFor:                  make(map[types.TransactionId]*set.Set),
		waitersOf:                   make(map[types.CATId][]types.TransactionId),
		actions:                     make(map[types.TransactionId]pendingAction),
		catLifetimeBlocks:           catLifetimeBlocks,
		allowCATPendingDependencies: allowDeps,
	}
}

// keysOf returns the account ids op reads or writes.
func keysOf(op types.Op) []types.AccountID {
	if op.Credit {
		return []types.AccountID{op.To}
	}
	if op.From == op.To {
		return []types.AccountID{op.From}
	}
	return []types.AccountID{op.From, op.To}
}

// addWaiter registers txID as waiting on blockers, recording the id-level
// links in both directions (spec §9).
func (s *state) addWaiter(txID types.TransactionId, blockers []types.CATId, action pendingAction) {
	deps, ok := s.waitingFor[txID]
	if !ok {
		deps = set.New()
		s.waitingFor[txID] = deps
	}
	for _, c := range blockers {
		if deps.Has(c) {
			continue
		}
		deps.Add(c)
		s.waitersOf[c] = append(s.waitersOf[c], txID)
	}
	s.actions[txID] = action
}

// releaseWaiters drains catID's waiter list, returning the ids that are
// now fully unblocked (dependency set empty), in FIFO order.
func (s *state) releaseWaiters(catID types.CATId) []types.TransactionId {
	waiters := s.waitersOf[catID]
	delete(s.waitersOf, catID)

	var ready []types.TransactionId
	for _, txID := range waiters {
		deps := s.waitingFor[txID]
		if deps == nil {
			continue
		}
		deps.Remove(catID)
		if deps.Size() == 0 {
			delete(s.waitingFor, txID)
			ready = append(ready, txID)
		}
	}
	return ready
}

// addPureDependency records txID as waiting on blockers without attaching
// a deferred action: used when a CAT's own finalization must wait on
// other CATs (spec §4.2 bullet 3) and the decision to act on is not known
// yet — it arrives later via a status update and is stored then with
// setAction below.
func (s *state) addPureDependency(txID types.TransactionId, blockers []types.CATId) {
	deps, ok := s.waitingFor[txID]
	if !ok {
		deps = set.New()
		s.waitingFor[txID] = deps
	}
	for _, c := range blockers {
		if deps.Has(c) {
			continue
		}
		deps.Add(c)
		s.waitersOf[c] = append(s.waitersOf[c], txID)
	}
}

// isBlocked reports whether txID is still waiting on any CAT.
func (s *state) isBlocked(txID types.TransactionId) bool {
	deps, ok := s.waitingFor[txID]
	return ok && deps.Size() > 0
}

// setAction stashes a deferred action to run once txID unblocks.
func (s *state) setAction(txID types.TransactionId, action pendingAction) {
	s.actions[txID] = action
}

// takeAction removes and returns the action stashed for txID, if any.
func (s *state) takeAction(txID types.TransactionId) (pendingAction, bool) {
	a, ok := s.actions[txID]
	if ok {
		delete(s.actions, txID)
	}
	return a, ok
}
