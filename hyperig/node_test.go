package hyperig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catprotocol/catprotocol/types"
)

const chainA = types.ChainId("A")

func newTestNode(t *testing.T, allowDeps bool) *Node {
	t.Helper()
	cfg := Config{
		Chain:                       chainA,
		InitialBalance:              1000,
		NumAccounts:                 10,
		CATLifetimeBlocks:           3,
		AllowCATPendingDependencies: allowDeps,
	}
	return New(cfg, make(chan types.CATVote, 16), 16)
}

func sb(height uint64, txs ...types.Transaction) types.SubBlock {
	return types.SubBlock{BlockHeight: height, ChainId: chainA, Transactions: txs}
}

func regularTx(id string, op types.Op) types.Transaction {
	return types.Transaction{ID: types.TransactionId(id), TargetChain: chainA, ConstituentChains: []types.ChainId{chainA}, Data: types.FormatRegular(op)}
}

func dependentTx(id string, op types.Op, on types.CATId) types.Transaction {
	return types.Transaction{ID: types.TransactionId(id), TargetChain: chainA, ConstituentChains: []types.ChainId{chainA}, Data: types.FormatDependent(op, on)}
}

func catTx(catID string, constituents []types.ChainId, op types.Op) types.Transaction {
	return types.Transaction{
		ID:                types.TransactionId(catID),
		TargetChain:       chainA,
		ConstituentChains: constituents,
		Data:              types.FormatCAT(op),
		Parent:            types.CLTransactionId(catID),
	}
}

func statusUpdateTx(catID string, decision types.StatusLimited) types.Transaction {
	return types.Transaction{
		ID:          types.TransactionId(catID + ".update"),
		TargetChain: chainA,
		Data:        types.FormatStatusUpdate(decision, types.CATId(catID)),
	}
}

func TestProcessSubBlockRejectsWrongChain(t *testing.T) {
	n := newTestNode(t, false)
	err := n.ProcessSubBlock(types.SubBlock{BlockHeight: 1, ChainId: "B"})
	assert.ErrorIs(t, err, ErrWrongChainId)
}

func TestRegularCreditSucceeds(t *testing.T) {
	n := newTestNode(t, false)
	tx := regularTx("r1", types.Op{Credit: true, To: 1, Amount: 50})
	require.NoError(t, n.ProcessSubBlock(sb(1, tx)))

	status, err := n.GetTransactionStatus(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)
	assert.EqualValues(t, 1050, n.GetChainState()[1])
}

func TestRegularSendInsufficientBalanceFails(t *testing.T) {
	n := newTestNode(t, false)
	tx := regularTx("r1", types.Op{From: 2, To: 3, Amount: 100000})
	require.NoError(t, n.ProcessSubBlock(sb(1, tx)))

	status, err := n.GetTransactionStatus(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailure, status)
}

func TestCATAcquiresLocksAndVotes(t *testing.T) {
	n := newTestNode(t, false)
	tx := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	require.NoError(t, n.ProcessSubBlock(sb(1, tx)))

	assert.Equal(t, 2, n.LockedKeyCount())
	vote, ok := n.GetProposedCATStatus(types.CATId("cat1"))
	require.True(t, ok)
	assert.Equal(t, types.LimitedSuccess, vote)

	select {
	case v := <-n.voteOut:
		assert.Equal(t, types.CATId("cat1"), v.CATId)
		assert.Equal(t, chainA, v.ChainId)
		assert.Equal(t, types.LimitedSuccess, v.Vote)
	default:
		t.Fatal("expected a queued vote")
	}
}

func TestCATStatusUpdateAppliesDeltaAndReleasesLocks(t *testing.T) {
	n := newTestNode(t, false)
	cat := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	require.NoError(t, n.ProcessSubBlock(sb(1, cat)))
	require.NoError(t, n.ProcessSubBlock(sb(2, statusUpdateTx("cat1", types.LimitedSuccess))))

	assert.Equal(t, 0, n.LockedKeyCount())
	state := n.GetChainState()
	assert.EqualValues(t, 990, state[1])
	assert.EqualValues(t, 1010, state[2])
	counters := n.GetCounters()
	assert.Equal(t, 1, counters.CATSuccess)
	assert.Equal(t, 0, counters.CATPending)
}

func TestCATStatusUpdateFailureDiscardsDelta(t *testing.T) {
	n := newTestNode(t, false)
	cat := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	require.NoError(t, n.ProcessSubBlock(sb(1, cat)))
	require.NoError(t, n.ProcessSubBlock(sb(2, statusUpdateTx("cat1", types.LimitedFailure))))

	state := n.GetChainState()
	assert.EqualValues(t, 1000, state[1])
	assert.EqualValues(t, 1000, state[2])
	counters := n.GetCounters()
	assert.Equal(t, 1, counters.CATFailure)
}

func TestRegularBlockedByLockedKeyRunsOnceReleased(t *testing.T) {
	n := newTestNode(t, false)
	cat := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	regular := regularTx("r1", types.Op{From: 1, To: 3, Amount: 5})
	require.NoError(t, n.ProcessSubBlock(sb(1, cat, regular)))

	status, err := n.GetTransactionStatus(regular.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, status)

	require.NoError(t, n.ProcessSubBlock(sb(2, statusUpdateTx("cat1", types.LimitedSuccess))))

	status, err = n.GetTransactionStatus(regular.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)
	assert.EqualValues(t, 985, n.GetChainState()[1])
}

func TestDependentWaitsOnNamedCATWithoutKeyConflict(t *testing.T) {
	n := newTestNode(t, false)
	cat := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	dep := dependentTx("d1", types.Op{Credit: true, To: 9, Amount: 1}, types.CATId("cat1"))
	require.NoError(t, n.ProcessSubBlock(sb(1, cat, dep)))

	status, err := n.GetTransactionStatus(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, status)

	require.NoError(t, n.ProcessSubBlock(sb(2, statusUpdateTx("cat1", types.LimitedSuccess))))
	status, err = n.GetTransactionStatus(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)
}

func TestCATConflictVotesFailureWhenDependenciesNotAllowed(t *testing.T) {
	n := newTestNode(t, false)
	first := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	second := catTx("cat2", []types.ChainId{"A", "C"}, types.Op{From: 1, To: 4, Amount: 5})
	require.NoError(t, n.ProcessSubBlock(sb(1, first, second)))

	vote, ok := n.GetProposedCATStatus(types.CATId("cat2"))
	require.True(t, ok)
	assert.Equal(t, types.LimitedFailure, vote)
}

func TestCATConflictDefersFinalizationWhenDependenciesAllowed(t *testing.T) {
	n := newTestNode(t, true)
	first := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	second := catTx("cat2", []types.ChainId{"A", "C"}, types.Op{From: 1, To: 4, Amount: 5})
	require.NoError(t, n.ProcessSubBlock(sb(1, first, second)))

	// cat2 executed speculatively against pre-cat1 state and voted
	// immediately, even though cat1 still holds account 1's lock.
	vote, ok := n.GetProposedCATStatus(types.CATId("cat2"))
	require.True(t, ok)
	assert.Equal(t, types.LimitedSuccess, vote)
	assert.Equal(t, 2, n.LockedKeyCount()) // cat1 still owns account 1 and 2

	// cat2's own status update arrives before cat1's: it must be held
	// until cat1 finalizes and releases account 1.
	require.NoError(t, n.ProcessSubBlock(sb(2, statusUpdateTx("cat2", types.LimitedSuccess))))
	counters := n.GetCounters()
	assert.Equal(t, 2, counters.CATPending)

	require.NoError(t, n.ProcessSubBlock(sb(3, statusUpdateTx("cat1", types.LimitedSuccess))))
	counters = n.GetCounters()
	assert.Equal(t, 0, counters.CATPending)
	assert.Equal(t, 2, counters.CATSuccess)
	assert.Equal(t, 0, n.LockedKeyCount())
}

func TestTimeoutSweepAbortsExpiredCATAndContradictionIsFatal(t *testing.T) {
	n := newTestNode(t, false)
	cat := catTx("cat1", []types.ChainId{"A", "B"}, types.Op{From: 1, To: 2, Amount: 10})
	require.NoError(t, n.ProcessSubBlock(sb(1, cat))) // maxLifetime = 1 + 3 = 4

	require.NoError(t, n.ProcessSubBlock(sb(5, regularTx("noop", types.Op{Credit: true, To: 9, Amount: 1}))))

	counters := n.GetCounters()
	assert.Equal(t, 1, counters.CATFailure)
	assert.Equal(t, 0, n.LockedKeyCount())

	err := n.ProcessSubBlock(sb(6, statusUpdateTx("cat1", types.LimitedSuccess)))
	assert.ErrorIs(t, err, ErrCATTimeoutContradiction)
}
