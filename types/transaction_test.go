package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRejectsMalformedData(t *testing.T) {
	_, err := NewTransaction(TransactionId("t1"), ChainId("A"), []ChainId{"A"}, "not a real op", CLTransactionId("cl1"))
	assert.ErrorIs(t, err, ErrMalformedTransactionData)
}

func TestNewRegularSubmissionValidates(t *testing.T) {
	cl, err := NewRegularSubmission(CLTransactionId("cl1"), ChainId("A"), Op{Credit: true, To: 1, Amount: 10})
	require.NoError(t, err)
	assert.False(t, cl.IsCAT())
	assert.Len(t, cl.Transactions, 1)
}

func TestNewCATSubmissionValidates(t *testing.T) {
	chains := []ChainId{"A", "B"}
	cl, err := NewCATSubmission(CLTransactionId("cat1"), chains, Op{Credit: false, From: 1, To: 2, Amount: 5})
	require.NoError(t, err)
	assert.True(t, cl.IsCAT())
	assert.Equal(t, CATId("cat1"), cl.CATId())
	assert.Len(t, cl.Transactions, 2)
	assert.NoError(t, cl.Validate())
}

func TestCLTransactionValidateRejectsDuplicateConstituent(t *testing.T) {
	cl := CLTransaction{
		ID:                CLTransactionId("dup"),
		ConstituentChains: []ChainId{"A", "A"},
	}
	assert.Error(t, cl.Validate())
}

func TestCLTransactionValidateRejectsUnlistedTarget(t *testing.T) {
	tx, err := NewTransaction(TransactionId("t1"), ChainId("B"), []ChainId{"A"}, FormatRegular(Op{Credit: true, To: 1, Amount: 1}), CLTransactionId("cl1"))
	require.NoError(t, err)
	cl := CLTransaction{
		ID:                CLTransactionId("cl1"),
		ConstituentChains: []ChainId{"A"},
		Transactions:      []Transaction{tx},
	}
	assert.Error(t, cl.Validate())
}

func TestCLTransactionValidateRejectsMissingCoverage(t *testing.T) {
	cl := CLTransaction{
		ID:                CLTransactionId("cl1"),
		ConstituentChains: []ChainId{"A", "B"},
		Transactions:      nil,
	}
	assert.Error(t, cl.Validate())
}

func TestNewStatusUpdateSubmission(t *testing.T) {
	cl, err := NewStatusUpdateSubmission(CATId("cat1"), ChainId("A"), LimitedFailure)
	require.NoError(t, err)
	require.Len(t, cl.Transactions, 1)
	parsed, err := ParseData(cl.Transactions[0].Data)
	require.NoError(t, err)
	assert.Equal(t, KindStatusUpdate, parsed.Kind)
	assert.Equal(t, LimitedFailure, parsed.Decision)
	assert.Equal(t, CATId("cat1"), parsed.CATId)
}
