package types

import "fmt"

// Transaction is one chain-scoped constituent of a CLTransaction: it
// carries the full constituent-chain set (so a HIG can recover a CAT's
// quorum without consulting CL again) but is targeted at exactly one
// chain.
type Transaction struct {
	ID                TransactionId
	TargetChain       ChainId
	ConstituentChains []ChainId
	Data              string
	Parent            CLTransactionId
}

// NewTransaction validates Data against spec §6's grammar before
// constructing the Transaction, per the teacher's NewXxx-validates idiom.
func NewTransaction(id TransactionId, target ChainId, constituents []ChainId, data string, parent CLTransactionId) (Transaction, error) {
	if _, err := ParseData(data); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:                id,
		TargetChain:       target,
		ConstituentChains: constituents,
		Data:              data,
		Parent:            parent,
	}, nil
}

// CLTransaction is a client submission: one Transaction per constituent
// chain, sharing a single id and constituent set. A regular transaction
// has a singleton constituent set; a CAT has two or more, and its id
// doubles as the CATId once a HIG sees it (spec §3).
type CLTransaction struct {
	ID                CLTransactionId
	ConstituentChains []ChainId
	Transactions      []Transaction
}

// IsCAT reports whether this submission spans more than one chain.
func (t CLTransaction) IsCAT() bool {
	return len(t.ConstituentChains) > 1
}

// CATId returns this submission's CATId. Only meaningful when IsCAT().
func (t CLTransaction) CATId() CATId {
	return CATId(t.ID)
}

// Validate enforces the CLTransaction invariant from spec §3: each inner
// Transaction's target chain appears exactly once in the constituent set,
// and every constituent chain has exactly one Transaction.
func (t CLTransaction) Validate() error {
	seen := make(map[ChainId]bool, len(t.ConstituentChains))
	for _, c := range t.ConstituentChains {
		if seen[c] {
			return fmt.Errorf("constituent chain %q listed more than once", c)
		}
		seen[c] = true
	}
	covered := make(map[ChainId]bool, len(t.Transactions))
	for _, tx := range t.Transactions {
		if !seen[tx.TargetChain] {
			return fmt.Errorf("transaction targets unlisted chain %q", tx.TargetChain)
		}
		if covered[tx.TargetChain] {
			return fmt.Errorf("chain %q has more than one inner transaction", tx.TargetChain)
		}
		covered[tx.TargetChain] = true
	}
	if len(covered) != len(seen) {
		return fmt.Errorf("constituent chain set and inner transactions disagree")
	}
	return nil
}

// NewCATSubmission builds a CLTransaction for a CAT spanning the given
// chains, one identical op on every constituent chain. There is no
// constructor for a different op per chain; such a submission is built
// as a CLTransaction literal and checked with Validate.
func NewCATSubmission(id CLTransactionId, chains []ChainId, op Op) (CLTransaction, error) {
	data := FormatCAT(op)
	txs := make([]Transaction, 0, len(chains))
	for _, c := range chains {
		tx, err := NewTransaction(TransactionId(id), c, chains, data, id)
		if err != nil {
			return CLTransaction{}, err
		}
		txs = append(txs, tx)
	}
	cl := CLTransaction{ID: id, ConstituentChains: chains, Transactions: txs}
	return cl, cl.Validate()
}

// NewRegularSubmission builds a single-chain CLTransaction.
func NewRegularSubmission(id CLTransactionId, chain ChainId, op Op) (CLTransaction, error) {
	data := FormatRegular(op)
	tx, err := NewTransaction(TransactionId(id), chain, []ChainId{chain}, data, id)
	if err != nil {
		return CLTransaction{}, err
	}
	cl := CLTransaction{ID: id, ConstituentChains: []ChainId{chain}, Transactions: []Transaction{tx}}
	return cl, cl.Validate()
}

// NewStatusUpdateSubmission builds the CLTransaction HS submits back
// through CL for a single target chain once a CAT's decision is final.
func NewStatusUpdateSubmission(catID CATId, chain ChainId, decision StatusLimited) (CLTransaction, error) {
	data := FormatStatusUpdate(decision, catID)
	id := CLTransactionId(fmt.Sprintf("%s.UPDATE.%s", catID, chain))
	tx, err := NewTransaction(TransactionId(id), chain, []ChainId{chain}, data, CLTransactionId(catID))
	if err != nil {
		return CLTransaction{}, err
	}
	return CLTransaction{ID: id, ConstituentChains: []ChainId{chain}, Transactions: []Transaction{tx}}, nil
}
