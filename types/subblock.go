package types

// SubBlock is the slice of a CL block containing only one chain's
// transactions, in the order their parent CLTransactions arrived at CL
// (spec §3/§4.1).
type SubBlock struct {
	BlockHeight  uint64
	ChainId      ChainId
	Transactions []Transaction
}
