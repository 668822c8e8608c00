package types

// CATVote is the message a HIG sends to HS once it has formed a local
// opinion on a CAT: "chain voted status, and here are the chains I
// believe must also vote before this resolves" (spec §4.2/§4.4).
type CATVote struct {
	CATId        CATId
	ChainId      ChainId
	Vote         StatusLimited
	Constituents []ChainId
}
