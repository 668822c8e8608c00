// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package vm implements the mock execution engine every HIG runs
// transactions through: two stateless opcodes over a key-value snapshot
// (spec §4.3). It never mutates its input state; callers apply the
// returned change-set themselves, which is what lets a HIG execute a CAT
// speculatively without touching committed state, and defer applying it
// until the CAT's decision lands.
package vm

import "github.com/catprotocol/catprotocol/types"

// ChangeSet maps an account to the delta Apply should add to its current
// balance. Deltas, not absolute values, are what let a CAT's change-set
// stay correct even when applied after other, unrelated state changes
// (spec §8 invariant 5 talks of "balance deltas").
type ChangeSet map[types.AccountID]int64

// Execute runs a single parsed op against state and returns the
// change-set to apply on success (empty on failure) plus the outcome.
//
//   - credit <account> <amount>: always succeeds; change-set credits
//     account by amount.
//   - send <from> <to> <amount>: succeeds iff state[from] >= amount;
//     change-set debits from and credits to by amount.
func Execute(op types.Op, state map[types.AccountID]int64) (ChangeSet, types.StatusLimited) {
	if op.Credit {
		return ChangeSet{op.To: int64(op.Amount)}, types.LimitedSuccess
	}
	if state[op.From] < int64(op.Amount) {
		return ChangeSet{}, types.LimitedFailure
	}
	if op.From == op.To {
		return ChangeSet{op.From: 0}, types.LimitedSuccess
	}
	return ChangeSet{
		op.From: -int64(op.Amount),
		op.To:   int64(op.Amount),
	}, types.LimitedSuccess
}

// Apply adds every entry of cs to the corresponding key in state.
func Apply(state map[types.AccountID]int64, cs ChangeSet) {
	for k, delta := range cs {
		state[k] += delta
	}
}
