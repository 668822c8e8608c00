// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.
//
// The catprotocol library is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// The catprotocol library is distributed in the hope that it will be
// useful, but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Lesser
// General Public License for more details.

// Package types holds the wire-level data model shared by the
// confirmation layer, the hyper information gateways and the hyper
// scheduler: chain/transaction identifiers, the transaction envelopes that
// travel between nodes, and the grammar that gives a transaction's data
// field its meaning.
package types

import uuid "github.com/satori/go.uuid"

// ChainId names one of the chains participating in the protocol.
type ChainId string

// CLTransactionId uniquely identifies a client submission to the
// confirmation layer. For a CAT submission this value also serves as the
// CATId.
type CLTransactionId string

// TransactionId uniquely identifies a chain-scoped sub-transaction, i.e.
// one of a CLTransaction's per-chain constituents.
type TransactionId string

// CATId identifies a cross-chain atomic transaction. It is always equal to
// the CLTransactionId of the CAT's original submission.
type CATId string

// AccountID is the key space the mock VM and HIG balances operate over.
type AccountID uint32

// NewCLTransactionID returns a fresh random CLTransactionId, for callers
// (tests, the demo CLI) that don't need a specific, predictable one.
func NewCLTransactionID() CLTransactionId {
	return CLTransactionId(uuid.NewV4().String())
}

// NewTransactionID returns a fresh random TransactionId.
func NewTransactionID() TransactionId {
	return TransactionId(uuid.NewV4().String())
}
