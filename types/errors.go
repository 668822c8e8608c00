package types

import "errors"

// ErrMalformedTransactionData is returned by ParseData and by the
// CLTransaction/Transaction constructors when a data string matches none
// of the four wire shapes in spec §6. It is a construction-time error: it
// must never be observed at subblock-processing time (spec §7).
var ErrMalformedTransactionData = errors.New("malformed transaction data")
