// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package metrics exposes the counters and gauges every node registers:
// per-(chain,class,status) transaction tallies and per-chain locked-key
// counts (spec §3/§6), generalizing the teacher's flat
// metrics.NewRegisteredCounter registry (work/worker.go) to labeled
// vectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Class distinguishes regular transactions from CATs for tallying
// purposes, per spec §3's "per-status x per-class tallies".
type Class string

const (
	ClassRegular Class = "regular"
	ClassCAT     Class = "cat"
)

var (
	// TransactionsTotal counts terminal transitions, labeled by chain,
	// class and the terminal status reached.
	TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catprotocol",
		Subsystem: "hig",
		Name:      "transactions_total",
		Help:      "Transactions that reached a terminal status, by chain/class/status.",
	}, []string{"chain", "class", "status"})

	// CATPending tracks the resolving/postponed sub-split of pending
	// CATs described in spec §3/§4.2.
	CATPending = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "catprotocol",
		Subsystem: "hig",
		Name:      "cat_pending",
		Help:      "Pending CATs by chain and resolving/postponed sub-class.",
	}, []string{"chain", "subclass"})

	// LockedKeys is the current size of a HIG's locked_keys set.
	LockedKeys = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "catprotocol",
		Subsystem: "hig",
		Name:      "locked_keys",
		Help:      "Number of keys currently pessimistically locked, by chain.",
	}, []string{"chain"})

	// BlocksProduced counts CL block-production ticks.
	BlocksProduced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catprotocol",
		Subsystem: "cl",
		Name:      "blocks_produced_total",
		Help:      "Blocks produced by the confirmation layer.",
	})

	// CATDecisions counts HS decisions by outcome.
	CATDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catprotocol",
		Subsystem: "hs",
		Name:      "cat_decisions_total",
		Help:      "CAT decisions emitted by the hyper scheduler, by outcome.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(TransactionsTotal, CATPending, LockedKeys, BlocksProduced, CATDecisions)
}
