// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package config holds the configuration surface spec §6 names: every
// knob the core consumes, with a DefaultConfig in the style of the
// teacher's gxp.DefaultConfig package var, and TOML file loading.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
)

// Config is the full set of values the core consumes, per spec §6.
type Config struct {
	// BlockInterval is how often CL ticks and produces a block. Must be
	// positive (spec §4.1's InvalidBlockInterval rejects zero).
	BlockInterval time.Duration

	// NumChains and PerChainDelay configure how many HIGs to stand up and
	// the artificial outbound-vote delay each one applies (spec §4.2).
	NumChains     int
	PerChainDelay map[string]time.Duration

	// CATLifetimeBlocks is the number of blocks after creation before a
	// HIG locally times out a pending CAT (spec §3/§4.2).
	CATLifetimeBlocks uint64

	// AllowCATPendingDependencies selects the §4.2 bullet-3 policy for a
	// CAT that touches an already-locked key: proceed speculatively and
	// record a dependency edge (true), or vote Failure immediately
	// (false).
	AllowCATPendingDependencies bool

	// InitialBalance and NumAccounts preload each HIG's chain state.
	InitialBalance int64
	NumAccounts    uint32

	// ChannelBufferSize bounds every inter-node channel.
	ChannelBufferSize int
}

// DefaultConfig mirrors the teacher's package-level DefaultConfig var: a
// ready-to-run baseline a caller tweaks field by field.
var DefaultConfig = Config{
	BlockInterval:               100 * time.Millisecond,
	NumChains:                   2,
	PerChainDelay:               map[string]time.Duration{},
	CATLifetimeBlocks:           4,
	AllowCATPendingDependencies: false,
	InitialBalance:              1000,
	NumAccounts:                 10,
	ChannelBufferSize:           256,
}

// LoadFile reads a TOML config file and overlays it on DefaultConfig.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig
	cfg.PerChainDelay = make(map[string]time.Duration, len(DefaultConfig.PerChainDelay))
	for k, v := range DefaultConfig.PerChainDelay {
		cfg.PerChainDelay[k] = v
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the core would reject anyway, early.
func (c Config) Validate() error {
	if c.BlockInterval <= 0 {
		return fmt.Errorf("block interval must be positive")
	}
	if c.CATLifetimeBlocks == 0 {
		return fmt.Errorf("cat lifetime must be positive")
	}
	if c.ChannelBufferSize <= 0 {
		return fmt.Errorf("channel buffer size must be positive")
	}
	if c.NumAccounts == 0 {
		return fmt.Errorf("num accounts must be positive")
	}
	return nil
}
