// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Command catsim wires a confirmation layer, one hyper information
// gateway per configured chain, and a hyper scheduler together, runs a
// small fixed scenario through them, and prints the resulting chain
// state. It is a wiring demo, not the full workload generator spec §1
// puts out of scope.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"

	"github.com/catprotocol/catprotocol/config"
	"github.com/catprotocol/catprotocol/confirmationlayer"
	"github.com/catprotocol/catprotocol/hyperig"
	"github.com/catprotocol/catprotocol/hyperscheduler"
	catlog "github.com/catprotocol/catprotocol/log"
	"github.com/catprotocol/catprotocol/types"
)

var logger = catlog.NewModuleLogger("catsim")

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML config file overlaid on the defaults",
	}
	durationFlag = cli.DurationFlag{
		Name:  "duration",
		Usage: "how long to let the simulation run before reporting",
		Value: 2 * time.Second,
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "log at debug level",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "catsim"
	app.Usage = "run a fixed cross-chain atomic transaction scenario"
	app.Flags = []cli.Flag{configFlag, durationFlag, verboseFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Errorw("catsim exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool(verboseFlag.Name) {
		catlog.SetLevel(zapcore.DebugLevel)
	}

	cfg := config.DefaultConfig
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim, err := newSimulation(cfg)
	if err != nil {
		return err
	}
	sim.start(ctx)
	defer sim.shutdown()

	sim.submitScenario()

	select {
	case <-ctx.Done():
	case <-time.After(c.Duration(durationFlag.Name)):
	}

	sim.report()
	return nil
}

// simulation bundles one CL, one HIG per chain, and one HS — the smallest
// complete instance of the protocol spec §2 describes.
type simulation struct {
	cfg    config.Config
	chains []types.ChainId

	cl   *confirmationlayer.Node
	higs map[types.ChainId]*hyperig.Node
	hs   *hyperscheduler.Node

	subblocks map[types.ChainId]chan types.SubBlock
	votes     chan types.CATVote
	hsToCL    chan types.CLTransaction
}

func newSimulation(cfg config.Config) (*simulation, error) {
	hsToCL := make(chan types.CLTransaction, cfg.ChannelBufferSize)
	cl, err := confirmationlayer.New(cfg.BlockInterval, hsToCL)
	if err != nil {
		return nil, err
	}

	sim := &simulation{
		cfg:       cfg,
		cl:        cl,
		higs:      make(map[types.ChainId]*hyperig.Node, cfg.NumChains),
		hs:        hyperscheduler.New(hyperscheduler.ChannelSubmitter(hsToCL)),
		subblocks: make(map[types.ChainId]chan types.SubBlock, cfg.NumChains),
		votes:     make(chan types.CATVote, cfg.ChannelBufferSize),
		hsToCL:    hsToCL,
	}

	for i := 0; i < cfg.NumChains; i++ {
		chain := types.ChainId(fmt.Sprintf("chain-%d", i))
		sim.chains = append(sim.chains, chain)

		outbound := make(chan types.SubBlock, cfg.ChannelBufferSize)
		if _, err := cl.RegisterChain(chain, outbound); err != nil {
			return nil, fmt.Errorf("registering %s: %w", chain, err)
		}
		sim.subblocks[chain] = outbound

		higCfg := hyperig.Config{
			Chain:                       chain,
			InitialBalance:              cfg.InitialBalance,
			NumAccounts:                 cfg.NumAccounts,
			CATLifetimeBlocks:           cfg.CATLifetimeBlocks,
			AllowCATPendingDependencies: cfg.AllowCATPendingDependencies,
			VoteDelay:                   cfg.PerChainDelay[string(chain)],
		}
		sim.higs[chain] = hyperig.New(higCfg, sim.votes, cfg.ChannelBufferSize)
	}
	return sim, nil
}

func (s *simulation) start(ctx context.Context) {
	go s.cl.Run(ctx)
	go s.hs.RunVotes(ctx, s.votes)
	for chain, hig := range s.higs {
		go hig.Run(ctx, s.subblocks[chain])
	}
}

func (s *simulation) shutdown() {
	s.cl.Shutdown()
	for _, hig := range s.higs {
		hig.Shutdown()
	}
}

// submitScenario submits one regular transaction on the first chain and,
// if there are at least two chains, a CAT spanning the first two: the
// smallest scenario that exercises both the single-chain and cross-chain
// paths (spec §8's S1/S3-shaped scenarios).
func (s *simulation) submitScenario() {
	if len(s.chains) == 0 {
		return
	}
	regular, err := types.NewRegularSubmission(types.NewCLTransactionID(), s.chains[0], types.Op{Credit: true, To: 0, Amount: 50})
	if err != nil {
		logger.Errorw("building regular submission", "error", err)
	} else if err := s.cl.SubmitTransaction(regular); err != nil {
		logger.Errorw("submitting regular transaction", "error", err)
	}

	if len(s.chains) < 2 {
		return
	}
	cat, err := types.NewCATSubmission(types.NewCLTransactionID(), s.chains[:2], types.Op{Credit: false, From: 1, To: 2, Amount: 10})
	if err != nil {
		logger.Errorw("building CAT submission", "error", err)
		return
	}
	if err := s.cl.SubmitTransaction(cat); err != nil {
		logger.Errorw("submitting CAT", "error", err)
	}
}

func (s *simulation) report() {
	fmt.Printf("block height: %d\n", s.cl.GetCurrentBlock())
	for _, chain := range s.chains {
		hig := s.higs[chain]
		fmt.Printf("chain %s: counters=%+v\n", chain, hig.GetCounters())
		state := hig.GetChainState()
		for acct := types.AccountID(0); int(acct) < len(state); acct++ {
			if bal, ok := state[acct]; ok {
				fmt.Printf("  account %d: %d\n", acct, bal)
			}
		}
	}
}
