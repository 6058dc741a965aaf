package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/starcoinorg/smolstc/domain/consensus"
	"github.com/starcoinorg/smolstc/domain/dagconfig"
	"github.com/starcoinorg/smolstc/infrastructure/config"
	"github.com/starcoinorg/smolstc/infrastructure/db/database/ldb"
	"github.com/starcoinorg/smolstc/infrastructure/logger"
	"github.com/starcoinorg/smolstc/network/p2p"
)

var log = logger.RegisterSubSystem("SMLD")

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "smolstcd: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	err = logger.InitLogRotator(cfg.LogFile())
	if err != nil {
		return err
	}
	defer logger.CloseLogRotator()
	logger.SetLogLevels(cfg.DebugLevel)

	db, err := ldb.NewLevelDB(cfg.DBPath, int(cfg.Parallelism))
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close()
		if closeErr != nil {
			log.Errorf("failed to close database: %s", closeErr)
		}
	}()

	consensusConfig := consensus.DefaultConfig(&dagconfig.MainnetParams)
	consensusConfig.K = cfg.K
	consensusConfig.CacheSize = int(cfg.CacheSize)
	consensusConfig.MaxSyncBatch = cfg.MaxSyncBatch
	consensusConfig.PendingQueueCap = cfg.PendingQueueCap

	localConsensus, err := consensus.NewFactory().NewConsensus(consensusConfig, db)
	if err != nil {
		return err
	}
	log.Infof("consensus initialized for %s (k=%d)", consensusConfig.Name, consensusConfig.K)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p2pConfig := p2p.DefaultConfig()
	p2pConfig.ListenAddrs = cfg.Listen
	node, err := p2p.NewNode(ctx, p2pConfig, localConsensus)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := node.Close()
		if closeErr != nil {
			log.Errorf("failed to close p2p node: %s", closeErr)
		}
	}()

	for _, peerAddr := range cfg.Connect {
		peerInfo, err := node.Connect(ctx, peerAddr)
		if err != nil {
			log.Warnf("failed to connect to %s: %s", peerAddr, err)
			continue
		}
		log.Infof("connected to %s: %d accumulator leaves",
			peerInfo.ID, peerInfo.AccumulatorInfo.NumLeaves)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Infof("shutting down")
	return nil
}
