// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Command nftrout-indexer runs the storage/chain/object reconciler
// loops and the read API as one supervised process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/ancestry"
	"github.com/escrin/nftrout-indexer/internal/api"
	"github.com/escrin/nftrout-indexer/internal/chain"
	"github.com/escrin/nftrout-indexer/internal/config"
	"github.com/escrin/nftrout-indexer/internal/ipfsclient"
	"github.com/escrin/nftrout-indexer/internal/reconcile"
	"github.com/escrin/nftrout-indexer/internal/storage"
	"github.com/escrin/nftrout-indexer/internal/supervisor"
)

const (
	exitConfigError  = 1
	exitStorageError = 2
	exitTaskError    = 3
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("NFT_DEV") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cmd *cobra.Command, args []string) int {
	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		return exitConfigError
	}
	defer log.Sync()

	var configFile string
	if len(args) > 0 {
		configFile = args[0]
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Error("loading configuration", zap.Error(err))
		return exitConfigError
	}

	net, err := chain.NetworkByName(cfg.Chain)
	if err != nil {
		log.Error("resolving chain network", zap.Error(err))
		return exitConfigError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error("opening storage", zap.Error(err))
		return exitStorageError
	}
	defer store.Close()

	chainClient, err := chain.Dial(ctx, log, net)
	if err != nil {
		log.Error("dialing chain", zap.Error(err))
		return exitStorageError
	}

	objClient := ipfsclient.New(cfg.IPFSEndpoint, &http.Client{Timeout: 30 * time.Second})
	graph := ancestry.New()

	r := &reconcile.Reconciler{Store: store, Chain: chainClient, Obj: objClient, Graph: graph, Log: log}

	b0, err := r.Init(ctx)
	if err != nil {
		log.Error("initializing reconciler", zap.Error(err))
		return exitTaskError
	}

	apiServer := &api.Server{Store: store, Obj: objClient, Log: log}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: apiServer.Router(),
	}

	tasks := []supervisor.Task{
		{Name: "pin_loop", Run: r.PinLoop},
		{Name: "reindex_loop", Run: r.ReindexLoop},
		{Name: "backfill_events", Run: func(ctx context.Context) error { return r.BackfillEventsLoop(ctx, b0) }},
		{Name: "realtime_events", Run: func(ctx context.Context) error { return r.RealtimeEventsLoop(ctx, b0) }},
		{Name: "api", Run: func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- httpServer.ListenAndServe() }()
			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)
				return ctx.Err()
			case err := <-errCh:
				return err
			}
		}},
	}

	if err := supervisor.Run(ctx, log, tasks...); err != nil && ctx.Err() == nil {
		log.Error("supervisor exited with error", zap.Error(err))
		return exitTaskError
	}
	return 0
}

func main() {
	root := &cobra.Command{
		Use:   "nftrout-indexer [config-file]",
		Short: "Indexes NFTrout token state from chain and object store into local storage.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(run(cmd, args))
			return nil
		},
	}
	if err := root.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}
