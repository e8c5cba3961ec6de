// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package reconcile

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/ingest"
	"github.com/escrin/nftrout-indexer/internal/metrics"
	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/storage"
)

const (
	pinConcurrency      = 50
	pinCidTimeout       = 15 * time.Second
	pinLoopInterval     = 60 * time.Second
	pinLoopCeiling      = 10 * time.Minute
	reindexLoopInterval = 30 * time.Second
	backfillChunkSize   = 1000
	backfillBufferSize  = 100
	realtimeBufferSize  = 25
)

// Init runs the synchronous startup sequence: load state, build the
// ancestry graph, pin the view block, index ownership/new tokens/new
// versions at that block, and clear any COI backlog. It returns the
// pinned block (B0) the backfill/realtime loops should split at.
func (r *Reconciler) Init(ctx context.Context) (uint64, error) {
	tokens, err := r.Store.ListTokensForUI(ctx, nil)
	if err != nil {
		return 0, err
	}
	r.Graph.Bootstrap(r.Chain.ChainID(), tokens, r.Log)

	b0, err := r.Chain.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	view := r.Chain.AtBlock(b0)
	pinned := &Reconciler{Store: r.Store, Chain: view, Obj: r.Obj, Graph: r.Graph, Log: r.Log}

	if err := pinned.indexOwnershipAndFees(ctx); err != nil {
		return 0, err
	}
	if err := pinned.IndexNewTokens(ctx); err != nil {
		return 0, err
	}
	if err := pinned.IndexNewVersions(ctx); err != nil {
		return 0, err
	}

	backlog, err := r.Store.NeedsCoiAnalysis(ctx)
	if err != nil {
		return 0, err
	}
	if len(backlog) > 0 {
		cois := make(map[model.TroutID]float64, len(backlog))
		for _, id := range backlog {
			cois[id] = r.Graph.Inbreeding(id)
		}
		if err := r.Store.WithTx(ctx, func(tx *storage.Tx) error { return tx.SetCois(ctx, cois) }); err != nil {
			return 0, err
		}
	}
	return b0, nil
}

// indexOwnershipAndFees refreshes owner/fee for every already-observed
// token id by paging through total_supply in batches of 50.
func (r *Reconciler) indexOwnershipAndFees(ctx context.Context) error {
	totalSupply, err := r.Chain.TotalSupply(ctx)
	if err != nil {
		return err
	}
	studs, err := r.Chain.Studs(ctx)
	if err != nil {
		return err
	}
	for start := model.TokenID(1); start <= totalSupply; start += indexBatchSize {
		end := start + indexBatchSize
		if end > totalSupply+1 {
			end = totalSupply + 1
		}
		batch := make([]model.TokenID, 0, end-start)
		for id := start; id < end; id++ {
			batch = append(batch, id)
		}
		owners, err := r.Chain.Owners(ctx, batch)
		if err != nil {
			return err
		}
		ownerMap := make(map[model.TokenID]model.Address, len(batch))
		feeMap := make(map[model.TokenID]*big.Int, len(batch))
		for i, id := range batch {
			ownerMap[id] = owners[i]
			feeMap[id] = studs[id]
		}
		if err := r.Store.WithTx(ctx, func(tx *storage.Tx) error {
			if err := tx.UpdateFees(ctx, r.Chain.ChainID(), feeMap); err != nil {
				return err
			}
			return tx.UpdateOwners(ctx, r.Chain.ChainID(), ownerMap)
		}); err != nil {
			return err
		}
	}
	return nil
}

// IndexNewTokens indexes every token id beyond the last one this
// indexer has seen.
func (r *Reconciler) IndexNewTokens(ctx context.Context) error {
	latest, _, err := r.Store.LatestKnownTokenID(ctx, r.Chain.ChainID())
	if err != nil {
		return err
	}
	totalSupply, err := r.Chain.TotalSupply(ctx)
	if err != nil {
		return err
	}
	var ids []model.TokenID
	for id := latest + 1; id <= totalSupply; id++ {
		ids = append(ids, id)
	}
	return r.indexTokens(ctx, ids)
}

// IndexNewVersions reindexes every token whose stored metadata version
// is behind model.CurrentVersion (or missing outright).
func (r *Reconciler) IndexNewVersions(ctx context.Context) error {
	ids, err := r.Store.OutdatedTokenIDs(ctx, r.Chain.ChainID())
	if err != nil {
		return err
	}
	return r.indexTokens(ctx, ids)
}

// IndexSkippedTokens fills gaps in the observed token id sequence.
func (r *Reconciler) IndexSkippedTokens(ctx context.Context) error {
	present, err := r.Store.TokenIDs(ctx, r.Chain.ChainID())
	if err != nil {
		return err
	}
	max, ok, err := r.Store.LatestKnownTokenID(ctx, r.Chain.ChainID())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return r.indexTokens(ctx, gaps(present, max))
}

// PinLoop runs pinCids every pinLoopInterval, each sweep capped at
// pinLoopCeiling.
func (r *Reconciler) PinLoop(ctx context.Context) error {
	ticker := time.NewTicker(pinLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, pinLoopCeiling)
			if err := r.pinCids(sweepCtx); err != nil && ctx.Err() == nil {
				r.Log.Warn("pin sweep failed", zap.Error(err))
				metrics.ReconcileErrorsTotal.WithLabelValues("pin").Inc()
			}
			cancel()
		}
	}
}

// pinOne issues a single pin request, cancellable via ctx even though
// the underlying shell.Shell.Pin call takes no context itself. The
// caller (pinCids) logs the returned error.
func pinOne(ctx context.Context, obj interface{ Pin(model.Cid) error }, cid model.Cid) error {
	done := make(chan error, 1)
	go func() { done <- obj.Pin(cid) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) pinCids(ctx context.Context) error {
	cids, err := r.Store.UnpinnedCids(ctx)
	if err != nil {
		return err
	}
	metrics.UnpinnedCids.Set(float64(len(cids)))
	r.Log.Debug("pinning cids", zap.Int("count", len(cids)))

	type result struct {
		cid model.Cid
		ok  bool
	}
	sem := make(chan struct{}, pinConcurrency)
	results := make(chan result, len(cids))
	var wg sync.WaitGroup
	for _, cid := range cids {
		wg.Add(1)
		sem <- struct{}{}
		go func(cid model.Cid) {
			defer wg.Done()
			defer func() { <-sem }()
			cctx, cancel := context.WithTimeout(ctx, pinCidTimeout)
			defer cancel()
			err := pinOne(cctx, r.Obj, cid)
			if err != nil {
				r.Log.Warn("failed to pin", zap.String("cid", string(cid)), zap.Error(err))
				metrics.PinFailuresTotal.Inc()
			}
			results <- result{cid, err == nil}
		}(cid)
	}
	go func() { wg.Wait(); close(results) }()

	var pinned, failed []model.Cid
	for res := range results {
		if res.ok {
			pinned = append(pinned, res.cid)
		} else {
			failed = append(failed, res.cid)
		}
	}
	r.Log.Debug("finished pinning")
	return r.Store.WithTx(ctx, func(tx *storage.Tx) error {
		if err := tx.MarkPinned(ctx, pinned); err != nil {
			return err
		}
		return tx.MarkPinFailed(ctx, failed)
	})
}

// ReindexLoop runs the three index_tokens-based passes concurrently
// every reindexLoopInterval. Each pass touches disjoint token ids, so
// the only shared state is the ancestry graph, which is already
// mutex-guarded.
func (r *Reconciler) ReindexLoop(ctx context.Context) error {
	ticker := time.NewTicker(reindexLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			passes := map[string]func(context.Context) error{
				"new_tokens":   r.IndexNewTokens,
				"skipped":      r.IndexSkippedTokens,
				"new_versions": r.IndexNewVersions,
			}
			var wg sync.WaitGroup
			for name, pass := range passes {
				wg.Add(1)
				go func(name string, pass func(context.Context) error) {
					defer wg.Done()
					if err := pass(ctx); err != nil && ctx.Err() == nil {
						r.Log.Warn("reindex pass failed", zap.String("pass", name), zap.Error(err))
						metrics.ReconcileErrorsTotal.WithLabelValues(name).Inc()
					}
				}(name, pass)
			}
			wg.Wait()

			if tokens, err := r.Store.ListTokensForUI(ctx, nil); err == nil {
				var pending float64
				for _, tok := range tokens {
					if tok.Pending {
						pending++
					}
				}
				metrics.PendingTokens.Set(pending)
			}
		}
	}
}

// BackfillEventsLoop streams events from the stored watermark up to b0
// and terminates once b0 is reached.
func (r *Reconciler) BackfillEventsLoop(ctx context.Context, b0 uint64) error {
	chain := r.Chain.ChainID()
	watermark, ok, err := r.Store.ChainProgress(ctx, chain)
	if err != nil {
		return err
	}
	start := uint64(0)
	if ok {
		start = watermark + 1
	}
	if start > b0 {
		return nil
	}
	proc := ingest.New(r.Store, r.Log)
	var chunk []model.Event
	for batch := range r.Chain.Events(ctx, start, &b0, backfillBufferSize) {
		chunk = append(chunk, batch...)
		if len(chunk) >= backfillChunkSize {
			if err := proc.ProcessBatch(ctx, chain, chunk); err != nil {
				metrics.ReconcileErrorsTotal.WithLabelValues("backfill").Inc()
				return err
			}
			chunk = nil
		}
	}
	if len(chunk) > 0 {
		if err := proc.ProcessBatch(ctx, chain, chunk); err != nil {
			metrics.ReconcileErrorsTotal.WithLabelValues("backfill").Inc()
			return err
		}
	}
	return nil
}

// RealtimeEventsLoop streams events from b0+1 with no stop block,
// applying each per-block chunk as soon as it arrives.
func (r *Reconciler) RealtimeEventsLoop(ctx context.Context, b0 uint64) error {
	proc := ingest.New(r.Store, r.Log)
	for batch := range r.Chain.Events(ctx, b0+1, nil, realtimeBufferSize) {
		if err := proc.ProcessBatch(ctx, r.Chain.ChainID(), batch); err != nil {
			metrics.ReconcileErrorsTotal.WithLabelValues("realtime").Inc()
			return err
		}
	}
	return ctx.Err()
}
