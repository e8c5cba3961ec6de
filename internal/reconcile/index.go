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
	"time"

	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/ancestry"
	"github.com/escrin/nftrout-indexer/internal/chain"
	"github.com/escrin/nftrout-indexer/internal/ipfsclient"
	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/storage"
)

const (
	indexBatchSize = 50
	dagGetTimeout  = 15 * time.Second
)

// Reconciler owns the handles every loop needs: the storage, chain,
// and object clients, the ancestry graph, and a logger. All four
// loops and the initialization phase are methods on it.
type Reconciler struct {
	Store *storage.Store
	Chain *chain.Client
	Obj   *ipfsclient.Client
	Graph *ancestry.Graph
	Log   *zap.Logger
}

// indexTokens is the shared inner routine behind index_new_tokens,
// index_new_versions, and index_skipped_tokens: given a batch of token
// ids (already known to need (re)indexing), it fetches owners/fees/
// metadata, wires parent edges into the ancestry graph, computes COI,
// and persists the batch.
func (r *Reconciler) indexTokens(ctx context.Context, ids []model.TokenID) error {
	for start := 0; start < len(ids); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		studs, err := r.Chain.Studs(ctx)
		if err != nil {
			return err
		}
		owners, err := r.Chain.Owners(ctx, batch)
		if err != nil {
			return err
		}

		tokens := make([]model.FullToken, 0, len(batch))
		for i, id := range batch {
			cid, ok, err := r.Chain.TokenCID(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				continue // not yet uploaded; reappears next pass
			}
			meta, ok := r.fetchMetadata(ctx, id, cid)
			if !ok {
				continue
			}
			tokens = append(tokens, model.FullToken{
				Cid:   cid,
				Meta:  meta,
				Owner: owners[i],
				Fee:   studs[id],
			})
		}

		cois := r.wireAncestryAndCOI(tokens)

		if err := r.Store.WithTx(ctx, func(tx *storage.Tx) error {
			if err := tx.InsertTokens(ctx, r.Chain.ChainID(), tokens); err != nil {
				return err
			}
			if err := tx.UpdateTokens(ctx, r.Chain.ChainID(), tokens); err != nil {
				return err
			}
			return tx.SetCois(ctx, cois)
		}); err != nil {
			return err
		}
	}
	return nil
}

// fetchMetadata resolves and dag_gets a token's current metadata under
// a 15-second ceiling. Timeout or decode failure is logged at WARN and
// reported as ok = false: the token is skipped for this pass and will
// be retried on the next one (it never advances a watermark).
func (r *Reconciler) fetchMetadata(ctx context.Context, id model.TokenID, cid model.Cid) (model.TroutMetadata, bool) {
	ctx, cancel := context.WithTimeout(ctx, dagGetTimeout)
	defer cancel()
	var meta model.TroutMetadata
	if err := r.Obj.DagGet(ctx, cid, &meta); err != nil {
		r.Log.Warn("failed to fetch token metadata, skipping for this pass",
			zap.Uint32("token", uint32(id)), zap.String("cid", string(cid)), zap.Error(err))
		return model.TroutMetadata{}, false
	}
	return meta, true
}

// wireAncestryAndCOI adds each new token's node and parent edges under
// the graph's writer lock, then computes its COI. Each token is keyed
// by its Meta.Properties.Self, as set by the object store's metadata
// document; tokens is not modified.
func (r *Reconciler) wireAncestryAndCOI(tokens []model.FullToken) map[model.TroutID]float64 {
	cois := make(map[model.TroutID]float64, len(tokens))
	for _, tok := range tokens {
		self := tok.Meta.Properties.Self
		r.Graph.AddNode(self)
		if left := tok.Meta.Properties.Left; left != nil {
			if !r.Graph.AddEdge(self, *left) {
				r.Log.Warn("skipping edge to unknown left parent", zap.Stringer("child", self), zap.Stringer("parent", *left))
			}
		}
		if right := tok.Meta.Properties.Right; right != nil {
			if !r.Graph.AddEdge(self, *right) {
				r.Log.Warn("skipping edge to unknown right parent", zap.Stringer("child", self), zap.Stringer("parent", *right))
			}
		}
	}
	for _, tok := range tokens {
		self := tok.Meta.Properties.Self
		cois[self] = r.Graph.Inbreeding(self)
	}
	return cois
}
