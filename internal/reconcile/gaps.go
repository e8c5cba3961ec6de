// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package reconcile hosts the long-running loops that keep storage in
// sync with the chain and object store: pinning, reindexing, and
// event backfill/realtime streaming.
package reconcile

import "github.com/escrin/nftrout-indexer/internal/model"

// gaps returns every integer in 1..=max not present in the sorted
// slice present, the interface index_skipped_tokens iterates over.
func gaps(present []model.TokenID, max model.TokenID) []model.TokenID {
	var out []model.TokenID
	idx := 0
	for i := model.TokenID(1); i <= max; i++ {
		for idx < len(present) && present[idx] < i {
			idx++
		}
		if idx < len(present) && present[idx] == i {
			continue
		}
		out = append(out, i)
	}
	return out
}
