// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package storage

// Table and column names used across queries.go, kept as constants the
// way large SQL schemas name their tables so a rename is a one-place
// edit instead of a grep-and-pray.
const (
	// Tokens holds one row per observed (chain, token_id) pair.
	// self_chain + self_id is the TroutId; owner is the current
	// on-chain owner, kept in sync by update_owners.
	Tokens = "tokens"

	// Metadata holds one row per fully-indexed token. A token with no
	// Metadata row is pending (seen on-chain, not yet fetched).
	Metadata = "metadata"

	// Generations holds one row per historical CID plus a terminal
	// "summary" row at ord = len(history). MAX(ord) is always the
	// current generation; see spec §9.
	Generations = "generations"

	// Analysis holds the derived inbreeding coefficient. coi = -1.0
	// is the "needs analysis" sentinel.
	Analysis = "analysis"

	// Events is the immutable, append-only log of on-chain activity.
	// Unique on (token, block, log_index) so replay is a no-op.
	Events = "events"

	// SpawnEvents / ListEvents / TransferEvents are the per-kind side
	// tables referenced 1:1 by Events.id.
	SpawnEvents    = "spawn_events"
	ListEvents     = "list_events"
	TransferEvents = "transfer_events"

	// Progress holds exactly one row per chain: the event watermark.
	Progress = "progress"
)

// Event kinds stored in events.kind.
const (
	KindSpawned  = "spawned"
	KindRelisted = "relisted"
	KindTransfer = "transfer"
)

// pinFailCeiling is the pin_fails value at which a CID is shelved
// and no longer returned by UnpinnedCids (spec invariant 5).
const pinFailCeiling = 20
