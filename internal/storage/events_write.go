// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/escrin/nftrout-indexer/internal/model"
)

// RecordEvents inserts a batch of decoded token events and advances
// the chain's progress watermark to the highest ProcessedBlock marker
// seen in the batch. Event rows are immutable and idempotent on
// (token, block, log_index); calling RecordEvents twice with the same
// batch changes no rows after the first.
func (t *Tx) RecordEvents(ctx context.Context, chain model.ChainID, events []model.Event) error {
	var highestBlock uint64
	var sawBlock bool
	for _, ev := range events {
		switch {
		case ev.Token != nil:
			if err := t.recordTokenEvent(ctx, chain, ev.Token); err != nil {
				return err
			}
		case ev.ProcessedBlock != nil:
			if !sawBlock || *ev.ProcessedBlock > highestBlock {
				highestBlock = *ev.ProcessedBlock
				sawBlock = true
			}
		}
	}
	if sawBlock {
		if err := t.SetChainProgress(ctx, chain, highestBlock); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) recordTokenEvent(ctx context.Context, chain model.ChainID, ev *model.TokenEvent) error {
	tokenRowID, err := rowIDFor(ctx, t.tx, model.TroutID{Chain: chain, Token: ev.Token})
	if err != nil {
		if errors.Is(err, errTokenMissing) && ev.Kind != model.Spawned {
			// A Relisted/Transfer event for a token this indexer has
			// never seen spawned (e.g. it predates the configured
			// start block). Nothing to attach the event row to; drop
			// it rather than aborting the rest of the batch.
			return nil
		}
		return fmt.Errorf("recording event for token %d: %w", ev.Token, err)
	}

	var kind string
	switch ev.Kind {
	case model.Spawned:
		kind = KindSpawned
	case model.Relisted:
		kind = KindRelisted
	case model.Transfer:
		kind = KindTransfer
	default:
		return wrap(fmt.Errorf("unknown event kind %d", ev.Kind))
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO `+Events+` (kind, token, block, log_index) VALUES (?, ?, ?, ?)`,
		kind, tokenRowID, ev.Block, ev.LogIndex)
	if err != nil {
		return wrap(fmt.Errorf("inserting event row: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if rows == 0 {
		return nil // duplicate (token, block, log_index): already applied
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return wrap(err)
	}

	switch ev.Kind {
	case model.Spawned:
		_, err = t.tx.ExecContext(ctx, `INSERT INTO `+SpawnEvents+` (event, recipient) VALUES (?, ?)`,
			eventID, ev.To.Hex())
	case model.Relisted:
		_, err = t.tx.ExecContext(ctx, `INSERT INTO `+ListEvents+` (event, fee) VALUES (?, ?)`,
			eventID, nullableFee(ev.Fee))
	case model.Transfer:
		_, err = t.tx.ExecContext(ctx, `INSERT INTO `+TransferEvents+` (event, sender, recipient) VALUES (?, ?, ?)`,
			eventID, ev.From.Hex(), ev.To.Hex())
	}
	if err != nil {
		return wrap(fmt.Errorf("inserting side-table row for event %d: %w", eventID, err))
	}
	return nil
}

