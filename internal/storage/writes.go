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
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/numeric"
)

// errTokenMissing signals that a fee/owner update targets a token that
// has not been inserted yet; such updates are dropped silently, since
// the reindex pass will pick up the current value once the token
// exists.
var errTokenMissing = errors.New("token not yet indexed")

func rowIDFor(ctx context.Context, tx *sql.Tx, trout model.TroutID) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM `+Tokens+` WHERE self_chain = ? AND self_id = ?`,
		trout.Chain, trout.Token).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, errTokenMissing
	}
	if err != nil {
		return 0, wrap(err)
	}
	return id, nil
}

// InsertTokens upserts Token, inserts Metadata (expected unique per
// token), and inserts Analysis (default coi = -1.0) plus the
// Generation rows for each fully-indexed token, including the
// terminal summary row at ord = len(history). Safe to call twice with
// the same tokens: the Token upsert is idempotent and Metadata/
// Analysis/Generation inserts use INSERT OR IGNORE.
func (t *Tx) InsertTokens(ctx context.Context, chain model.ChainID, tokens []model.FullToken) error {
	for _, tok := range tokens {
		props := tok.Meta.Properties
		trout := props.Self
		if trout == (model.TroutID{}) {
			trout = model.TroutID{Chain: chain}
		}

		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO `+Tokens+` (self_chain, self_id, owner) VALUES (?, ?, ?)
			ON CONFLICT(self_chain, self_id) DO UPDATE SET owner = excluded.owner`,
			trout.Chain, trout.Token, tok.Owner.Hex()); err != nil {
			return wrap(fmt.Errorf("upserting token %s: %w", trout, err))
		}
		tokenRowID, err := rowIDFor(ctx, t.tx, trout)
		if err != nil {
			return err
		}

		if _, err := t.tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO `+Metadata+` (
				token, version, name, fee, is_genesis, is_santa,
				left_parent_chain, left_parent_id, right_parent_chain, right_parent_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tokenRowID, props.Version, tok.Meta.Name, nullableFee(tok.Fee),
			props.Attributes.Genesis, props.Attributes.Santa,
			nullableTroutChain(props.Left), nullableTroutToken(props.Left),
			nullableTroutChain(props.Right), nullableTroutToken(props.Right),
		); err != nil {
			return wrap(fmt.Errorf("inserting metadata for %s: %w", trout, err))
		}

		if _, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+Analysis+` (token, coi) VALUES (?, -1.0)`, tokenRowID); err != nil {
			return wrap(fmt.Errorf("inserting analysis for %s: %w", trout, err))
		}

		for ord, cid := range props.Generations {
			if _, err := t.tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+Generations+` (token, ord, cid) VALUES (?, ?, ?)`,
				tokenRowID, ord, string(cid),
			); err != nil {
				return wrap(fmt.Errorf("inserting generation %d for %s: %w", ord, trout, err))
			}
		}
		// Terminal summary row: spec §9, the read API's current-CID
		// lookup relies on MAX(ord) landing here.
		if _, err := t.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+Generations+` (token, ord, cid) VALUES (?, ?, ?)`,
			tokenRowID, len(props.Generations), string(tok.Cid),
		); err != nil {
			return wrap(fmt.Errorf("inserting summary generation for %s: %w", trout, err))
		}
	}
	return nil
}

// UpdateTokens replaces the current generation (and metadata, where a
// new version was fetched) for tokens that already exist. The index
// passes, index_new_versions among them, call it after InsertTokens so
// an existing Metadata row takes the refetched version. It does not
// touch ownership or fee.
func (t *Tx) UpdateTokens(ctx context.Context, chain model.ChainID, tokens []model.FullToken) error {
	for _, tok := range tokens {
		trout := tok.Meta.Properties.Self
		if trout == (model.TroutID{}) {
			trout = model.TroutID{Chain: chain}
		}
		tokenRowID, err := rowIDFor(ctx, t.tx, trout)
		if err != nil {
			if errors.Is(err, errTokenMissing) {
				continue
			}
			return err
		}
		props := tok.Meta.Properties
		if _, err := t.tx.ExecContext(ctx, `
			UPDATE `+Metadata+` SET version = ?, name = ?, is_genesis = ?, is_santa = ?,
				left_parent_chain = ?, left_parent_id = ?, right_parent_chain = ?, right_parent_id = ?
			WHERE token = ?`,
			props.Version, tok.Meta.Name, props.Attributes.Genesis, props.Attributes.Santa,
			nullableTroutChain(props.Left), nullableTroutToken(props.Left),
			nullableTroutChain(props.Right), nullableTroutToken(props.Right),
			tokenRowID); err != nil {
			return wrap(fmt.Errorf("updating metadata for %s: %w", trout, err))
		}
		for ord, cid := range props.Generations {
			if _, err := t.tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+Generations+` (token, ord, cid) VALUES (?, ?, ?)`,
				tokenRowID, ord, string(cid)); err != nil {
				return wrap(fmt.Errorf("inserting generation %d for %s: %w", ord, trout, err))
			}
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+Generations+` (token, ord, cid) VALUES (?, ?, ?)`,
			tokenRowID, len(props.Generations), string(tok.Cid)); err != nil {
			return wrap(fmt.Errorf("inserting summary generation for %s: %w", trout, err))
		}
	}
	return nil
}

// InsertPendingTokens inserts Token rows only, for tokens observed via
// a Spawned event whose metadata has not yet been fetched. Idempotent.
func (t *Tx) InsertPendingTokens(ctx context.Context, chain model.ChainID, owners map[model.TokenID]model.Address) error {
	for id, owner := range owners {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO `+Tokens+` (self_chain, self_id, owner) VALUES (?, ?, ?)
			ON CONFLICT(self_chain, self_id) DO NOTHING`,
			chain, id, owner.Hex()); err != nil {
			return wrap(fmt.Errorf("inserting pending token %d: %w", id, err))
		}
	}
	return nil
}

// SetTokenName updates a token's display name (used by the read API's
// signed name-update endpoint).
func (t *Tx) SetTokenName(ctx context.Context, trout model.TroutID, name string) error {
	rowID, err := rowIDFor(ctx, t.tx, trout)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE `+Metadata+` SET name = ? WHERE token = ?`, name, rowID)
	return wrap(err)
}

// SetCois persists the computed inbreeding coefficient for each trout
// in coi.
func (t *Tx) SetCois(ctx context.Context, coi map[model.TroutID]float64) error {
	for trout, v := range coi {
		rowID, err := rowIDFor(ctx, t.tx, trout)
		if err != nil {
			if errors.Is(err, errTokenMissing) {
				continue
			}
			return err
		}
		if _, err := t.tx.ExecContext(ctx, `UPDATE `+Analysis+` SET coi = ? WHERE token = ?`, v, rowID); err != nil {
			return wrap(fmt.Errorf("setting coi for %s: %w", trout, err))
		}
	}
	return nil
}

// UpdateFees applies the last-writer-wins fee for each token id in
// fees (nil means delisted). Updates targeting a not-yet-indexed
// token are dropped; the reindex pass will pick up the current fee.
func (t *Tx) UpdateFees(ctx context.Context, chain model.ChainID, fees map[model.TokenID]*big.Int) error {
	for id, fee := range fees {
		rowID, err := rowIDFor(ctx, t.tx, model.TroutID{Chain: chain, Token: id})
		if err != nil {
			if errors.Is(err, errTokenMissing) {
				continue
			}
			return err
		}
		if _, err := t.tx.ExecContext(ctx, `UPDATE `+Metadata+` SET fee = ? WHERE token = ?`, nullableFee(fee), rowID); err != nil {
			return wrap(fmt.Errorf("updating fee for token %d: %w", id, err))
		}
	}
	return nil
}

// UpdateOwners applies the last-writer-wins owner for each token id.
func (t *Tx) UpdateOwners(ctx context.Context, chain model.ChainID, owners map[model.TokenID]model.Address) error {
	for id, owner := range owners {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE `+Tokens+` SET owner = ? WHERE self_chain = ? AND self_id = ?`,
			owner.Hex(), chain, id); err != nil {
			return wrap(fmt.Errorf("updating owner for token %d: %w", id, err))
		}
	}
	return nil
}

// MarkPinned flags each cid as successfully pinned; such CIDs are
// never re-attempted (spec invariant 5).
func (t *Tx) MarkPinned(ctx context.Context, cids []model.Cid) error {
	for _, cid := range cids {
		if _, err := t.tx.ExecContext(ctx, `UPDATE `+Generations+` SET pinned = 1 WHERE cid = ?`, string(cid)); err != nil {
			return wrap(fmt.Errorf("marking %s pinned: %w", cid, err))
		}
	}
	return nil
}

// MarkPinFailed increments pin_fails for each cid; once pin_fails
// reaches the ceiling the CID is shelved (no longer returned by
// UnpinnedCids).
func (t *Tx) MarkPinFailed(ctx context.Context, cids []model.Cid) error {
	for _, cid := range cids {
		if _, err := t.tx.ExecContext(ctx, `UPDATE `+Generations+` SET pin_fails = pin_fails + 1 WHERE cid = ?`, string(cid)); err != nil {
			return wrap(fmt.Errorf("marking %s pin-failed: %w", cid, err))
		}
	}
	return nil
}

// SetChainProgress sets the event watermark for chain. It only ever
// moves forward: a block below the stored one leaves it unchanged.
func (t *Tx) SetChainProgress(ctx context.Context, chain model.ChainID, block uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO `+Progress+` (chain, block) VALUES (?, ?)
		ON CONFLICT(chain) DO UPDATE SET block = MAX(block, excluded.block)`,
		chain, block)
	return wrap(err)
}

func nullableFee(fee *big.Int) any {
	if fee == nil {
		return nil
	}
	return numeric.FeeToHex(fee)
}

func nullableTroutChain(t *model.TroutID) any {
	if t == nil {
		return nil
	}
	return t.Chain
}

func nullableTroutToken(t *model.TroutID) any {
	if t == nil {
		return nil
	}
	return t.Token
}
