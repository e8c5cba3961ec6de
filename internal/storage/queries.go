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
	"math/big"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/numeric"
)

// --- Read operations (one short-lived connection per call) ---

// LatestKnownTokenID returns the max observed token id for chain, or
// false if the chain has no tokens yet.
func (s *Store) LatestKnownTokenID(ctx context.Context, chain model.ChainID) (model.TokenID, bool, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(self_id) FROM `+Tokens+` WHERE self_chain = ?`, chain).Scan(&id)
	if err != nil {
		return 0, false, wrap(err)
	}
	if !id.Valid {
		return 0, false, nil
	}
	return model.TokenID(id.Int64), true, nil
}

// TokenIDs returns every observed token id for chain, ascending.
func (s *Store) TokenIDs(ctx context.Context, chain model.ChainID) ([]model.TokenID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT self_id FROM `+Tokens+` WHERE self_chain = ? ORDER BY self_id ASC`, chain)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	var ids []model.TokenID
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err)
		}
		ids = append(ids, model.TokenID(id))
	}
	return ids, wrap(rows.Err())
}

// OutdatedTokenIDs returns token ids whose metadata version is below
// model.CurrentVersion, or whose metadata is altogether missing.
func (s *Store) OutdatedTokenIDs(ctx context.Context, chain model.ChainID) ([]model.TokenID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.self_id FROM `+Tokens+` t
		LEFT JOIN `+Metadata+` m ON m.token = t.id
		WHERE t.self_chain = ? AND (m.token IS NULL OR m.version < ?)
		ORDER BY t.self_id ASC LIMIT 1000`,
		chain, model.CurrentVersion)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	var ids []model.TokenID
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err)
		}
		ids = append(ids, model.TokenID(id))
	}
	return ids, wrap(rows.Err())
}

// NeedsCoiAnalysis returns every token whose coi is still -1.0.
func (s *Store) NeedsCoiAnalysis(ctx context.Context) ([]model.TroutID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.self_chain, t.self_id FROM `+Analysis+` a
		JOIN `+Tokens+` t ON t.id = a.token
		WHERE a.coi = -1.0`)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	var ids []model.TroutID
	for rows.Next() {
		var chain, id uint32
		if err := rows.Scan(&chain, &id); err != nil {
			return nil, wrap(err)
		}
		ids = append(ids, model.TroutID{Chain: model.ChainID(chain), Token: model.TokenID(id)})
	}
	return ids, wrap(rows.Err())
}

// UnpinnedCids returns every CID not yet pinned and below the
// pin-failure ceiling.
func (s *Store) UnpinnedCids(ctx context.Context) ([]model.Cid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cid FROM `+Generations+` WHERE pinned = 0 AND pin_fails < ?`, pinFailCeiling)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()
	var cids []model.Cid
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, wrap(err)
		}
		cids = append(cids, model.Cid(cid))
	}
	return cids, wrap(rows.Err())
}

// IsCidPinned reports whether any generation row for cid is marked
// pinned. A CID can appear under more than one token/generation (a
// shared parent's image, for instance), so this checks existence
// rather than joining to a specific token.
func (s *Store) IsCidPinned(ctx context.Context, cid model.Cid) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+Generations+` WHERE cid = ? AND pinned = 1 LIMIT 1`, string(cid)).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, wrap(err)
	}
	return true, nil
}

// TokenCid returns the CID for a specific generation, or the current
// (max-ord) generation if ord is nil.
func (s *Store) TokenCid(ctx context.Context, trout model.TroutID, ord *uint32) (model.Cid, bool, error) {
	var row *sql.Row
	if ord != nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT g.cid FROM `+Generations+` g
			JOIN `+Tokens+` t ON t.id = g.token
			WHERE t.self_chain = ? AND t.self_id = ? AND g.ord = ?`,
			trout.Chain, trout.Token, *ord)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT g.cid FROM `+Generations+` g
			JOIN `+Tokens+` t ON t.id = g.token
			WHERE t.self_chain = ? AND t.self_id = ?
			  AND g.ord = (SELECT MAX(ord) FROM `+Generations+` WHERE token = t.id)`,
			trout.Chain, trout.Token)
	}
	var cid string
	if err := row.Scan(&cid); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, wrap(err)
	}
	return model.Cid(cid), true, nil
}

// TokenOwner returns a token's current on-chain owner as tracked by
// the tokens table (written by InsertTokens, InsertPendingTokens and
// UpdateOwners).
func (s *Store) TokenOwner(ctx context.Context, trout model.TroutID) (model.Address, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner FROM `+Tokens+` WHERE self_chain = ? AND self_id = ?`, trout.Chain, trout.Token).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Address{}, false, nil
		}
		return model.Address{}, false, wrap(err)
	}
	addr, err := model.ParseAddress(owner)
	if err != nil {
		return model.Address{}, false, wrap(err)
	}
	return addr, true, nil
}

// ListTokensForUI joins Token, Metadata, and Analysis for the read
// API. If chain is nil, tokens from every chain are returned.
func (s *Store) ListTokensForUI(ctx context.Context, chain *model.ChainID) ([]model.TokenForUi, error) {
	query := `
		SELECT t.self_id, t.owner, m.token IS NULL,
		       COALESCE(m.name, ''), COALESCE(a.coi, -1.0), m.fee,
		       m.left_parent_chain, m.left_parent_id, m.right_parent_chain, m.right_parent_id
		FROM ` + Tokens + ` t
		LEFT JOIN ` + Metadata + ` m ON m.token = t.id
		LEFT JOIN ` + Analysis + ` a ON a.token = t.id`
	var rows *sql.Rows
	var err error
	if chain != nil {
		rows, err = s.db.QueryContext(ctx, query+" WHERE t.self_chain = ?", *chain)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []model.TokenForUi
	for rows.Next() {
		var (
			id                                                       uint32
			owner                                                    string
			pending                                                  bool
			name                                                     string
			coi                                                      float64
			fee                                                      sql.NullString
			lpChain, lpID, rpChain, rpID                             sql.NullInt64
		)
		if err := rows.Scan(&id, &owner, &pending, &name, &coi, &fee, &lpChain, &lpID, &rpChain, &rpID); err != nil {
			return nil, wrap(err)
		}
		ownerAddr, err := model.ParseAddress(owner)
		if err != nil {
			return nil, wrap(err)
		}
		tok := model.TokenForUi{ID: model.TokenID(id), Owner: ownerAddr, Name: name, Coi: coi, Pending: pending}
		if fee.Valid {
			f, err := numeric.FeeFromHex(fee.String)
			if err != nil {
				return nil, wrap(err)
			}
			tok.Fee = f
		}
		if lpChain.Valid && rpChain.Valid {
			tok.Parents = &[2]model.TroutID{
				{Chain: model.ChainID(lpChain.Int64), Token: model.TokenID(lpID.Int64)},
				{Chain: model.ChainID(rpChain.Int64), Token: model.TokenID(rpID.Int64)},
			}
		}
		out = append(out, tok)
	}
	return out, wrap(rows.Err())
}

// TokenEvents returns the UI-shaped breeding events for every child
// that lists trout as a parent: for each, the spawn block, the other
// parent (coparent), the child's owner as of the spawn block, and the
// fee trout was listed at just before breeding.
func (s *Store) TokenEvents(ctx context.Context, trout model.TroutID) ([]model.EventForUi, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.self_id,
		       CASE WHEN m.left_parent_id = ? THEN m.right_parent_id ELSE m.left_parent_id END,
		       spawn_evt.block, se.recipient
		FROM `+Metadata+` m
		JOIN `+Tokens+` c ON c.id = m.token
		JOIN `+Events+` spawn_evt ON spawn_evt.token = m.token AND spawn_evt.kind = '`+KindSpawned+`'
		JOIN `+SpawnEvents+` se ON se.event = spawn_evt.id
		WHERE ((m.left_parent_id = ? AND m.left_parent_chain = ?) OR
		       (m.right_parent_id = ? AND m.right_parent_chain = ?))
		ORDER BY spawn_evt.block ASC`,
		trout.Token, trout.Token, trout.Chain, trout.Token, trout.Chain)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	type row struct {
		child, coparent uint32
		block           uint64
		spawnRecipient  string
	}
	var collected []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.child, &r.coparent, &r.block, &r.spawnRecipient); err != nil {
			return nil, wrap(err)
		}
		collected = append(collected, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}

	var out []model.EventForUi
	for _, r := range collected {
		owner, err := s.ownerAtOrBefore(ctx, model.TroutID{Chain: trout.Chain, Token: model.TokenID(r.child)}, r.block, r.spawnRecipient)
		if err != nil {
			return nil, err
		}
		breederOwner, err := s.ownerAtOrBefore(ctx, trout, r.block, "")
		if err != nil {
			return nil, err
		}
		price, err := s.feeAtOrBefore(ctx, trout, r.block)
		if err != nil {
			return nil, err
		}
		if price == nil || breederOwner == owner {
			price = big.NewInt(0)
		}
		out = append(out, model.EventForUi{
			ID:       model.TokenID(r.child),
			Block:    r.block,
			Kind:     "breed",
			Breeder:  trout.Token,
			Child:    model.TokenID(r.child),
			Coparent: model.TokenID(r.coparent),
			Price:    price,
			Owner:    owner,
		})
	}
	return out, nil
}

// ownerAtOrBefore returns the recipient of the most recent Transfer on
// trout strictly before block, falling back to fallback (typically the
// spawn recipient) when there is none.
func (s *Store) ownerAtOrBefore(ctx context.Context, trout model.TroutID, block uint64, fallback string) (model.Address, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT te.recipient FROM `+TransferEvents+` te
		JOIN `+Events+` e ON e.id = te.event
		JOIN `+Tokens+` t ON t.id = e.token
		WHERE t.self_chain = ? AND t.self_id = ? AND e.block < ?
		ORDER BY e.block DESC, e.log_index DESC LIMIT 1`,
		trout.Chain, trout.Token, block)
	var recipient string
	switch err := row.Scan(&recipient); {
	case err == nil:
	case err == sql.ErrNoRows:
		if fallback == "" {
			row := s.db.QueryRowContext(ctx, `SELECT owner FROM `+Tokens+` WHERE self_chain = ? AND self_id = ?`, trout.Chain, trout.Token)
			if err := row.Scan(&recipient); err != nil {
				return model.Address{}, wrap(err)
			}
		} else {
			recipient = fallback
		}
	default:
		return model.Address{}, wrap(err)
	}
	return model.ParseAddress(recipient)
}

// feeAtOrBefore returns the most recently set Relisted fee on trout
// strictly before block, or nil if trout was never listed before then.
func (s *Store) feeAtOrBefore(ctx context.Context, trout model.TroutID, block uint64) (*big.Int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT le.fee FROM `+ListEvents+` le
		JOIN `+Events+` e ON e.id = le.event
		JOIN `+Tokens+` t ON t.id = e.token
		WHERE t.self_chain = ? AND t.self_id = ? AND e.block < ?
		ORDER BY e.block DESC, e.log_index DESC LIMIT 1`,
		trout.Chain, trout.Token, block)
	var fee sql.NullString
	if err := row.Scan(&fee); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrap(err)
	}
	if !fee.Valid {
		return nil, nil
	}
	return numeric.FeeFromHex(fee.String)
}

// --- Progress ---

// ChainProgress returns the event watermark for chain: "all logs in
// blocks <= block have been applied."
func (s *Store) ChainProgress(ctx context.Context, chain model.ChainID) (uint64, bool, error) {
	var block uint64
	err := s.db.QueryRowContext(ctx, `SELECT block FROM `+Progress+` WHERE chain = ?`, chain).Scan(&block)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap(err)
	}
	return block, true, nil
}
