// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/retry"
)

// Events streams decoded contract events starting at startBlock. Per
// block, in order, it sends (a) a batch of decoded token events, then
// (b) a lone ProcessedBlock marker event. Blocks already at or below
// the provider's tip at the time Events was called are emitted
// without waiting; beyond that, the stream polls for each block to
// exist before yielding it, so it naturally switches from catch-up to
// follow-the-head. If stopBlock is non-nil, the channel closes after
// that block's marker is sent; otherwise it runs until ctx is done.
//
// buffer sets the channel's capacity, letting the block-fetching
// goroutine run up to that many blocks ahead of a slow consumer — the
// Go analogue of the original stream's `buffered(N)` combinator.
func (c *Client) Events(ctx context.Context, startBlock uint64, stopBlock *uint64, buffer int) <-chan []model.Event {
	out := make(chan []model.Event, buffer)
	go func() {
		defer close(out)
		initBlock, err := retry.Do(ctx, c.log, "init_block", func(ctx context.Context) (uint64, error) {
			return c.raw.BlockNumber(ctx)
		})
		if err != nil {
			return // ctx cancelled during startup retry
		}
		for block := startBlock; stopBlock == nil || block <= *stopBlock; block++ {
			if block > initBlock {
				if !c.waitForBlock(ctx, block) {
					return // ctx cancelled
				}
			}
			logs, err := c.logsAt(ctx, block)
			if err != nil {
				return // ctx cancelled during retry
			}
			events := make([]model.Event, 0, len(logs))
			for _, l := range logs {
				if ev, ok := decodeLog(l); ok {
					events = append(events, model.Event{Token: ev})
				}
			}
			select {
			case out <- events:
			case <-ctx.Done():
				return
			}
			b := block
			select {
			case out <- []model.Event{{ProcessedBlock: &b}}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// waitForBlock blocks (via retry.DoIf) until the provider reports a
// tip at or beyond target, returning false only if ctx is cancelled
// first.
func (c *Client) waitForBlock(ctx context.Context, target uint64) bool {
	_, err := retry.DoIf(ctx, c.log, "wait_for_block",
		func(ctx context.Context) (uint64, error) {
			n, err := c.raw.BlockNumber(ctx)
			return n, wrap(err)
		},
		func(n uint64) bool { return n >= target },
	)
	return err == nil
}

// decodeLog maps one raw log into a TokenEvent, dropping removed
// (reorged-out) logs, logs with no topics, and anything this contract
// emits that isn't one of the three variants the indexer understands.
// Block number and log index are taken as given; a log is not dropped
// for lacking either. Decode failures are dropped, never fatal.
func decodeLog(l types.Log) (*model.TokenEvent, bool) {
	if l.Removed || len(l.Topics) == 0 {
		return nil, false
	}
	event, err := nftroutABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, false // unknown topic0: not one of ours, or undecodable
	}
	switch event.Name {
	case "Transfer":
		from := common.BytesToAddress(l.Topics[1].Bytes())
		to := common.BytesToAddress(l.Topics[2].Bytes())
		id := new(big.Int).SetBytes(l.Topics[3].Bytes())
		base := model.TokenEvent{Token: model.TokenID(id.Uint64()), Block: l.BlockNumber, LogIndex: uint32(l.Index)}
		if from == (common.Address{}) {
			base.Kind = model.Spawned
			base.To = model.Address(to)
		} else {
			base.Kind = model.Transfer
			base.From = model.Address(from)
			base.To = model.Address(to)
		}
		return &base, true
	case "Listed":
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		values, err := nftroutABI.Events["Listed"].Inputs.NonIndexed().UnpackValues(l.Data)
		if err != nil || len(values) != 1 {
			return nil, false
		}
		return &model.TokenEvent{
			Kind: model.Relisted, Token: model.TokenID(id.Uint64()),
			Block: l.BlockNumber, LogIndex: uint32(l.Index),
			Fee: values[0].(*big.Int),
		}, true
	case "Delisted":
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		return &model.TokenEvent{
			Kind: model.Relisted, Token: model.TokenID(id.Uint64()),
			Block: l.BlockNumber, LogIndex: uint32(l.Index),
			Fee: nil,
		}, true
	default:
		return nil, false
	}
}
