// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package chain is a read-only facade over one NFTrout contract
// deployment: view calls pinned at a fixed block height, plus a
// streaming log decoder. Every blocking call goes through
// internal/retry so transient provider failures never surface to
// callers as hard errors.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"reflect"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/numeric"
	"github.com/escrin/nftrout-indexer/internal/retry"
)

// Error wraps every RPC/ABI failure the client surfaces.
type Error struct{ err error }

func (e *Error) Error() string { return "chain client error: " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{err: err}
}

// Client is a value type: cloning it (e.g. via AtBlock) shares the
// underlying pooled HTTP connection and is safe across goroutines.
type Client struct {
	log   *zap.Logger
	raw   *ethclient.Client
	addr  common.Address
	chain model.ChainID
	block *big.Int // nil = latest
}

// Dial connects to net's RPC endpoint and returns a Client pinned at
// the latest block.
func Dial(ctx context.Context, log *zap.Logger, net Network) (*Client, error) {
	raw, err := ethclient.DialContext(ctx, net.RPCURL)
	if err != nil {
		return nil, wrap(fmt.Errorf("dialing %s: %w", net.RPCURL, err))
	}
	return &Client{
		log:   log.With(zap.Uint32("chain", uint32(net.Chain))),
		raw:   raw,
		addr:  common.HexToAddress(net.Address),
		chain: net.Chain,
	}, nil
}

// AtBlock returns a copy of the client pinned at block, for a
// consistent snapshot read across several calls.
func (c *Client) AtBlock(block uint64) *Client {
	cp := *c
	cp.block = new(big.Int).SetUint64(block)
	return &cp
}

func (c *Client) ChainID() model.ChainID { return c.chain }

// call performs a read-only contract call and unpacks the single
// return value of method into a fresh Go value matching its ABI type
// (a *big.Int, string, common.Address, or — for tuple[]/tuple returns
// — a slice of anonymous structs with exported, ABI-tag-matched
// fields). Use reflectField to read named components out of the
// latter without needing to match that anonymous type by hand.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	input, err := nftroutABI.Pack(method, args...)
	if err != nil {
		return nil, wrap(fmt.Errorf("packing %s: %w", method, err))
	}
	msg := ethereum.CallMsg{To: &c.addr, Data: input}
	out, err := retry.Do(ctx, c.log, method, func(ctx context.Context) ([]byte, error) {
		b, err := c.raw.CallContract(ctx, msg, c.block)
		return b, wrap(err)
	})
	if err != nil {
		return nil, err
	}
	values, err := nftroutABI.Methods[method].Outputs.UnpackValues(out)
	if err != nil {
		return nil, wrap(fmt.Errorf("unpacking %s result: %w", method, err))
	}
	if len(values) != 1 {
		return nil, wrap(fmt.Errorf("%s: expected 1 return value, got %d", method, len(values)))
	}
	return values[0], nil
}

// reflectField reads a named field off one element of a dynamically
// typed ABI tuple slice (see call's doc comment).
func reflectField(tuple interface{}, name string) interface{} {
	return reflect.ValueOf(tuple).FieldByName(name).Interface()
}

// TotalSupply returns the number of tokens minted so far.
func (c *Client) TotalSupply(ctx context.Context) (model.TokenID, error) {
	v, err := c.call(ctx, "totalSupply")
	if err != nil {
		return 0, err
	}
	return model.TokenID(v.(*big.Int).Uint64()), nil
}

// Studs returns the fee for every token currently listed for
// breeding, paging through getStuds(start, count) until a short page.
func (c *Client) Studs(ctx context.Context) (map[model.TokenID]*big.Int, error) {
	const pageSize = 256
	studs := make(map[model.TokenID]*big.Int)
	start := big.NewInt(0)
	count := big.NewInt(pageSize)
	for {
		v, err := c.call(ctx, "getStuds", start, count)
		if err != nil {
			return nil, err
		}
		page := reflect.ValueOf(v)
		for i := 0; i < page.Len(); i++ {
			elem := page.Index(i).Interface()
			id := reflectField(elem, "TokenId").(*big.Int)
			fee := reflectField(elem, "Fee").(*big.Int)
			studs[model.TokenID(id.Uint64())] = fee
		}
		if page.Len() < pageSize {
			return studs, nil
		}
		start = new(big.Int).Add(start, count)
	}
}

// TokenCID resolves a token's tokenURI and strips the ipfs:// prefix.
// A returned (_, false, nil) means "not yet uploaded".
func (c *Client) TokenCID(ctx context.Context, id model.TokenID) (model.Cid, bool, error) {
	v, err := c.call(ctx, "tokenURI", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return "", false, err
	}
	cid, ok, err := model.TokenURICid(v.(string))
	if err != nil {
		return "", false, wrap(fmt.Errorf("token %d: %w", id, err))
	}
	return cid, ok, nil
}

// Owner returns the current owner of a single token.
func (c *Client) Owner(ctx context.Context, id model.TokenID) (model.Address, error) {
	v, err := c.call(ctx, "ownerOf", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return model.Address{}, err
	}
	return model.Address(v.(common.Address)), nil
}

// Owners resolves a batch of owners in one round trip via
// explicitOwnershipsOf, preserving the order of ids.
func (c *Client) Owners(ctx context.Context, ids []model.TokenID) ([]model.Address, error) {
	args := make([]*big.Int, len(ids))
	for i, id := range ids {
		args[i] = new(big.Int).SetUint64(uint64(id))
	}
	v, err := c.call(ctx, "explicitOwnershipsOf", args)
	if err != nil {
		return nil, err
	}
	page := reflect.ValueOf(v)
	addrs := make([]model.Address, page.Len())
	for i := 0; i < page.Len(); i++ {
		addr := reflectField(page.Index(i).Interface(), "Addr").(common.Address)
		addrs[i] = model.Address(addr)
	}
	return addrs, nil
}

// LatestBlock returns the provider's current chain tip.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	return retry.Do(ctx, c.log, "latest_block", func(ctx context.Context) (uint64, error) {
		n, err := c.raw.BlockNumber(ctx)
		return n, wrap(err)
	})
}

// logsAt fetches every log this contract emitted in exactly one
// block, retrying indefinitely on provider error.
func (c *Client) logsAt(ctx context.Context, blockNumber uint64) ([]types.Log, error) {
	return retry.Do(ctx, c.log, "get_logs", func(ctx context.Context) ([]types.Log, error) {
		logs, err := c.raw.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(blockNumber),
			ToBlock:   new(big.Int).SetUint64(blockNumber),
			Addresses: []common.Address{c.addr},
		})
		return logs, wrap(err)
	})
}

// FeeHex renders a listing fee as the same hex form storage uses, so
// callers can compare without importing internal/numeric directly.
func FeeHex(fee *big.Int) string { return numeric.FeeToHex(fee) }
