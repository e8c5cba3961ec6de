// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package signing verifies the EIP-712 typed-data signatures attached
// to name-update requests.
package signing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/escrin/nftrout-indexer/internal/model"
)

// domainChainID and domainVerifyingContract are fixed by the
// NameRequest scheme; they do not vary with the chain the token
// actually lives on.
const domainChainID = 23294

var domainVerifyingContract = "0x0000000000000000000000000000000000000000"

var nameRequestTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"NameRequest": {
		{Name: "trout", Type: "uint256"},
		{Name: "name", Type: "string"},
	},
}

// typedData builds the EIP-712 document for a (trout, name) pair. The
// domain is constant across chains; only the message varies.
func typedData(trout model.TokenID, name string) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       nameRequestTypes,
		PrimaryType: "NameRequest",
		Domain: apitypes.TypedDataDomain{
			Name:              "NameRequest",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(domainChainID),
			VerifyingContract: domainVerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"trout": (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(trout))),
			"name":  name,
		},
	}
}

// Recover recovers the address that produced sig over the NameRequest
// typed-data hash for (trout, name). sig is the 65-byte
// r||s||v signature; v may be 0/1 or 27/28.
func Recover(trout model.TokenID, name string, sig []byte) (model.Address, error) {
	if len(sig) != 65 {
		return model.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData(trout, name))
	if err != nil {
		return model.Address{}, fmt.Errorf("hashing typed data: %w", err)
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return model.Address{}, fmt.Errorf("recovering signer: %w", err)
	}
	return model.Address(crypto.PubkeyToAddress(*pub)), nil
}
