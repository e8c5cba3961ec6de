// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// nftroutABIJSON is the subset of the NFTrout contract interface the
// indexer calls: the ERC721-style Transfer log, the two listing logs,
// and the view functions used to enumerate tokens and their owners.
// No ABI JSON ships with the retrieval pack, so this is hand-written
// in the abigen convention go-ethereum itself uses.
const nftroutABIJSON = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}
	]},
	{"type":"event","name":"Listed","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"fee","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Delisted","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true}
	]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"explicitOwnershipsOf","stateMutability":"view",
		"inputs":[{"name":"tokenIds","type":"uint256[]"}],
		"outputs":[{"name":"","type":"tuple[]","components":[
			{"name":"addr","type":"address"},
			{"name":"startTimestamp","type":"uint64"},
			{"name":"burned","type":"bool"},
			{"name":"extraData","type":"uint24"}
		]}]},
	{"type":"function","name":"getStuds","stateMutability":"view",
		"inputs":[{"name":"start","type":"uint256"},{"name":"count","type":"uint256"}],
		"outputs":[{"name":"","type":"tuple[]","components":[
			{"name":"tokenId","type":"uint256"},
			{"name":"fee","type":"uint256"}
		]}]}
]`

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(nftroutABIJSON))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var nftroutABI = mustParseABI()
