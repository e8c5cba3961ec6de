// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package chain

import (
	"fmt"

	"github.com/escrin/nftrout-indexer/internal/model"
)

// Network is a named, preconfigured NFTrout deployment.
type Network struct {
	Chain   model.ChainID
	Address string
	RPCURL  string
}

var (
	SapphireMainnet = Network{Chain: 0x5afe, Address: "0x998633BDF6eE32A9CcA6c9A247F428596e8e65d8", RPCURL: "https://sapphire.oasis.io"}
	SapphireTestnet = Network{Chain: 0x5aff, Address: "0xF8E3DE55D24D13607A12628E0A113B66BA578bDC", RPCURL: "https://testnet.sapphire.oasis.dev"}
	Local           = Network{Chain: 31337, Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", RPCURL: "http://127.0.0.1:8545"}
)

// NetworkByName resolves one of the three config-file network names.
func NetworkByName(name string) (Network, error) {
	switch name {
	case "sapphire-mainnet":
		return SapphireMainnet, nil
	case "sapphire-testnet":
		return SapphireTestnet, nil
	case "local":
		return Local, nil
	default:
		return Network{}, fmt.Errorf("unknown chain network %q", name)
	}
}
