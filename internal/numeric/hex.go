// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// Copyright 2026 The NFTrout Indexer Authors
// (modifications)
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package numeric holds small integer/hex helpers shared by the storage
// and chain layers.
package numeric

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// HexOrDecimal64 unmarshals a uint64 from hex or decimal, matching the
// flexible JSON config encoding used for block numbers.
type HexOrDecimal64 uint64

// UnmarshalJSON implements json.Unmarshaler.
func (i *HexOrDecimal64) UnmarshalJSON(input []byte) error {
	if len(input) > 1 && input[0] == '"' {
		input = input[1 : len(input)-1]
	}
	return i.UnmarshalText(input)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *HexOrDecimal64) UnmarshalText(input []byte) error {
	n, ok := ParseUint64(string(input))
	if !ok {
		return fmt.Errorf("invalid hex or decimal integer %q", input)
	}
	*i = HexOrDecimal64(n)
	return nil
}

// ParseUint64 parses s as an integer in decimal or hexadecimal syntax.
// The empty string parses as zero.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// FeeToHex renders an optional listing fee as a lowercase 0x-prefixed
// hex string for storage. A nil fee (unlisted) renders as the empty
// string, which the caller stores as SQL NULL.
func FeeToHex(fee *big.Int) string {
	if fee == nil {
		return ""
	}
	return "0x" + fee.Text(16)
}

// FeeFromHex parses a stored fee column back into a *big.Int. An empty
// string means "unlisted" (nil).
func FeeFromHex(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex fee %q", s)
	}
	return v, nil
}

// AddressToHex lowercases and 0x-prefixes a 20-byte address for storage.
func AddressToHex(addr [20]byte) string {
	return "0x" + fmt.Sprintf("%x", addr[:])
}
