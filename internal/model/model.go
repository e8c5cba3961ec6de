// Package model holds the domain types shared across storage, chain,
// ipfs, ancestry, and API layers: token identity, content identifiers,
// addresses, and the UI-facing projections served by the read API.
package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// ChainID identifies an EVM chain by its numeric chain id.
type ChainID uint32

// TokenID is a 1-based on-chain token identifier.
type TokenID uint32

// TroutID uniquely identifies a token across chains.
type TroutID struct {
	Chain ChainID `json:"chainId"`
	Token TokenID `json:"tokenId"`
}

func (t TroutID) String() string {
	return fmt.Sprintf("%d:%d", t.Chain, t.Token)
}

// Address is a 20-byte on-chain account identifier.
type Address [20]byte

// ParseAddress accepts an optionally 0x-prefixed hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 40 {
		return a, fmt.Errorf("invalid address length %d", len(s))
	}
	var buf [20]byte
	if _, err := fmt.Sscanf(s, "%x", &buf); err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(buf), nil
}

// Hex renders the address lowercase with a 0x prefix, the canonical
// storage and wire form.
func (a Address) Hex() string {
	return fmt.Sprintf("0x%x", [20]byte(a))
}

func (a Address) String() string { return a.Hex() }

// MarshalJSON renders the address the same way Hex does: lowercase,
// 0x-prefixed. Without this, encoding/json would marshal the
// underlying [20]byte as a JSON array of numbers.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// IsZero reports whether a is the zero address, the sentinel for
// "token does not exist yet" used by Transfer events.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Cid is an opaque content identifier. Equality is byte-exact.
type Cid string

// UnmarshalJSON accepts both a plain JSON string and DAG-JSON's IPLD
// link object form ({"/": "<cid>"}), the shape the object store
// returns for Image/the generation history inside dag_get results.
func (c *Cid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Cid(s)
		return nil
	}
	var link struct {
		Slash string `json:"/"`
	}
	if err := json.Unmarshal(data, &link); err != nil {
		return fmt.Errorf("decoding cid: %w", err)
	}
	*c = Cid(link.Slash)
	return nil
}

// JoinCid joins a multihash-only CID with a relative path, collapsing
// redundant leading/trailing slashes to exactly one separator.
func JoinCid(cid Cid, path string) string {
	left := strings.TrimSuffix(string(cid), "/")
	right := strings.TrimPrefix(path, "/")
	if right == "" {
		return left
	}
	return left + "/" + right
}

// TokenURICid parses a token_uri's ipfs:// value. An empty CID after
// the prefix means "not yet uploaded".
func TokenURICid(uri string) (Cid, bool, error) {
	rest, ok := strings.CutPrefix(uri, "ipfs://")
	if !ok {
		return "", false, fmt.Errorf("not an ipfs uri: %q", uri)
	}
	if rest == "" {
		return "", false, nil
	}
	return Cid(rest), true, nil
}

// TroutAttributes carries the boolean flags baked into a generation's
// metadata at mint time.
type TroutAttributes struct {
	Genesis bool `json:"genesis"`
	Santa   bool `json:"santa"`
}

// TroutMetadata is the JSON document fetched from the object store for
// a token's current generation.
type TroutMetadata struct {
	Description string          `json:"description"`
	Image       Cid             `json:"image"`
	MetadataCid Cid             `json:"metadata.json"`
	Name        string          `json:"name"`
	Properties  TroutProperties `json:"properties"`
}

// TroutProperties is the "properties" object inside TroutMetadata.
type TroutProperties struct {
	Version     uint32          `json:"version"`
	Generations []Cid           `json:"generations"`
	Left        *TroutID        `json:"left"`
	Right       *TroutID        `json:"right"`
	Self        TroutID         `json:"self"`
	Attributes  TroutAttributes `json:"attributes"`
}

// FullToken is a fully-indexed token ready for Store.InsertTokens: the
// Metadata, Analysis (default COI), and Generation rows it implies.
type FullToken struct {
	Cid   Cid
	Meta  TroutMetadata
	Owner Address
	Fee   *big.Int
}

// CurrentVersion is the metadata schema version new tokens are indexed
// at; tokens below this are outdated and get reindexed.
const CurrentVersion = 3

// TokenForUi is the read API's per-token projection.
type TokenForUi struct {
	ID      TokenID     `json:"id"`
	Owner   Address     `json:"owner"`
	Name    string      `json:"name"`
	Coi     float64     `json:"coi"`
	Fee     *big.Int    `json:"fee,omitempty"`
	Parents *[2]TroutID `json:"parents,omitempty"`
	Pending bool        `json:"pending"`
}

// EventKind discriminates the three kinds of on-chain activity the
// ingester records. Modeled as a tagged TokenEvent rather than an
// interface hierarchy, per the "polymorphic event kinds" design note.
type EventKind int

const (
	Spawned EventKind = iota
	Relisted
	Transfer
)

// TokenEvent is one decoded contract log, not yet applied to storage.
type TokenEvent struct {
	Kind     EventKind
	Token    TokenID
	Block    uint64
	LogIndex uint32
	To       Address  // Spawned.to, Transfer.to
	From     Address  // Transfer.from
	Fee      *big.Int // Relisted.fee; nil means delisted
}

// Event is either a decoded TokenEvent or a ProcessedBlock marker,
// mirroring the original stream's per-block (events..., marker) shape.
type Event struct {
	Token          *TokenEvent
	ProcessedBlock *uint64
}

// EventForUi is the read API's breeding-history projection.
type EventForUi struct {
	ID       TokenID  `json:"id"`
	Block    uint64   `json:"block"`
	Kind     string   `json:"kind"` // always "breed"
	Breeder  TokenID  `json:"breeder"`
	Child    TokenID  `json:"child"`
	Coparent TokenID  `json:"coparent"`
	Price    *big.Int `json:"price"`
	Owner    Address  `json:"owner"`
}
