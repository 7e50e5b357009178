// Package slots derives Solidity storage locations and decodes raw storage words.
package slots

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// OSMCurrentSlot is where an oracle security module keeps its packed {next, cur} price
const OSMCurrentSlot = 3

// wad is 10^18
var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// mask128 keeps the low 128 bits of a word
var mask128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// Key is a mapping key together with the declaration slot of the mapping
type Key struct {
	BaseSlot *big.Int
	Key      common.Hash
}

// Slot returns the storage location of the mapping entry
func (k Key) Slot() common.Hash {
	return MappingSlot(k.BaseSlot, k.Key)
}

// MappingSlot computes keccak256(pad32(key) ++ pad32(baseSlot)), the location of
// m[key] for a single-level mapping m declared at baseSlot.
func MappingSlot(baseSlot *big.Int, key common.Hash) common.Hash {
	if baseSlot == nil {
		baseSlot = new(big.Int)
	}
	base := common.BigToHash(baseSlot)
	return crypto.Keccak256Hash(key.Bytes(), base.Bytes())
}

// AddressKey left-pads an address to a mapping key
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Uint64Key left-pads an integer to a mapping key
func Uint64Key(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

// AddressWord is the storage representation of an address value
func AddressWord(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// PriceWord is an oracle storage word split into its two 128-bit halves
type PriceWord struct {
	Pending *big.Int
	Current *big.Int
}

// Scaled returns Current as a WAD fraction (Current * 10^-18)
func (w PriceWord) Scaled() *big.Rat {
	return new(big.Rat).SetFrac(w.Current, wad)
}

// DecodePriceWord splits a hex storage word. Payloads longer than 32 hex chars
// carry {pending, current} in the high and low halves; shorter payloads are the
// current value alone.
func DecodePriceWord(raw string) (PriceWord, error) {
	payload := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if payload == "" {
		return PriceWord{}, &StorageDecodeError{Input: raw, Reason: "empty word"}
	}
	if len(payload) > 64 {
		return PriceWord{}, &StorageDecodeError{Input: raw, Reason: "longer than 32 bytes"}
	}
	if len(payload)%2 == 1 {
		payload = "0" + payload
	}
	b, err := hex.DecodeString(payload)
	if err != nil {
		return PriceWord{}, &StorageDecodeError{Input: raw, Reason: "not hex"}
	}

	word := new(uint256.Int).SetBytes(b)
	if len(payload) <= 32 {
		return PriceWord{Pending: new(big.Int), Current: word.ToBig()}, nil
	}
	pending := new(uint256.Int).Rsh(word, 128)
	current := new(uint256.Int).And(word, mask128)
	return PriceWord{Pending: pending.ToBig(), Current: current.ToBig()}, nil
}

// StorageDecodeError is returned when a raw storage word is not a well-formed hex word
type StorageDecodeError struct {
	Input  string
	Reason string
}

func (e *StorageDecodeError) Error() string {
	return "cannot decode storage word " + strconv.Quote(e.Input) + ": " + e.Reason
}
