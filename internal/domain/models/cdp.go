package models

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CDPRecord is a read-only view of a vault from the CDP manager
type CDPRecord struct {
	ID  *big.Int
	Urn common.Address
	Ilk [32]byte
}

// IlkName returns the collateral type as text, e.g. "ETH-A"
func (c CDPRecord) IlkName() string {
	return string(bytes.TrimRight(c.Ilk[:], "\x00"))
}

// CurrentCDP returns the last record of an ascending list, the one in use
func CurrentCDP(records []CDPRecord) (CDPRecord, bool) {
	if len(records) == 0 {
		return CDPRecord{}, false
	}
	return records[len(records)-1], true
}
