package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteRequest asks an aggregator for a swap route
type QuoteRequest struct {
	From        common.Address
	To          common.Address
	Amount      *big.Int
	SlippageBps uint64
	// MinReceive is the least amount of To the swap may return; nil accepts any
	MinReceive  *big.Int
	Beneficiary common.Address
	Protocols   []string
}

// SwapPayload is the transaction an aggregator wants executed
type SwapPayload struct {
	To   common.Address
	Data []byte
}

// PriceFixture seeds one token on a priced exchange and funds the exchange
type PriceFixture struct {
	Token     common.Address `yaml:"token" toml:"token"`
	Symbol    string         `yaml:"symbol" toml:"symbol"`
	Price     string         `yaml:"price" toml:"price"`
	Precision uint64         `yaml:"precision" toml:"precision"`
	Whale     common.Address `yaml:"whale" toml:"whale"`
	Amount    string         `yaml:"amount" toml:"amount"`
}
