package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/pkg/slots"
)

// ReadPrice reads an oracle's current price straight from storage
type ReadPrice struct {
	gateway StateGateway
	log     *slog.Logger
}

// NewReadPrice creates a new ReadPrice use case
func NewReadPrice(gateway StateGateway, log *slog.Logger) *ReadPrice {
	return &ReadPrice{gateway: gateway, log: log}
}

// ReadPriceParams selects the oracle and the slot of its packed price word
type ReadPriceParams struct {
	Oracle common.Address
	// Slot defaults to the OSM's cur/nxt slot
	Slot *big.Int
}

// ReadPriceResult is the decoded price
type ReadPriceResult struct {
	Oracle common.Address
	Slot   common.Hash
	Raw    common.Hash
	Word   slots.PriceWord
	Price  *big.Rat
}

// Run reads and decodes the price word
func (uc *ReadPrice) Run(ctx context.Context, params ReadPriceParams) (*ReadPriceResult, error) {
	slot := params.Slot
	if slot == nil {
		slot = big.NewInt(slots.OSMCurrentSlot)
	}
	key := common.BigToHash(slot)

	raw, err := uc.gateway.StorageAt(ctx, params.Oracle, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %s of %s: %w", slot, params.Oracle.Hex(), err)
	}

	word, err := slots.DecodePriceWord(raw.Hex())
	if err != nil {
		return nil, err
	}
	uc.log.Debug("price word read", "oracle", params.Oracle.Hex(), "raw", raw.Hex())

	return &ReadPriceResult{
		Oracle: params.Oracle,
		Slot:   key,
		Raw:    raw,
		Word:   word,
		Price:  word.Scaled(),
	}, nil
}
