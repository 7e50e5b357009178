package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/pkg/slots"
)

// Storage layout of ProxyRegistry and DSProxy
const (
	DefaultRegistryProxiesSlot = 0
	DefaultProxyOwnerSlot      = 1
)

// TransferProxyOwnership hands a DSProxy to a new owner by writing storage
// directly, without a transaction from the current owner.
type TransferProxyOwnership struct {
	gateway StateGateway
	log     *slog.Logger
}

// NewTransferProxyOwnership creates a new TransferProxyOwnership use case
func NewTransferProxyOwnership(gateway StateGateway, log *slog.Logger) *TransferProxyOwnership {
	return &TransferProxyOwnership{gateway: gateway, log: log}
}

// TransferProxyOwnershipParams locates the registry mapping and the proxy owner
type TransferProxyOwnershipParams struct {
	Registry common.Address
	Proxy    common.Address
	NewOwner common.Address
	// RegistrySlot is the declaration slot of proxies(address); nil means 0
	RegistrySlot *big.Int
	// OwnerSlot is the proxy's owner slot; nil means 1
	OwnerSlot *big.Int
}

type storageWrite struct {
	account common.Address
	slot    common.Hash
	value   common.Hash
}

// TransferProxyOwnershipResult lists what was written
type TransferProxyOwnershipResult struct {
	PreviousOwner common.Address
	RegistrySlot  common.Hash
	OwnerSlot     common.Hash
	// ClearedSlot is the previous owner's registry entry, zero if untouched
	ClearedSlot common.Hash
}

// Run rewrites proxies[newOwner] and proxy.owner, clears the previous owner's
// registry entry when it still points at this proxy and reads every slot back
func (uc *TransferProxyOwnership) Run(ctx context.Context, params TransferProxyOwnershipParams) (*TransferProxyOwnershipResult, error) {
	registrySlot := params.RegistrySlot
	if registrySlot == nil {
		registrySlot = big.NewInt(DefaultRegistryProxiesSlot)
	}
	ownerSlotNum := params.OwnerSlot
	if ownerSlotNum == nil {
		ownerSlotNum = big.NewInt(DefaultProxyOwnerSlot)
	}
	ownerSlot := common.BigToHash(ownerSlotNum)

	prevWord, err := uc.gateway.StorageAt(ctx, params.Proxy, ownerSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner of %s: %w", params.Proxy.Hex(), err)
	}
	previous := common.BytesToAddress(prevWord.Bytes())

	result := &TransferProxyOwnershipResult{
		PreviousOwner: previous,
		RegistrySlot:  slots.MappingSlot(registrySlot, slots.AddressKey(params.NewOwner)),
		OwnerSlot:     ownerSlot,
	}

	writes := []storageWrite{
		{params.Registry, result.RegistrySlot, slots.AddressWord(params.Proxy)},
		{params.Proxy, ownerSlot, slots.AddressWord(params.NewOwner)},
	}
	if previous != (common.Address{}) && previous != params.NewOwner {
		// the registry keeps one proxy per owner, so only clear the entry if it is this proxy
		prevSlot := slots.MappingSlot(registrySlot, slots.AddressKey(previous))
		entry, err := uc.gateway.StorageAt(ctx, params.Registry, prevSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry entry of %s: %w", previous.Hex(), err)
		}
		if entry == slots.AddressWord(params.Proxy) {
			result.ClearedSlot = prevSlot
			writes = append(writes, storageWrite{params.Registry, prevSlot, common.Hash{}})
		} else {
			uc.log.Debug("previous owner's registry entry points elsewhere, leaving it",
				"owner", previous.Hex(), "entry", common.BytesToAddress(entry.Bytes()).Hex())
		}
	}

	for _, w := range writes {
		if err := uc.gateway.SetStorageAt(ctx, w.account, w.slot, w.value); err != nil {
			return nil, fmt.Errorf("failed to write slot %s of %s: %w", w.slot.Hex(), w.account.Hex(), err)
		}
	}

	for _, w := range writes {
		got, err := uc.gateway.StorageAt(ctx, w.account, w.slot)
		if err != nil {
			return nil, fmt.Errorf("failed to read back slot %s of %s: %w", w.slot.Hex(), w.account.Hex(), err)
		}
		if got != w.value {
			return nil, fmt.Errorf("%w: slot %s of %s is %s, wrote %s",
				domain.ErrStorageWriteMismatch, w.slot.Hex(), w.account.Hex(), got.Hex(), w.value.Hex())
		}
	}

	uc.log.Info("proxy ownership transferred",
		"proxy", params.Proxy.Hex(), "from", previous.Hex(), "to", params.NewOwner.Hex())
	return result, nil
}
