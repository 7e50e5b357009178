package usecase

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseABI(erc20JSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// sendTokenTransfer sends token.transfer(to, amount) from signer
func sendTokenTransfer(ctx context.Context, signer Signer, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return signer.Send(ctx, TxRequest{From: signer.Address(), To: &token, Data: data})
}

// tokenBalance reads token.balanceOf(owner)
func tokenBalance(ctx context.Context, state StateGateway, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := state.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s on %s: %w", owner.Hex(), token.Hex(), err)
	}
	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf: %w", err)
	}
	return abi.ConvertType(values[0], new(big.Int)).(*big.Int), nil
}

// waitSuccess waits for hash and fails on a reverted receipt
func waitSuccess(ctx context.Context, gateway TxGateway, hash common.Hash, what string) error {
	receipt, err := gateway.WaitMined(ctx, hash, 1)
	if err != nil {
		return fmt.Errorf("failed waiting for %s (%s): %w", what, hash.Hex(), err)
	}
	if receipt == nil || receipt.Status == 0 {
		return fmt.Errorf("%s reverted (%s)", what, hash.Hex())
	}
	return nil
}
