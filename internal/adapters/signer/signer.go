package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// KeySigner signs legacy transactions locally with a private key
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
	gateway usecase.TxGateway
}

// NewKeySigner creates a signer for key on the given chain
func NewKeySigner(key *ecdsa.PrivateKey, chainID *big.Int, gateway usecase.TxGateway) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
		gateway: gateway,
	}
}

// Address returns the signing address
func (s *KeySigner) Address() common.Address { return s.address }

// Send fills in nonce, gas price and gas, then signs and broadcasts req
func (s *KeySigner) Send(ctx context.Context, req usecase.TxRequest) (common.Hash, error) {
	tx, err := s.Sign(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.gateway.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// Sign builds and signs req without broadcasting it
func (s *KeySigner) Sign(ctx context.Context, req usecase.TxRequest) (*types.Transaction, error) {
	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		n, err := s.gateway.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
		nonce = n
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		p, err := s.gateway.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		gasPrice = p
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gas := req.Gas
	if gas == 0 {
		estimate, err := s.gateway.EstimateGas(ctx, ethereum.CallMsg{
			From:     s.address,
			To:       req.To,
			GasPrice: gasPrice,
			Value:    value,
			Data:     req.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		// headroom for estimates taken against a slightly different state
		gas = estimate + estimate/5
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// ImpersonatedSigner has the node sign for an impersonated account
type ImpersonatedSigner struct {
	address common.Address
	gateway usecase.TxGateway
}

// Address returns the impersonated address
func (s *ImpersonatedSigner) Address() common.Address { return s.address }

// Send submits req unsigned with From set to the impersonated account
func (s *ImpersonatedSigner) Send(ctx context.Context, req usecase.TxRequest) (common.Hash, error) {
	req.From = s.address
	return s.gateway.SendUnsignedTransaction(ctx, req)
}

// Factory builds signers bound to one gateway
type Factory struct {
	gateway usecase.TxGateway

	mu      sync.Mutex
	chainID *big.Int
}

// NewFactory creates a new signer factory
func NewFactory(gateway usecase.TxGateway) *Factory {
	return &Factory{gateway: gateway}
}

// FromPrivateKey parses a hex key, with or without 0x prefix
func (f *Factory) FromPrivateKey(ctx context.Context, hexKey string) (usecase.Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("no private key configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	chainID, err := f.chain(ctx)
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key, chainID, f.gateway), nil
}

// Impersonated returns a signer for an account the node impersonates
func (f *Factory) Impersonated(account common.Address) usecase.Signer {
	return &ImpersonatedSigner{address: account, gateway: f.gateway}
}

func (f *Factory) chain(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainID != nil {
		return f.chainID, nil
	}
	id, err := f.gateway.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	f.chainID = id
	return id, nil
}

var (
	_ usecase.Signer        = (*KeySigner)(nil)
	_ usecase.Signer        = (*ImpersonatedSigner)(nil)
	_ usecase.SignerFactory = (*Factory)(nil)
)
