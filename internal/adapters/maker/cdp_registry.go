// Package maker reads vault ownership from Maker's proxy registry and CDP manager.
package maker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

const registryABI = `[
	{"type":"function","name":"proxies","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getCdpsAsc","stateMutability":"view",
	 "inputs":[{"name":"manager","type":"address"},{"name":"guy","type":"address"}],
	 "outputs":[{"name":"ids","type":"uint256[]"},{"name":"urns","type":"address[]"},{"name":"ilks","type":"bytes32[]"}]}
]`

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

var errNotConfigured = errors.New("address not configured")

// CDPRegistry implements usecase.CDPRegistry with eth_call
type CDPRegistry struct {
	state         usecase.StateGateway
	proxyRegistry common.Address
	manager       common.Address
	getCdps       common.Address
}

// NewCDPRegistry creates a registry reader for the configured Maker deployment
func NewCDPRegistry(cfg *config.RuntimeConfig, state usecase.StateGateway) *CDPRegistry {
	return &CDPRegistry{
		state:         state,
		proxyRegistry: cfg.System.ProxyRegistry,
		manager:       cfg.System.CDPManager,
		getCdps:       cfg.System.GetCdps,
	}
}

// ProxyOf returns owner's DSProxy, the zero address when it has none
func (r *CDPRegistry) ProxyOf(ctx context.Context, owner common.Address) (common.Address, error) {
	if r.proxyRegistry == (common.Address{}) {
		return common.Address{}, fmt.Errorf("proxy registry %w", errNotConfigured)
	}
	out, err := r.call(ctx, r.proxyRegistry, "proxies", owner)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// CDPsOf lists the vaults held by proxy in ascending id order
func (r *CDPRegistry) CDPsOf(ctx context.Context, proxy common.Address) ([]models.CDPRecord, error) {
	if r.getCdps == (common.Address{}) {
		return nil, fmt.Errorf("GetCdps %w", errNotConfigured)
	}
	if r.manager == (common.Address{}) {
		return nil, fmt.Errorf("CDP manager %w", errNotConfigured)
	}
	out, err := r.call(ctx, r.getCdps, "getCdpsAsc", r.manager, proxy)
	if err != nil {
		return nil, err
	}

	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	urns := *abi.ConvertType(out[1], new([]common.Address)).(*[]common.Address)
	ilks := *abi.ConvertType(out[2], new([][32]byte)).(*[][32]byte)
	if len(urns) != len(ids) || len(ilks) != len(ids) {
		return nil, fmt.Errorf("getCdpsAsc returned mismatched lists (%d ids, %d urns, %d ilks)", len(ids), len(urns), len(ilks))
	}

	records := make([]models.CDPRecord, len(ids))
	for i := range ids {
		records[i] = models.CDPRecord{ID: ids[i], Urn: urns[i], Ilk: ilks[i]}
	}
	return records, nil
}

func (r *CDPRegistry) call(ctx context.Context, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	raw, err := r.state.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, to.Hex(), err)
	}
	out, err := parsedABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	return out, nil
}

var _ usecase.CDPRegistry = (*CDPRegistry)(nil)
