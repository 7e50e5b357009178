package cli

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/forkctl/internal/app"
	"github.com/trebuchet-org/forkctl/internal/config"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q", domain.ErrInvalidAddress, name, s)
	}
	return common.HexToAddress(s), nil
}

// parseAmount accepts plain integers and unit suffixes such as "1.5ether"
func parseAmount(name, s string) (*big.Int, error) {
	amount, err := config.ParseWei(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if amount == nil {
		return nil, fmt.Errorf("missing %s", name)
	}
	return amount, nil
}

// parseOptionalAmount returns nil for an empty flag
func parseOptionalAmount(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(name, s)
}

func parseSlot(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	slot, ok := new(big.Int).SetString(s, 0)
	if !ok || slot.Sign() < 0 {
		return nil, fmt.Errorf("invalid storage slot %q", s)
	}
	return slot, nil
}

// parseConstructorArgs converts command line strings to the Go values the
// constructor ABI packs
func parseConstructorArgs(artifact *models.Artifact, raw []string) ([]any, error) {
	inputs := artifact.ABI.Constructor.Inputs
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("%s takes %d constructor arguments, got %d", artifact.Name, len(inputs), len(raw))
	}
	args := make([]any, len(raw))
	for i, in := range inputs {
		v, err := parseArg(in.Type, raw[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, in.Type.String(), err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, domain.ErrInvalidAddress
		}
		return common.HexToAddress(s), nil

	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			if t.T != abi.UintTy {
				return nil, fmt.Errorf("invalid integer %q", s)
			}
			var err error
			if n, err = config.ParseWei(s); err != nil {
				return nil, err
			}
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q", s)
		}
		if t.Size > 64 {
			return n, nil
		}
		v := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			if !n.IsUint64() || v.OverflowUint(n.Uint64()) {
				return nil, fmt.Errorf("%q overflows %s", s, t.String())
			}
			v.SetUint(n.Uint64())
		} else {
			if !n.IsInt64() || v.OverflowInt(n.Int64()) {
				return nil, fmt.Errorf("%q overflows %s", s, t.String())
			}
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil

	case abi.BoolTy:
		return strconv.ParseBool(s)

	case abi.StringTy:
		return s, nil

	case abi.BytesTy:
		return hexutil.Decode(s)

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit %s", len(b), t.String())
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", t.String())
}

// withSigner runs fn with the configured deployer key, or with an impersonated
// account when impersonate is set
func withSigner[T any](ctx context.Context, a *app.App, impersonate string, fn func(ctx context.Context, signer usecase.Signer) (T, error)) (T, error) {
	if impersonate != "" {
		account, err := parseAddress("impersonate", impersonate)
		if err != nil {
			var zero T
			return zero, err
		}
		return usecase.WithImpersonation(ctx, a.Sandbox, account, a.Config.System.WhaleBalance, fn)
	}

	signer, err := a.Signers.FromPrivateKey(ctx, a.Config.PrivateKey)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w (set FORKCTL_PRIVATE_KEY or pass --impersonate)", err)
	}
	return fn(ctx, signer)
}
