package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

var weiUnits = []struct {
	suffix string
	factor *big.Int
}{
	{"gwei", big.NewInt(params.GWei)},
	{"ether", big.NewInt(params.Ether)},
	{"wei", big.NewInt(params.Wei)},
}

// ParseWei parses an integer amount with an optional wei, gwei or ether suffix.
// Fractions are allowed with a suffix as long as they resolve to whole wei.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", ""))
	if s == "" {
		return nil, nil
	}

	factor := big.NewInt(1)
	lower := strings.ToLower(s)
	for _, u := range weiUnits {
		if strings.HasSuffix(lower, u.suffix) {
			factor = u.factor
			s = strings.TrimSpace(s[:len(s)-len(u.suffix)])
			break
		}
	}

	if v, ok := new(big.Int).SetString(s, 10); ok {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative amount %q", s)
		}
		return v.Mul(v, factor), nil
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(factor))
	if !r.IsInt() || r.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
