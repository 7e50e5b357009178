package domain

import "math/big"

// EscalateGasPrice bumps a gas price by one eighth (12.5%).
// The result is always strictly greater than prev, so tiny prices still move by one wei.
func EscalateGasPrice(prev *big.Int) *big.Int {
	if prev == nil || prev.Sign() <= 0 {
		return big.NewInt(1)
	}
	bump := new(big.Int).Quo(prev, big.NewInt(8))
	next := new(big.Int).Add(prev, bump)
	if next.Cmp(prev) <= 0 {
		next = new(big.Int).Add(prev, big.NewInt(1))
	}
	return next
}
