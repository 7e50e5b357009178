package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingDeployment is one broadcast attempt of a logical deployment.
// Nonce stays fixed across attempts; GasPrice strictly increases.
type PendingDeployment struct {
	ContractName    string
	ConstructorArgs []any
	Signer          common.Address
	Nonce           uint64
	GasPrice        *big.Int
	Attempt         int
	TxHash          common.Hash
	SentAt          time.Time
}

// NextAttempt returns the follow-up attempt with the given gas price
func (p *PendingDeployment) NextAttempt(gasPrice *big.Int) *PendingDeployment {
	next := *p
	next.GasPrice = gasPrice
	next.Attempt = p.Attempt + 1
	next.TxHash = common.Hash{}
	next.SentAt = time.Time{}
	return &next
}

// NetworkDeployment is the per-network part of a deployment record
type NetworkDeployment struct {
	Address string `json:"address"`
	Args    []any  `json:"args"`
}

// DeploymentRecord is what the registry persists for a contract name
type DeploymentRecord struct {
	ContractName string                       `json:"contractName"`
	ABI          json.RawMessage              `json:"abi"`
	Networks     map[string]NetworkDeployment `json:"networks"`
}

// NewDeploymentRecord builds a record for one confirmed deployment.
// The network entry is only filled in when persistNetwork is set.
func NewDeploymentRecord(contract string, abi json.RawMessage, network string, address common.Address, args []any, persistNetwork bool) *DeploymentRecord {
	rec := &DeploymentRecord{
		ContractName: contract,
		ABI:          abi,
		Networks:     map[string]NetworkDeployment{},
	}
	if persistNetwork && network != "" {
		rec.Networks[network] = NetworkDeployment{
			Address: address.Hex(),
			Args:    NormalizeArgs(args),
		}
	}
	return rec
}

// Merge folds update into r. Networks present in update replace r's entry for
// that network; all other networks are kept.
func (r *DeploymentRecord) Merge(update *DeploymentRecord) {
	if update == nil {
		return
	}
	if update.ContractName != "" {
		r.ContractName = update.ContractName
	}
	if len(update.ABI) > 0 {
		r.ABI = update.ABI
	}
	if r.Networks == nil {
		r.Networks = make(map[string]NetworkDeployment, len(update.Networks))
	}
	for name, nd := range update.Networks {
		r.Networks[name] = nd
	}
}

// NormalizeArgs turns constructor arguments into JSON-friendly values
func NormalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case common.Address:
			out[i] = v.Hex()
		case *big.Int:
			out[i] = v.String()
		case common.Hash:
			out[i] = v.Hex()
		case [32]byte:
			out[i] = common.Hash(v).Hex()
		case []byte:
			out[i] = fmt.Sprintf("0x%x", v)
		default:
			out[i] = v
		}
	}
	return out
}
