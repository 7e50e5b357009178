package models

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is a compiled contract ready to deploy
type Artifact struct {
	Name     string
	Path     string
	ABI      abi.ABI
	RawABI   json.RawMessage
	Bytecode []byte
}

// DeployData returns the creation code followed by the ABI-encoded constructor args
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	if len(a.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact %s has no bytecode (abstract contract or interface?)", a.Name)
	}
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor args for %s: %w", a.Name, err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}

// Bind returns a handle on a deployed instance of this artifact
func (a *Artifact) Bind(address common.Address) *BoundContract {
	return &BoundContract{Name: a.Name, Address: address, ABI: a.ABI}
}

// BoundContract is a deployed contract address paired with its ABI
type BoundContract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

// Pack encodes a call to method
func (c *BoundContract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s: %w", c.Name, method, err)
	}
	return data, nil
}

// Unpack decodes the return data of method
func (c *BoundContract) Unpack(method string, data []byte) ([]any, error) {
	out, err := c.ABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s.%s: %w", c.Name, method, err)
	}
	return out, nil
}
