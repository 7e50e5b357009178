package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trebuchet-org/forkctl/pkg/slots"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrResendBudgetExhausted is returned when a deployment ran out of resend attempts or time
	ErrResendBudgetExhausted = errors.New("resend budget exhausted")

	// ErrSnapshotNotFound is returned when the node refuses to revert to a snapshot id
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidGraph is returned for deployment graphs with unknown deps or cycles
	ErrInvalidGraph = errors.New("invalid deployment graph")

	// ErrStorageWriteMismatch is returned when a raw storage write does not read back
	ErrStorageWriteMismatch = errors.New("storage write mismatch")

	// ErrEmptyQuote is returned when the aggregator answers without a transaction payload
	ErrEmptyQuote = errors.New("empty quote response")

	// ErrInvalidQuoteRequest is returned for quote requests no retry can fix
	ErrInvalidQuoteRequest = errors.New("invalid quote request")

	// ErrNoNetwork is returned when a command needs a network and none is configured
	ErrNoNetwork = errors.New("no network configured")

	// ErrImpersonationActive is returned when a sandbox already has a session open
	ErrImpersonationActive = errors.New("impersonation session already active")

	// ErrNotPricedExchange is returned when fixtures target an exchange without settable prices
	ErrNotPricedExchange = errors.New("exchange does not support fixed prices")
)

// TransientGatewayError wraps node failures that are worth retrying:
// timeouts, dropped connections, missing receipts.
type TransientGatewayError struct {
	Op  string
	Err error
}

func (e *TransientGatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientGatewayError) Unwrap() error { return e.Err }

// PermanentDeployError marks a deployment that can never succeed by resending,
// such as bad constructor arguments or an underfunded signer.
type PermanentDeployError struct {
	Contract string
	Err      error
}

func (e *PermanentDeployError) Error() string {
	return fmt.Sprintf("deploy %s failed permanently: %v", e.Contract, e.Err)
}

func (e *PermanentDeployError) Unwrap() error { return e.Err }

// StorageDecodeError is returned when a raw storage word is not a well-formed hex word
type StorageDecodeError = slots.StorageDecodeError

// QuoteExhaustedError is returned after every quote attempt failed
type QuoteExhaustedError struct {
	Attempts int
	Err      error
}

func (e *QuoteExhaustedError) Error() string {
	return fmt.Sprintf("quote failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *QuoteExhaustedError) Unwrap() error { return e.Err }

// permanentMarkers are node error fragments that no gas bump will fix
var permanentMarkers = []string{
	"insufficient funds",
	"invalid argument",
	"invalid opcode",
	"execution reverted",
	"exceeds block gas limit",
	"intrinsic gas too low",
	"contract creation code storage out of gas",
}

// alreadyKnownMarkers mean a transaction with this nonce is already pooled or mined
var alreadyKnownMarkers = []string{
	"nonce too low",
	"already known",
	"known transaction",
}

// IsPermanentDeployError reports whether err should stop a resend loop
func IsPermanentDeployError(err error) bool {
	var perm *PermanentDeployError
	return errors.As(err, &perm)
}

// IsAlreadyKnown reports whether a broadcast failed only because an earlier
// attempt with the same nonce is already in the pool or mined.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range alreadyKnownMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ClassifyDeployError sorts a gateway error into permanent or transient.
// Already-classified errors pass through unchanged.
func ClassifyDeployError(contract, op string, err error) error {
	if err == nil {
		return nil
	}
	var perm *PermanentDeployError
	if errors.As(err, &perm) {
		return err
	}
	var transient *TransientGatewayError
	if errors.As(err, &transient) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return &PermanentDeployError{Contract: contract, Err: err}
		}
	}
	return &TransientGatewayError{Op: op, Err: err}
}
