package anvil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// newMockRPCServer creates a JSON-RPC server answering with handler
func newMockRPCServer(t *testing.T, handler func(req rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode RPC request: %v", err)
			return
		}
		resp := handler(req)
		resp.Jsonrpc = "2.0"
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode RPC response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func gatewayFor(t *testing.T, server *httptest.Server, flavor string) *Gateway {
	t.Helper()
	client, err := rpc.Dial(server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	gw, err := NewGatewayFromClient(client, flavor, 5*time.Millisecond, clockwork.NewRealClock(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return gw
}

func param[T any](t *testing.T, req rpcRequest, i int) T {
	t.Helper()
	require.Greater(t, len(req.Params), i, "missing param %d of %s", i, req.Method)
	var v T
	require.NoError(t, json.Unmarshal(req.Params[i], &v))
	return v
}

var account = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestSnapshot(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "evm_snapshot", req.Method)
		return rpcResponse{Result: "0x1"}
	})

	id, err := gatewayFor(t, server, FlavorAnvil).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x1", id)
}

func TestRevert(t *testing.T) {
	for _, tc := range []struct {
		name   string
		result bool
	}{
		{"known id", true},
		{"unknown id", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
				assert.Equal(t, "evm_revert", req.Method)
				assert.Equal(t, "0x1", param[string](t, req, 0))
				return rpcResponse{Result: tc.result}
			})

			ok, err := gatewayFor(t, server, FlavorAnvil).Revert(context.Background(), "0x1")
			require.NoError(t, err)
			assert.Equal(t, tc.result, ok)
		})
	}
}

func TestRevert_RPCError(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Error: &rpcError{Code: -32000, Message: "revert failed"}}
	})

	_, err := gatewayFor(t, server, FlavorAnvil).Revert(context.Background(), "0x1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revert failed")
}

func TestCheatcodePrefix(t *testing.T) {
	for _, flavor := range []string{FlavorAnvil, FlavorHardhat} {
		t.Run(flavor, func(t *testing.T) {
			var (
				mu      sync.Mutex
				methods []string
			)
			server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
				mu.Lock()
				methods = append(methods, req.Method)
				mu.Unlock()
				return rpcResponse{Result: true}
			})
			gw := gatewayFor(t, server, flavor)
			ctx := context.Background()

			require.NoError(t, gw.ImpersonateAccount(ctx, account))
			require.NoError(t, gw.SetBalance(ctx, account, big.NewInt(1)))
			require.NoError(t, gw.StopImpersonatingAccount(ctx, account))

			assert.Equal(t, []string{
				flavor + "_impersonateAccount",
				flavor + "_setBalance",
				flavor + "_stopImpersonatingAccount",
			}, methods)
		})
	}
}

func TestUnknownFlavor(t *testing.T) {
	_, err := NewGatewayFromClient(nil, "ganache", 0, clockwork.NewRealClock(), slog.Default())
	assert.Error(t, err)
}

func TestSetStorageAt_EncodesSlotAsQuantity(t *testing.T) {
	value := common.HexToHash("0x2a")
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "hardhat_setStorageAt", req.Method)
		assert.Equal(t, account, param[common.Address](t, req, 0))
		assert.Equal(t, "0x3", param[string](t, req, 1))
		assert.Equal(t, value, param[common.Hash](t, req, 2))
		return rpcResponse{Result: true}
	})

	err := gatewayFor(t, server, FlavorHardhat).SetStorageAt(context.Background(), account, common.BigToHash(big.NewInt(3)), value)
	require.NoError(t, err)
}

func TestSetBalance_HexQuantity(t *testing.T) {
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "0xde0b6b3a7640000", param[string](t, req, 1))
		return rpcResponse{Result: nil}
	})

	require.NoError(t, gatewayFor(t, server, FlavorAnvil).SetBalance(context.Background(), account, big.NewInt(1e18)))
}

func TestResetFork(t *testing.T) {
	t.Run("pinned block", func(t *testing.T) {
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			assert.Equal(t, "anvil_reset", req.Method)
			p := param[map[string]map[string]any](t, req, 0)
			assert.Equal(t, "https://eth.example.org/v2/key", p["forking"]["jsonRpcUrl"])
			assert.Equal(t, "0x1036640", p["forking"]["blockNumber"])
			return rpcResponse{Result: true}
		})

		err := gatewayFor(t, server, FlavorAnvil).ResetFork(context.Background(), "https://eth.example.org/v2/key", 17_000_000)
		require.NoError(t, err)
	})

	t.Run("latest block", func(t *testing.T) {
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			p := param[map[string]map[string]any](t, req, 0)
			assert.NotContains(t, p["forking"], "blockNumber")
			return rpcResponse{Result: true}
		})

		require.NoError(t, gatewayFor(t, server, FlavorAnvil).ResetFork(context.Background(), "http://localhost:8545", 0))
	})
}

func TestSendUnsignedTransaction(t *testing.T) {
	token := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	want := common.HexToHash("0xabc")
	server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "eth_sendTransaction", req.Method)
		args := param[map[string]string](t, req, 0)
		assert.Equal(t, account.Hex(), common.HexToAddress(args["from"]).Hex())
		assert.Equal(t, token.Hex(), common.HexToAddress(args["to"]).Hex())
		assert.Equal(t, "0xa9059cbb", args["data"])
		assert.Equal(t, "0x5208", args["gas"])
		assert.NotContains(t, args, "nonce")
		return rpcResponse{Result: want}
	})

	hash, err := gatewayFor(t, server, FlavorAnvil).SendUnsignedTransaction(context.Background(), usecase.TxRequest{
		From: account,
		To:   &token,
		Data: common.FromHex("0xa9059cbb"),
		Gas:  21000,
	})
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func receiptJSON(hash common.Hash, block string) map[string]any {
	return map[string]any{
		"transactionHash":   hash,
		"blockHash":         common.HexToHash("0xb1"),
		"blockNumber":       block,
		"transactionIndex":  "0x0",
		"status":            "0x1",
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logs":              []any{},
		"logsBloom":         "0x" + zeros(512),
		"contractAddress":   common.HexToAddress("0xc0ffee"),
	}
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestWaitMined(t *testing.T) {
	hash := common.HexToHash("0x1234")

	t.Run("polls until the receipt appears", func(t *testing.T) {
		var polls atomic.Int32
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			assert.Equal(t, "eth_getTransactionReceipt", req.Method)
			if polls.Add(1) < 3 {
				return rpcResponse{Result: nil}
			}
			return rpcResponse{Result: receiptJSON(hash, "0x10")}
		})

		receipt, err := gatewayFor(t, server, FlavorAnvil).WaitMined(context.Background(), hash, 1)
		require.NoError(t, err)
		assert.Equal(t, hash, receipt.TxHash)
		assert.Equal(t, common.HexToAddress("0xc0ffee"), receipt.ContractAddress)
		assert.EqualValues(t, 3, polls.Load())
	})

	t.Run("waits for confirmations", func(t *testing.T) {
		var heads atomic.Int32
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			switch req.Method {
			case "eth_getTransactionReceipt":
				return rpcResponse{Result: receiptJSON(hash, "0x10")}
			case "eth_blockNumber":
				if heads.Add(1) < 2 {
					return rpcResponse{Result: "0x10"}
				}
				return rpcResponse{Result: "0x11"}
			}
			t.Errorf("unexpected method %s", req.Method)
			return rpcResponse{}
		})

		_, err := gatewayFor(t, server, FlavorAnvil).WaitMined(context.Background(), hash, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 2, heads.Load())
	})

	t.Run("repeated poll failures are transient", func(t *testing.T) {
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			return rpcResponse{Error: &rpcError{Code: -32000, Message: "upstream timeout"}}
		})

		_, err := gatewayFor(t, server, FlavorAnvil).WaitMined(context.Background(), hash, 1)
		var transientErr *domain.TransientGatewayError
		require.ErrorAs(t, err, &transientErr)
		assert.Equal(t, "eth_getTransactionReceipt", transientErr.Op)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		server := newMockRPCServer(t, func(req rpcRequest) rpcResponse {
			return rpcResponse{Result: nil}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := gatewayFor(t, server, FlavorAnvil).WaitMined(ctx, hash, 1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://eth-mainnet.example.com", redactURL("https://eth-mainnet.example.com/v2/secret"))
	assert.Equal(t, "localhost:8545", redactURL("localhost:8545"))
}
