package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// maxErrorBody caps how much of a failed response ends up in the error
const maxErrorBody = 512

// Client asks a 1inch-style aggregator for swap calldata
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a new aggregator client
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	base := cfg.Quote.BaseURL
	if base == "" {
		base = config.DefaultQuoteBaseURL
	}
	timeout := cfg.Quote.Timeout
	if timeout <= 0 {
		timeout = config.DefaultQuoteTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// swapResponse is the subset of the /swap answer forkctl uses
type swapResponse struct {
	ToTokenAmount string `json:"toTokenAmount"`
	Tx            *struct {
		To   common.Address `json:"to"`
		Data hexutil.Bytes  `json:"data"`
	} `json:"tx"`
}

// Quote requests one swap payload. A single attempt; retries belong to the caller.
func (c *Client) Quote(ctx context.Context, chainID uint64, req models.QuoteRequest) (*models.SwapPayload, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: swap amount %v", domain.ErrInvalidQuoteRequest, req.Amount)
	}

	q := url.Values{}
	q.Set("fromTokenAddress", req.From.Hex())
	q.Set("toTokenAddress", req.To.Hex())
	q.Set("amount", req.Amount.String())
	q.Set("fromAddress", req.Beneficiary.Hex())
	q.Set("slippage", SlippagePercent(req.SlippageBps))
	if len(req.Protocols) > 0 {
		q.Set("protocols", strings.Join(req.Protocols, ","))
	}
	q.Set("disableEstimate", "true")
	q.Set("allowPartialFill", "false")
	endpoint := fmt.Sprintf("%s/%d/swap?%s", c.baseURL, chainID, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var swap swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if swap.Tx == nil || len(swap.Tx.Data) == 0 {
		return nil, domain.ErrEmptyQuote
	}

	c.log.Debug("quote received", "chainId", chainID, "to", swap.Tx.To.Hex(), "toTokenAmount", swap.ToTokenAmount)
	return &models.SwapPayload{To: swap.Tx.To, Data: swap.Tx.Data}, nil
}

// SlippagePercent renders basis points as the percentage the API expects: 50 -> "0.5"
func SlippagePercent(bps uint64) string {
	return strconv.FormatFloat(float64(bps)/100, 'f', -1, 64)
}

var _ usecase.QuoteAggregator = (*Client)(nil)
