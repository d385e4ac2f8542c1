// Package market wraps the token pair lookup service. It normalizes the
// provider's two response shapes into a single ranked pair list and keeps
// all transport failures local: a bad chain lookup falls through to the
// next chain, and only full exhaustion surfaces an error.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	searchPath   = "/latest/dex/search"
	tokensPath   = "/tokens/v1"
	maxResults   = 20
	addressLen   = 42
	addressHexPx = "0x"
)

// ClientConfig configures the market data client.
type ClientConfig struct {
	BaseURL   string
	Chains    []string      // ordered chains tried for address-shaped queries
	Timeout   time.Duration // per-request timeout
	RateLimit int           // requests per minute
	Retries   int           // attempts for transient failures
}

// DefaultChains is the fixed chain fallback order for contract addresses.
var DefaultChains = []string{"ethereum", "base", "polygon", "arbitrum", "optimism"}

// Client is the market data gateway. It is stateless and safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	chains     []string
	retries    int
	limiter    *time.Ticker
	logger     *zap.Logger
}

// NewClient creates a market data client. Zero config fields fall back
// to defaults.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dexscreener.com"
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultChains
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 300
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		chains:     cfg.Chains,
		retries:    cfg.Retries,
		limiter:    time.NewTicker(time.Minute / time.Duration(cfg.RateLimit)),
		logger:     logger.Named("market"),
	}
}

// Close releases the client's rate limiter.
func (c *Client) Close() {
	c.limiter.Stop()
}

// IsAddressQuery reports whether q has the shape of a contract address.
func IsAddressQuery(q string) bool {
	return strings.HasPrefix(q, addressHexPx) && len(q) == addressLen
}

// Search resolves a free-text query or contract address into a ranked
// list of up to 20 valid pairs. Address-shaped queries try the configured
// chains in order and stop at the first chain returning pairs; everything
// else (including address lookups that come up empty on every chain) goes
// through the free-text search endpoint.
func (c *Client) Search(ctx context.Context, query string) ([]TokenPair, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var pairs []TokenPair
	if IsAddressQuery(query) {
		for _, chain := range c.chains {
			found, err := c.TokenPairs(ctx, chain, query)
			if err != nil {
				c.logger.Debug("chain lookup failed",
					zap.String("chain", chain),
					zap.String("query", query),
					zap.Error(err))
				continue
			}
			if len(found) > 0 {
				pairs = found
				break
			}
		}
	}

	if pairs == nil {
		found, err := c.searchPairs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		pairs = found
	}

	return rankPairs(pairs), nil
}

// TokenPairs looks up all pairs for a token address on one chain.
func (c *Client) TokenPairs(ctx context.Context, chain, address string) ([]TokenPair, error) {
	u := fmt.Sprintf("%s%s/%s/%s", c.baseURL, tokensPath, chain, address)
	var pairs []TokenPair
	if err := c.doRequest(ctx, u, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// BestPair returns the top-ranked valid pair for a token, trying the
// token's own chain first and falling back over the remaining configured
// chains. It returns nil when no chain knows the token.
func (c *Client) BestPair(ctx context.Context, chainID, address string) (*TokenPair, error) {
	chains := c.chains
	if chainID != "" {
		chains = append([]string{chainID}, chains...)
	}
	var lastErr error
	for _, chain := range chains {
		pairs, err := c.TokenPairs(ctx, chain, address)
		if err != nil {
			lastErr = err
			continue
		}
		if ranked := rankPairs(pairs); len(ranked) > 0 {
			return &ranked[0], nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("lookup pairs for %s: %w", address, lastErr)
	}
	return nil, nil
}

func (c *Client) searchPairs(ctx context.Context, query string) ([]TokenPair, error) {
	u := fmt.Sprintf("%s%s?q=%s", c.baseURL, searchPath, url.QueryEscape(query))
	var response struct {
		SchemaVersion string      `json:"schemaVersion"`
		Pairs         []TokenPair `json:"pairs"`
	}
	if err := c.doRequest(ctx, u, &response); err != nil {
		return nil, err
	}
	return response.Pairs, nil
}

// doRequest performs a rate-limited GET and decodes the body into out,
// retrying transient failures (network errors, 429, 5xx).
func (c *Client) doRequest(ctx context.Context, url string, out interface{}) error {
	operation := func() (struct{}, error) {
		select {
		case <-ctx.Done():
			return struct{}{}, backoff.Permanent(ctx.Err())
		case <-c.limiter.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return struct{}{}, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries)))
	return err
}

// validPair keeps a pair only when its base token is identified and it
// carries either a parseable non-negative USD price or a reported 24h
// volume.
func validPair(p *TokenPair) bool {
	if p.BaseToken.Address == "" || p.BaseToken.Symbol == "" {
		return false
	}
	if price, ok := p.PriceUSDFloat(); ok && price >= 0 {
		return true
	}
	return p.Volume.H24 != nil
}

// rankPairs filters malformed pairs and sorts the rest by 24h volume,
// then USD liquidity, then market cap, truncating to 20 results.
func rankPairs(pairs []TokenPair) []TokenPair {
	ranked := make([]TokenPair, 0, len(pairs))
	for i := range pairs {
		if validPair(&pairs[i]) {
			ranked = append(ranked, pairs[i])
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if a, b := ranked[i].VolumeH24(), ranked[j].VolumeH24(); a != b {
			return a > b
		}
		if a, b := ranked[i].LiquidityUSD(), ranked[j].LiquidityUSD(); a != b {
			return a > b
		}
		return ranked[i].MarketCap > ranked[j].MarketCap
	})

	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked
}
