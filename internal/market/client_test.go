package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAddress = "0x1234567890123456789012345678901234567890"

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:   server.URL,
		Timeout:   2 * time.Second,
		RateLimit: 60000, // effectively unthrottled for tests
		Retries:   1,
	}, zap.NewNop())
	t.Cleanup(client.Close)

	return client, server
}

func pairJSON(symbol string, priceUSD string, volumeH24 float64) TokenPair {
	v := volumeH24
	return TokenPair{
		ChainID:     "ethereum",
		PairAddress: "0xpair" + symbol,
		BaseToken:   PairToken{Address: testAddress, Symbol: symbol, Name: symbol + " Token"},
		QuoteToken:  PairToken{Address: "0xquote", Symbol: "WETH"},
		PriceUSD:    priceUSD,
		Volume:      PairVolume{H24: &v},
	}
}

func TestIsAddressQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{testAddress, true},
		{"0x1234", false},
		{"PEPE", false},
		{strings.Repeat("a", 42), false},
		{"0x" + strings.Repeat("a", 41), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAddressQuery(tt.query), "query %q", tt.query)
	}
}

func TestSearchAddressTriesChainsInOrder(t *testing.T) {
	var mu sync.Mutex
	var chainsSeen []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/tokens/v1/") {
			t.Errorf("Unexpected path for address query: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		parts := strings.Split(r.URL.Path, "/")
		chain := parts[3]

		mu.Lock()
		chainsSeen = append(chainsSeen, chain)
		mu.Unlock()

		// Only polygon knows the token
		if chain == "polygon" {
			_ = json.NewEncoder(w).Encode([]TokenPair{pairJSON("AAA", "1.5", 1000)})
			return
		}
		_ = json.NewEncoder(w).Encode([]TokenPair{})
	})

	client, _ := newTestClient(t, handler)

	pairs, err := client.Search(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "AAA", pairs[0].BaseToken.Symbol)

	// Stops at the first chain with results: no arbitrum or optimism calls
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ethereum", "base", "polygon"}, chainsSeen)
}

func TestSearchAddressFallsBackToTextSearch(t *testing.T) {
	var searchHit bool

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/tokens/v1/") {
			// Every chain comes up empty
			_ = json.NewEncoder(w).Encode([]TokenPair{})
			return
		}
		if r.URL.Path == "/latest/dex/search" {
			searchHit = true
			assert.Equal(t, testAddress, r.URL.Query().Get("q"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"schemaVersion": "1.0.0",
				"pairs":         []TokenPair{pairJSON("BBB", "0.5", 10)},
			})
			return
		}
		http.NotFound(w, r)
	})

	client, _ := newTestClient(t, handler)

	pairs, err := client.Search(context.Background(), testAddress)
	require.NoError(t, err)
	assert.True(t, searchHit, "Expected fallback to the search endpoint")
	require.Len(t, pairs, 1)
	assert.Equal(t, "BBB", pairs[0].BaseToken.Symbol)
}

func TestSearchTextGoesStraightToSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/tokens/v1/") {
			t.Errorf("Text query hit the token endpoint: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []TokenPair{pairJSON("PEPE", "0.000001", 500)},
		})
	})

	client, _ := newTestClient(t, handler)

	pairs, err := client.Search(context.Background(), "pepe")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
}

func TestSearchEmptyQuery(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Empty query should not hit the network")
	}))

	pairs, err := client.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func TestRankPairsFilterAndOrder(t *testing.T) {
	lowVol := pairJSON("LOW", "1.0", 500)
	highVol := pairJSON("HIGH", "1.0", 1000)

	// Valid without a price because volume is reported
	noPrice := pairJSON("NOPRICE", "", 750)

	// Malformed entries get dropped
	noBase := pairJSON("X", "1.0", 2000)
	noBase.BaseToken.Address = ""
	badPrice := TokenPair{
		BaseToken: PairToken{Address: testAddress, Symbol: "BAD"},
		PriceUSD:  "not-a-number",
	}

	ranked := rankPairs([]TokenPair{lowVol, noBase, noPrice, badPrice, highVol})
	require.Len(t, ranked, 3)
	assert.Equal(t, "HIGH", ranked[0].BaseToken.Symbol)
	assert.Equal(t, "NOPRICE", ranked[1].BaseToken.Symbol)
	assert.Equal(t, "LOW", ranked[2].BaseToken.Symbol)
}

func TestRankPairsTieBreaksAndTruncates(t *testing.T) {
	vol := 100.0
	liquid := TokenPair{
		BaseToken: PairToken{Address: testAddress, Symbol: "LIQ"},
		PriceUSD:  "1.0",
		Volume:    PairVolume{H24: &vol},
		Liquidity: &Liquidity{USD: 9000},
	}
	thin := TokenPair{
		BaseToken: PairToken{Address: testAddress, Symbol: "THIN"},
		PriceUSD:  "1.0",
		Volume:    PairVolume{H24: &vol},
		Liquidity: &Liquidity{USD: 100},
		MarketCap: 1e9,
	}

	ranked := rankPairs([]TokenPair{thin, liquid})
	require.Len(t, ranked, 2)
	assert.Equal(t, "LIQ", ranked[0].BaseToken.Symbol, "Higher liquidity wins the volume tie")

	// 25 valid pairs truncate to 20
	var many []TokenPair
	for i := 0; i < 25; i++ {
		many = append(many, pairJSON(fmt.Sprintf("T%d", i), "1.0", float64(i)))
	}
	assert.Len(t, rankPairs(many), 20)
}

func TestBestPairPrefersTokenChain(t *testing.T) {
	var firstChain string
	var once sync.Once

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		once.Do(func() { firstChain = parts[3] })
		_ = json.NewEncoder(w).Encode([]TokenPair{pairJSON("AAA", "2.0", 100)})
	})

	client, _ := newTestClient(t, handler)

	pair, err := client.BestPair(context.Background(), "base", testAddress)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "base", firstChain)
}

func TestBestPairNoResults(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]TokenPair{})
	}))

	pair, err := client.BestPair(context.Background(), "", testAddress)
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestDoRequestRetriesOn500(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]TokenPair{pairJSON("AAA", "1.0", 100)})
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:   server.URL,
		RateLimit: 60000,
		Retries:   3,
	}, zap.NewNop())
	defer client.Close()

	pairs, err := client.TokenPairs(context.Background(), "ethereum", testAddress)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.Equal(t, 2, calls)
}

func TestDoRequestPermanentOn404(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.TokenPairs(context.Background(), "ethereum", testAddress)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")
}

func TestBaseTokenSnapshot(t *testing.T) {
	vol := 12345.0
	pair := TokenPair{
		ChainID:     "base",
		PairAddress: "0xpair",
		BaseToken:   PairToken{Address: testAddress, Symbol: "AAA", Name: "Token A"},
		PriceUSD:    "1.25",
		PriceChange: PairPriceChange{H24: -3.5},
		Volume:      PairVolume{H24: &vol},
		Liquidity:   &Liquidity{USD: 5000},
		MarketCap:   1000000,
		FDV:         2000000,
	}

	token := pair.BaseTokenSnapshot()
	assert.Equal(t, testAddress, token.Address)
	assert.Equal(t, "base", token.ChainID)
	assert.Equal(t, "1.25", token.PriceUSD)
	assert.Equal(t, -3.5, token.PriceChange24h)
	assert.Equal(t, "12345", token.Volume24h)
	assert.Equal(t, "1000000", token.MarketCap)
	assert.Equal(t, "5000", token.Liquidity)
	assert.Equal(t, "2000000", token.FDV)
}
