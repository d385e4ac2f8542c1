package market

import (
	"strconv"

	"token-tracker/internal/domain"
)

// PairToken is the token half of a market pair as the provider reports it.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// TxnCounts holds buy/sell counts for one time window.
type TxnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// PairTxns holds transaction counts keyed by time window.
type PairTxns struct {
	M5  TxnCounts `json:"m5"`
	H1  TxnCounts `json:"h1"`
	H6  TxnCounts `json:"h6"`
	H24 TxnCounts `json:"h24"`
}

// PairVolume holds traded volume per time window. Pointers distinguish
// a reported zero from an absent field.
type PairVolume struct {
	M5  *float64 `json:"m5"`
	H1  *float64 `json:"h1"`
	H6  *float64 `json:"h6"`
	H24 *float64 `json:"h24"`
}

// PairPriceChange holds percentage price change per time window.
type PairPriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// Liquidity is the pool liquidity breakdown for a pair.
type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// TokenPair is one market venue for a token. Pairs are transient: fetched
// fresh on each request and never persisted.
type TokenPair struct {
	ChainID       string          `json:"chainId"`
	DexID         string          `json:"dexId"`
	URL           string          `json:"url"`
	PairAddress   string          `json:"pairAddress"`
	BaseToken     PairToken       `json:"baseToken"`
	QuoteToken    PairToken       `json:"quoteToken"`
	PriceNative   string          `json:"priceNative"`
	PriceUSD      string          `json:"priceUsd"`
	Txns          PairTxns        `json:"txns"`
	Volume        PairVolume      `json:"volume"`
	PriceChange   PairPriceChange `json:"priceChange"`
	Liquidity     *Liquidity      `json:"liquidity"`
	FDV           float64         `json:"fdv"`
	MarketCap     float64         `json:"marketCap"`
	PairCreatedAt int64           `json:"pairCreatedAt"`
}

// PriceUSDFloat parses the pair's USD price. ok is false when the field
// is absent or malformed.
func (p *TokenPair) PriceUSDFloat() (float64, bool) {
	if p.PriceUSD == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(p.PriceUSD, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// VolumeH24 returns the 24h volume, zero when absent.
func (p *TokenPair) VolumeH24() float64 {
	if p.Volume.H24 == nil {
		return 0
	}
	return *p.Volume.H24
}

// LiquidityUSD returns USD liquidity, zero when absent.
func (p *TokenPair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// BaseTokenSnapshot converts the pair's base token plus its current market
// metrics into a domain token value copy.
func (p *TokenPair) BaseTokenSnapshot() domain.Token {
	t := domain.Token{
		Address:        p.BaseToken.Address,
		Name:           p.BaseToken.Name,
		Symbol:         p.BaseToken.Symbol,
		ChainID:        p.ChainID,
		PriceUSD:       p.PriceUSD,
		PriceChange24h: p.PriceChange.H24,
		PairAddress:    p.PairAddress,
	}
	if p.Volume.H24 != nil {
		t.Volume24h = formatFloat(*p.Volume.H24)
	}
	if p.MarketCap > 0 {
		t.MarketCap = formatFloat(p.MarketCap)
	}
	if p.Liquidity != nil && p.Liquidity.USD > 0 {
		t.Liquidity = formatFloat(p.Liquidity.USD)
	}
	if p.FDV > 0 {
		t.FDV = formatFloat(p.FDV)
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
