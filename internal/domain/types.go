// Package domain holds the core entities shared across the tracker:
// tokens, watchlist items, price alerts and host users.
package domain

import "time"

// AlertType classifies how a price alert is evaluated.
type AlertType string

const (
	AlertAbove  AlertType = "above"
	AlertBelow  AlertType = "below"
	AlertChange AlertType = "change"
)

// Valid reports whether t is one of the known alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertAbove, AlertBelow, AlertChange:
		return true
	}
	return false
}

// Token identifies a tradeable asset on a specific chain. The identity
// fields are immutable once fetched; the market fields are cached values
// refreshed on every poll.
type Token struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
	ChainID  string `json:"chainId"`

	// Cached market data
	PriceUSD       string  `json:"priceUsd,omitempty"`
	PriceChange24h float64 `json:"priceChange24h,omitempty"`
	Volume24h      string  `json:"volume24h,omitempty"`
	MarketCap      string  `json:"marketCap,omitempty"`
	Liquidity      string  `json:"liquidity,omitempty"`
	FDV            string  `json:"fdv,omitempty"`
	PairAddress    string  `json:"pairAddress,omitempty"`
}

// WatchlistItem is a user-tracked token. Token is a value copy taken at
// add time, not a live binding to later price updates.
type WatchlistItem struct {
	ID      string    `json:"id"`
	Token   Token     `json:"token"`
	AddedAt time.Time `json:"addedAt"`
	Notes   string    `json:"notes,omitempty"`
}

// PriceAlert is a standing rule evaluated against live prices.
// TargetPrice is required for above/below alerts, ChangePercentage for
// change alerts. BasePrice is the reference for percentage calculation;
// when absent the evaluation falls back to TargetPrice, then to the
// observed price itself.
type PriceAlert struct {
	ID               string     `json:"id"`
	TokenAddress     string     `json:"tokenAddress"`
	TokenSymbol      string     `json:"tokenSymbol"`
	TokenName        string     `json:"tokenName"`
	AlertType        AlertType  `json:"alertType"`
	TargetPrice      *float64   `json:"targetPrice,omitempty"`
	ChangePercentage *float64   `json:"changePercentage,omitempty"`
	BasePrice        *float64   `json:"basePrice,omitempty"`
	IsActive         bool       `json:"isActive"`
	CreatedAt        time.Time  `json:"createdAt"`
	TriggeredAt      *time.Time `json:"triggeredAt,omitempty"`
}

// User is the profile exposed by the host runtime.
type User struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	PfpURL      string `json:"pfpUrl"`
}
