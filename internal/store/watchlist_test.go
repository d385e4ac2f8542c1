package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"token-tracker/internal/domain"
)

func testToken(address, symbol string) domain.Token {
	return domain.Token{
		Address: address,
		Symbol:  symbol,
		Name:    symbol + " Token",
		ChainID: "base",
	}
}

func TestWatchlistAddAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)

	item := s.Add(testToken("0xabc", "ABC"), "watching closely")
	require.NotNil(t, item)
	assert.Equal(t, "0xabc", item.Token.Address)
	assert.Equal(t, "watching closely", item.Notes)
	assert.NotEmpty(t, item.ID)

	// Same address again is a no-op
	dup := s.Add(testToken("0xabc", "ABC"), "")
	assert.Nil(t, dup)
	assert.Len(t, s.Items(), 1)

	// Invalid tokens are rejected
	assert.Nil(t, s.Add(domain.Token{Symbol: "X"}, ""))
	assert.Nil(t, s.Add(domain.Token{Address: "0xdef"}, ""))
	assert.Len(t, s.Items(), 1)
}

func TestWatchlistRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)

	s.Add(testToken("0xabc", "ABC"), "")
	s.Add(testToken("0xdef", "DEF"), "")

	s.Remove("0xabc")
	assert.False(t, s.Contains("0xabc"))
	assert.True(t, s.Contains("0xdef"))

	// Unknown address and empty input leave the list unchanged
	s.Remove("0xnothere")
	s.Remove("")
	assert.Len(t, s.Items(), 1)
}

func TestWatchlistUpdateAndRefresh(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)

	item := s.Add(testToken("0xabc", "ABC"), "old note")
	require.NotNil(t, item)

	notes := "new note"
	s.Update(item.ID, ItemPatch{Notes: &notes})
	got, ok := s.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, "new note", got.Notes)

	// Refresh swaps the token snapshot but keeps identity
	fresh := testToken("0xabc", "ABC")
	fresh.PriceUSD = "1.25"
	fresh.Volume24h = "50000"
	s.RefreshToken("0xabc", fresh)

	got, ok = s.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, "1.25", got.Token.PriceUSD)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "new note", got.Notes)

	// Mismatched address is ignored
	s.RefreshToken("0xabc", testToken("0xother", "OTH"))
	got, _ = s.Get("0xabc")
	assert.Equal(t, "0xabc", got.Token.Address)
}

func TestWatchlistPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)
	s.Add(testToken("0xabc", "ABC"), "note")

	reopened, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reopened.Items(), 1)
	assert.Equal(t, "ABC", reopened.Items()[0].Token.Symbol)
	assert.Equal(t, "note", reopened.Items()[0].Notes)
}

func TestWatchlistMigratesLegacyFile(t *testing.T) {
	dir := t.TempDir()

	// Version 1 file without a watchlist array
	legacy := []byte(`{"version":1}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watchlist.json"), legacy, 0644))

	s, err := OpenWatchlist(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, s.Items())

	// A write upgrades the stored version
	s.Add(testToken("0xabc", "ABC"), "")

	raw, err := os.ReadFile(filepath.Join(dir, "watchlist.json"))
	require.NoError(t, err)
	var state struct {
		Version int `json:"version"`
	}
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, 2, state.Version)
}

func TestWatchlistCorruptFileFailsOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watchlist.json"), []byte("{not json"), 0644))

	_, err := OpenWatchlist(dir, zap.NewNop())
	assert.Error(t, err)
}
