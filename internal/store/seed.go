package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"token-tracker/internal/domain"
)

// seedFile is the YAML shape of an optional watchlist seed.
type seedFile struct {
	Tokens []struct {
		Address  string `yaml:"address"`
		Name     string `yaml:"name"`
		Symbol   string `yaml:"symbol"`
		ChainID  string `yaml:"chain_id"`
		Decimals int    `yaml:"decimals"`
		Notes    string `yaml:"notes"`
	} `yaml:"tokens"`
}

// SeedToken pairs a token with its optional watchlist notes.
type SeedToken struct {
	Token domain.Token
	Notes string
}

// LoadSeed reads a watchlist seed file. Entries missing an address or
// symbol are skipped with a logged warning rather than failing the load;
// duplicate addresses are left to the watchlist store invariant.
func LoadSeed(path string, logger *zap.Logger) ([]SeedToken, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	seeds := make([]SeedToken, 0, len(file.Tokens))
	for _, t := range file.Tokens {
		if t.Address == "" || t.Symbol == "" {
			logger.Warn("Skipping seed entry with missing required fields",
				zap.String("address", t.Address),
				zap.String("symbol", t.Symbol))
			continue
		}
		seeds = append(seeds, SeedToken{
			Token: domain.Token{
				Address:  t.Address,
				Name:     t.Name,
				Symbol:   t.Symbol,
				ChainID:  t.ChainID,
				Decimals: t.Decimals,
			},
			Notes: t.Notes,
		})
	}

	logger.Info("Loaded watchlist seed", zap.Int("count", len(seeds)))
	return seeds, nil
}
