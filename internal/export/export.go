// Package export writes watchlist and alert snapshots to JSON or CSV
// files for archival and offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/domain"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior
type Options struct {
	Format        Format
	TokenFilter   string           // filter by token address
	TypeFilter    domain.AlertType // filter by alert type
	OnlyTriggered bool             // only export triggered alerts
	OutputDir     string
}

// Exporter handles watchlist and alert export
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
	}
}

// ExportAlerts writes alerts matching the options to a file and returns
// its path.
func (e *Exporter) ExportAlerts(alerts []domain.PriceAlert, options Options) (string, error) {
	filtered := e.filterAlerts(alerts, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no alerts match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	outputPath := filepath.Join(options.OutputDir, e.alertsFilename(options))
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.alertsToCSV(filtered, outputPath)
	case FormatJSON:
		err = e.alertsToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Alerts exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

// ExportWatchlist writes watchlist items to a file and returns its path.
func (e *Exporter) ExportWatchlist(items []domain.WatchlistItem, options Options) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("watchlist is empty")
	}

	sorted := make([]domain.WatchlistItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AddedAt.Before(sorted[j].AddedAt)
	})

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("watchlist_%s.%s", timestamp, options.Format)
	outputPath := filepath.Join(options.OutputDir, filename)
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.watchlistToCSV(sorted, outputPath)
	case FormatJSON:
		err = e.watchlistToJSON(sorted, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Watchlist exported",
		zap.String("file", outputPath),
		zap.Int("count", len(sorted)))

	return outputPath, nil
}

// filterAlerts applies filters to the alert list
func (e *Exporter) filterAlerts(alerts []domain.PriceAlert, options Options) []domain.PriceAlert {
	var filtered []domain.PriceAlert
	for _, a := range alerts {
		if options.TokenFilter != "" && a.TokenAddress != options.TokenFilter {
			continue
		}
		if options.TypeFilter != "" && a.AlertType != options.TypeFilter {
			continue
		}
		if options.OnlyTriggered && a.TriggeredAt == nil {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

// alertsFilename creates a filename based on export options
func (e *Exporter) alertsFilename(options Options) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "alerts_all"
	if options.TypeFilter != "" {
		prefix = fmt.Sprintf("alerts_%s", options.TypeFilter)
	}
	if options.OnlyTriggered {
		prefix += "_triggered"
	}
	if len(options.TokenFilter) >= 8 {
		prefix += "_" + options.TokenFilter[:8]
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (e *Exporter) alertsToCSV(alerts []domain.PriceAlert, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"id", "token_address", "token_symbol", "token_name", "type",
		"target_price", "change_percentage", "base_price",
		"is_active", "created_at", "triggered_at",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range alerts {
		triggered := ""
		if a.TriggeredAt != nil {
			triggered = a.TriggeredAt.Format(time.RFC3339)
		}
		record := []string{
			a.ID,
			a.TokenAddress,
			a.TokenSymbol,
			a.TokenName,
			string(a.AlertType),
			formatOptFloat(a.TargetPrice),
			formatOptFloat(a.ChangePercentage),
			formatOptFloat(a.BasePrice),
			strconv.FormatBool(a.IsActive),
			a.CreatedAt.Format(time.RFC3339),
			triggered,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write alert: %w", err)
		}
	}

	return nil
}

func (e *Exporter) alertsToJSON(alerts []domain.PriceAlert, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	exportData := struct {
		ExportTime time.Time           `json:"export_time"`
		AlertCount int                 `json:"alert_count"`
		Alerts     []domain.PriceAlert `json:"alerts"`
		Summary    Summary             `json:"summary"`
	}{
		ExportTime: time.Now(),
		AlertCount: len(alerts),
		Alerts:     alerts,
		Summary:    e.calculateSummary(alerts),
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func (e *Exporter) watchlistToCSV(items []domain.WatchlistItem, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"id", "address", "symbol", "name", "chain_id",
		"price_usd", "price_change_24h", "volume_24h", "market_cap",
		"added_at", "notes",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.ID,
			item.Token.Address,
			item.Token.Symbol,
			item.Token.Name,
			item.Token.ChainID,
			item.Token.PriceUSD,
			strconv.FormatFloat(item.Token.PriceChange24h, 'f', -1, 64),
			item.Token.Volume24h,
			item.Token.MarketCap,
			item.AddedAt.Format(time.RFC3339),
			item.Notes,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write item: %w", err)
		}
	}

	return nil
}

func (e *Exporter) watchlistToJSON(items []domain.WatchlistItem, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	exportData := struct {
		ExportTime time.Time              `json:"export_time"`
		ItemCount  int                    `json:"item_count"`
		Watchlist  []domain.WatchlistItem `json:"watchlist"`
	}{
		ExportTime: time.Now(),
		ItemCount:  len(items),
		Watchlist:  items,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// Summary contains aggregate statistics for exported alerts
type Summary struct {
	TotalAlerts    int       `json:"total_alerts"`
	ActiveAlerts   int       `json:"active_alerts"`
	TriggeredCount int       `json:"triggered_count"`
	AboveCount     int       `json:"above_count"`
	BelowCount     int       `json:"below_count"`
	ChangeCount    int       `json:"change_count"`
	UniqueTokens   int       `json:"unique_tokens"`
	FirstCreated   time.Time `json:"first_created"`
	LastCreated    time.Time `json:"last_created"`
}

// calculateSummary aggregates statistics over a sorted alert list
func (e *Exporter) calculateSummary(alerts []domain.PriceAlert) Summary {
	summary := Summary{TotalAlerts: len(alerts)}
	if len(alerts) == 0 {
		return summary
	}

	summary.FirstCreated = alerts[0].CreatedAt
	summary.LastCreated = alerts[len(alerts)-1].CreatedAt

	tokenSet := make(map[string]bool)
	for _, a := range alerts {
		tokenSet[a.TokenAddress] = true

		if a.IsActive {
			summary.ActiveAlerts++
		}
		if a.TriggeredAt != nil {
			summary.TriggeredCount++
		}

		switch a.AlertType {
		case domain.AlertAbove:
			summary.AboveCount++
		case domain.AlertBelow:
			summary.BelowCount++
		case domain.AlertChange:
			summary.ChangeCount++
		}
	}
	summary.UniqueTokens = len(tokenSet)

	return summary
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
