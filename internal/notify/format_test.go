package notify

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"token-tracker/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestFormatAlertTemplates(t *testing.T) {
	base := domain.PriceAlert{
		TokenAddress: "0xabc",
		TokenSymbol:  "PEPE",
		TokenName:    "Pepe Coin",
	}

	above := base
	above.AlertType = domain.AlertAbove
	above.TargetPrice = fptr(2.0)
	p := FormatAlert(above, 2.5)
	assert.Equal(t, "🚀 PEPE Price Alert", p.Title)
	assert.Contains(t, p.Body, "Pepe Coin has reached $2.50")
	assert.Contains(t, p.Body, "above your target of $2.00")

	below := base
	below.AlertType = domain.AlertBelow
	below.TargetPrice = fptr(1.0)
	p = FormatAlert(below, 0.25)
	assert.Equal(t, "📉 PEPE Price Alert", p.Title)
	assert.Contains(t, p.Body, "dropped to $0.25")

	change := base
	change.AlertType = domain.AlertChange
	change.ChangePercentage = fptr(10.0)
	p = FormatAlert(change, 110)
	assert.Equal(t, "📊 PEPE Price Movement", p.Title)
	assert.Contains(t, p.Body, "+10%")

	unknown := base
	unknown.AlertType = "mystery"
	p = FormatAlert(unknown, 1)
	assert.Equal(t, "🔔 PEPE Alert", p.Title)
}

func TestFormatAlertLinks(t *testing.T) {
	alert := domain.PriceAlert{
		TokenAddress: "0xabc",
		TokenSymbol:  "PEPE",
		AlertType:    domain.AlertAbove,
		TargetPrice:  fptr(1.0),
	}

	p := FormatAlert(alert, 2)
	assert.Equal(t, "/token/0xabc", p.TargetURL)
	assert.True(t, strings.HasPrefix(p.ImageURL, "/placeholder.svg?"))
	assert.Contains(t, p.ImageURL, "PEPE+token+logo")
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1234567.891, "$1,234,567.89"},
		{1000, "$1,000.00"},
		{2.5, "$2.50"},
		{0.5, "$0.5"},
		{0.004, "$0.004"},
		{0.00000005, "$5.00e-08"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(tt.in), "value %v", tt.in)
	}
}

func TestFormatUSDNonFinite(t *testing.T) {
	assert.Equal(t, "N/A", FormatUSD(math.NaN()))
	assert.Equal(t, "N/A", FormatUSD(math.Inf(1)))
}
