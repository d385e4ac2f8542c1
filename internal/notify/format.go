package notify

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"token-tracker/internal/bridge"
	"token-tracker/internal/domain"
)

// FormatAlert builds the notification payload for a fired alert at the
// price that triggered it.
func FormatAlert(alert domain.PriceAlert, currentPrice float64) bridge.Payload {
	price := FormatUSD(currentPrice)

	var title, body string
	switch alert.AlertType {
	case domain.AlertAbove:
		title = fmt.Sprintf("🚀 %s Price Alert", alert.TokenSymbol)
		body = fmt.Sprintf("%s has reached %s, above your target of %s",
			alert.TokenName, price, FormatUSD(deref(alert.TargetPrice)))
	case domain.AlertBelow:
		title = fmt.Sprintf("📉 %s Price Alert", alert.TokenSymbol)
		body = fmt.Sprintf("%s has dropped to %s, below your target of %s",
			alert.TokenName, price, FormatUSD(deref(alert.TargetPrice)))
	case domain.AlertChange:
		change := deref(alert.ChangePercentage)
		sign := ""
		if change >= 0 {
			sign = "+"
		}
		title = fmt.Sprintf("📊 %s Price Movement", alert.TokenSymbol)
		body = fmt.Sprintf("%s has moved %s%g%% to %s", alert.TokenName, sign, change, price)
	default:
		title = fmt.Sprintf("🔔 %s Alert", alert.TokenSymbol)
		body = fmt.Sprintf("Price alert triggered for %s at %s", alert.TokenName, price)
	}

	return bridge.Payload{
		Title:     title,
		Body:      body,
		TargetURL: "/token/" + alert.TokenAddress,
		ImageURL: fmt.Sprintf("/placeholder.svg?height=64&width=64&query=%s",
			url.QueryEscape(alert.TokenSymbol+" token logo")),
	}
}

// FormatUSD renders a dollar amount for display: grouped thousands with
// two decimals for normal prices, extra precision for sub-cent tokens.
func FormatUSD(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "N/A"
	case v == 0:
		return "$0.00"
	case math.Abs(v) < 0.0000001:
		return fmt.Sprintf("$%.2e", v)
	case math.Abs(v) < 0.01:
		return strings.TrimRight(fmt.Sprintf("$%.8f", v), "0")
	case math.Abs(v) < 1:
		return strings.TrimRight(fmt.Sprintf("$%.6f", v), "0")
	default:
		return "$" + groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
	}
}

// groupThousands inserts comma separators into the integer part of a
// fixed-point decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
