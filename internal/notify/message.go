package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

// FormatEntryMessage creates the fill notification body.
func FormatEntryMessage(pos position.Position) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Strikes: %s\n", formatStrikes(pos.Strikes)))
	sb.WriteString(fmt.Sprintf("Credit: %.2f x%d\n", pos.EntryCredit, pos.Quantity))
	sb.WriteString(fmt.Sprintf("Target: %.2f  Stop: %.2f\n", pos.TargetPrice, pos.StopPrice))
	sb.WriteString(fmt.Sprintf("Confidence: %s\n", pos.Confidence))
	sb.WriteString(fmt.Sprintf("Distance from pin: %.1f", pos.EntryDistance))

	return sb.String()
}

// FormatExitMessage creates the closed-trade notification body.
func FormatExitMessage(rec tradelog.Record) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Strikes: %s\n", formatStrikes(rec.Strikes)))
	sb.WriteString(fmt.Sprintf("Credit: %.2f  Exit: %.2f\n", rec.EntryCredit, rec.ExitValue))
	sb.WriteString(fmt.Sprintf("P/L: %+.2f\n", rec.ProfitLoss))
	sb.WriteString(fmt.Sprintf("Held: %s", rec.ExitTime.Sub(rec.EntryTime).Round(time.Minute)))

	return sb.String()
}

func formatStrikes(strikes []float64) string {
	parts := make([]string, len(strikes))
	for i, s := range strikes {
		parts[i] = fmt.Sprintf("%g", s)
	}
	return strings.Join(parts, "/")
}
