package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for pasting into a journal.
// Structured facts live in a PROPERTIES drawer for easy search.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("*** Trade: %s %s %s (%s)", t.Contract, t.Direction, t.Offset, shortID(t.TradeID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":CONTRACT: %s\n", t.Contract))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":DIRECTION: %s\n", t.Direction))
	b.WriteString(fmt.Sprintf(":OFFSET: %s\n", t.Offset))
	b.WriteString(fmt.Sprintf(":VOLUME: %d\n", t.Volume))
	b.WriteString(fmt.Sprintf(":PRICE: %g\n", t.Price))
	b.WriteString(fmt.Sprintf(":MULTIPLIER: %g\n", t.Multiplier))
	b.WriteString(fmt.Sprintf(":COMMISSION: %.2f\n", t.Commission))
	b.WriteString(fmt.Sprintf(":REALIZED_PNL: %.2f\n", t.RealizedPnL))
	b.WriteString(":END:\n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
