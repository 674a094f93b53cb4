package cart

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount in the smallest currency unit with digit
// grouping, e.g. FormatAmount("₹", 1234) == "₹1,234".
func FormatAmount(symbol string, amount int64) string {
	if amount < 0 {
		return "-" + symbol + amountPrinter.Sprintf("%d", -amount)
	}
	return symbol + amountPrinter.Sprintf("%d", amount)
}
