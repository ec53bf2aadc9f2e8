// Package core provides the cost summary pipeline and its value types.
//
// This file contains currency formatting for summary tables and chart
// annotations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyFormat renders whole-unit amounts with a symbol prefix and the
// grouping separator of Locale.
type CurrencyFormat struct {
	Symbol string
	Locale language.Tag

	printer *message.Printer
}

// Rupiah renders "Rp 1.234.568".
var Rupiah = NewCurrencyFormat("Rp", language.Indonesian)

// NewCurrencyFormat builds a format for the given symbol and locale.
func NewCurrencyFormat(symbol string, locale language.Tag) CurrencyFormat {
	return CurrencyFormat{
		Symbol:  symbol,
		Locale:  locale,
		printer: message.NewPrinter(locale),
	}
}

// Format rounds half-to-even to whole units and groups digits by locale.
// Negative amounts carry the sign before the symbol: "-Rp 1.234".
//
// Examples:
//
//	Rupiah.Format(decimal.NewFromFloat(1234567.8)) -> "Rp 1.234.568"
//	Rupiah.Format(decimal.Zero)                    -> "Rp 0"
//	Rupiah.Format(decimal.NewFromInt(-1500))       -> "-Rp 1.500"
func (f CurrencyFormat) Format(amount decimal.Decimal) string {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(f.Locale)
	}
	rounded := amount.RoundBank(0)
	magnitude := rounded.Abs().BigInt()
	var s string
	if magnitude.IsInt64() {
		s = p.Sprintf("%d", magnitude.Int64())
	} else {
		s = groupDigits(magnitude.String(), groupSeparator(p))
	}
	if f.Symbol != "" {
		s = f.Symbol + " " + s
	}
	if rounded.IsNegative() {
		return "-" + s
	}
	return s
}

// groupSeparator reads the locale's thousands separator off a formatted 1000.
func groupSeparator(p *message.Printer) string {
	return strings.TrimSuffix(strings.TrimPrefix(p.Sprintf("%d", 1000), "1"), "000")
}

// groupDigits inserts sep between groups of three digits from the right.
func groupDigits(digits, sep string) string {
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteString(sep)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatCurrency formats amount as rupiah.
func FormatCurrency(amount decimal.Decimal) string {
	return Rupiah.Format(amount)
}
