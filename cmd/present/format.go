// Package present renders comparison results for the terminal.
package present

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number formats v with thousands separators and two decimals
func Number(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return printer.Sprintf("%.2f", v)
}

// Delta formats v like Number with an explicit sign
func Delta(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	if v > 0 {
		return "+" + Number(v)
	}
	return Number(v)
}

// Count formats an integer with thousands separators
func Count(n int) string {
	return printer.Sprintf("%d", n)
}
