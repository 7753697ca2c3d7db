// Package money finds euro amounts in free text and multiplies out their
// magnitude words.
package money

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

const (
	// MaxAmounts caps the amounts kept per document.
	MaxAmounts = 5
	// Currency is the only currency the domain reports.
	Currency = "EUR"
	// Label tags every extracted amount.
	Label = "stated_value"
)

var amountPattern = regexp.MustCompile(`(?i)(€|\bEUR\b)\s*(\d[\d.,]*(?:\s\d{3}\b[\d.,]*)*)(?:\s*(billion|bn|million|mn|m)\b)?`)

// Extract returns up to MaxAmounts amounts in text order. Tokens that do not
// parse as a number are skipped.
func Extract(text string) []document.MonetaryAmount {
	out := []document.MonetaryAmount{}
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		value, ok := ParseNumber(m[2])
		if !ok {
			continue
		}
		out = append(out, document.MonetaryAmount{
			Amount:   value * multiplier(m[3]),
			Currency: Currency,
			Label:    Label,
		})
		if len(out) == MaxAmounts {
			break
		}
	}
	return out
}

func multiplier(unit string) float64 {
	switch strings.ToLower(unit) {
	case "billion", "bn":
		return 1e9
	case "million", "mn", "m":
		return 1e6
	default:
		return 1
	}
}

// ParseNumber reads a numeric token written with European or English
// separators. When both '.' and ',' occur the later one is the decimal mark.
// A lone separator followed by exactly three digits groups thousands.
// Repeated separators always group thousands, in groups of three.
func ParseNumber(token string) (float64, bool) {
	s := strings.Join(strings.Fields(token), "")
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return 0, false
	}

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	var intPart, fracPart string
	switch {
	case dots > 0 && commas > 0:
		dec := "."
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			dec = ","
		}
		if strings.Count(s, dec) != 1 {
			return 0, false
		}
		i := strings.LastIndex(s, dec)
		intPart, fracPart = s[:i], s[i+1:]
		thousands := ","
		if dec == "," {
			thousands = "."
		}
		var ok bool
		if intPart, ok = ungroup(intPart, thousands); !ok {
			return 0, false
		}
	case dots+commas == 1:
		sep := "."
		if commas == 1 {
			sep = ","
		}
		i := strings.Index(s, sep)
		if len(s)-i-1 == 3 {
			intPart = s[:i] + s[i+1:]
		} else {
			intPart, fracPart = s[:i], s[i+1:]
		}
	case dots+commas > 1:
		sep := "."
		if commas > 0 {
			sep = ","
		}
		var ok bool
		if intPart, ok = ungroup(s, sep); !ok {
			return 0, false
		}
	default:
		intPart = s
	}

	if !digitsOnly(intPart) || intPart == "" || (fracPart != "" && !digitsOnly(fracPart)) {
		return 0, false
	}
	num := intPart
	if fracPart != "" {
		num += "." + fracPart
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ungroup removes thousands separators, requiring a 1-3 digit leading group
// and 3 digit groups after it.
func ungroup(s, sep string) (string, bool) {
	groups := strings.Split(s, sep)
	if len(groups) == 1 {
		return s, true
	}
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
