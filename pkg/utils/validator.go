package utils

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	folioRegex    = regexp.MustCompile(`^EM-\d{4}-\d{6}$`)
	controlRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrency validates an ISO 4217 alphabetic currency code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// ValidateAmount validates an insured amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %s", amount.String())
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("amount has more than two decimal places: %s", amount.String())
	}
	return nil
}

// ValidateFolio validates the EM-yyyy-nnnnnn case folio format
func ValidateFolio(folio string) error {
	if !folioRegex.MatchString(folio) {
		return fmt.Errorf("invalid folio format: %s", folio)
	}
	return nil
}

// SanitizeString removes control characters from free-text input
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
