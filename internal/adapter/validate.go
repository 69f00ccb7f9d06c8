package adapter

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/mrlokans/taxsync/internal/entities"
)

const amountTolerance = 0.01

var (
	registrationCodePattern = regexp.MustCompile(`^[A-Z]{3}-[0-9]{6}$`)
	taxIDPattern            = regexp.MustCompile(`^[0-9]{9,13}$`)
	currencyPattern         = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateProduct checks a product before registration.
func ValidateProduct(p *entities.Product) ValidationResult {
	var v ValidationResult
	if strings.TrimSpace(p.Name) == "" {
		v.add("name is required")
	}
	switch {
	case p.RegistrationCode == "":
		v.add("registration code is required")
	case !registrationCodePattern.MatchString(p.RegistrationCode):
		v.add("registration code " + quote(p.RegistrationCode) + " must look like ABC-123456")
	}
	if p.UnitPrice < 0 || math.IsNaN(p.UnitPrice) {
		v.add("unit price must not be negative")
	}
	if p.TaxRate < 0 || p.TaxRate > 1 || math.IsNaN(p.TaxRate) {
		v.add("tax rate must be between 0 and 1")
	}
	return v
}

// ValidateInvoice checks an invoice before submission. now bounds the issue date.
func ValidateInvoice(inv *entities.Invoice, now time.Time) ValidationResult {
	var v ValidationResult
	if strings.TrimSpace(inv.Number) == "" {
		v.add("invoice number is required")
	}
	if !taxIDPattern.MatchString(inv.CustomerTaxID) {
		v.add("customer tax id must be 9 to 13 digits")
	}
	if !currencyPattern.MatchString(inv.Currency) {
		v.add("currency " + quote(inv.Currency) + " is not an ISO 4217 code")
	}
	switch {
	case inv.IssuedAt.IsZero():
		v.add("issue date is required")
	case inv.IssuedAt.After(now):
		v.add("issue date is in the future")
	}

	if len(inv.Lines) == 0 {
		v.add("invoice has no lines")
		return v
	}

	var sum float64
	for _, line := range inv.Lines {
		if line.Quantity <= 0 {
			v.add("line " + quote(line.Description) + " has a non-positive quantity")
		}
		sum += line.Amount()
	}
	if math.Abs(sum-inv.Subtotal) > amountTolerance {
		v.add("lines do not add up to the subtotal")
	}
	if math.Abs(inv.Subtotal+inv.TaxTotal-inv.Total) > amountTolerance {
		v.add("subtotal plus tax does not equal the total")
	}
	return v
}

func quote(s string) string {
	return `"` + s + `"`
}
