// Package fixtures provides seedable data and a scripted tax authority for tests.
package fixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrlokans/taxsync/internal/database"
	"github.com/mrlokans/taxsync/internal/entities"
)

// NewDatabase opens a migrated in-memory database closed at test cleanup.
func NewDatabase(t testing.TB) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Product returns a valid product numbered n.
func Product(n int) *entities.Product {
	return &entities.Product{
		Name:             fmt.Sprintf("Product %d", n),
		RegistrationCode: ProductCode(n),
		Category:         "goods",
		UnitPrice:        float64(n) + 0.5,
		TaxRate:          0.2,
	}
}

// ProductCode is the registration code of Product(n).
func ProductCode(n int) string {
	return fmt.Sprintf("PRD-%06d", n)
}

// Products returns n valid products numbered from 1.
func Products(n int) []*entities.Product {
	items := make([]*entities.Product, n)
	for i := range items {
		items[i] = Product(i + 1)
	}
	return items
}

// Invoice returns a valid invoice numbered n with two lines.
func Invoice(n int) *entities.Invoice {
	lines := []entities.InvoiceLine{
		{ProductCode: ProductCode(1), Description: "Widget", Quantity: 2, UnitPrice: 10},
		{ProductCode: ProductCode(2), Description: "Gadget", Quantity: 1, UnitPrice: 5.5},
	}
	return &entities.Invoice{
		Number:        InvoiceNumber(n),
		CustomerName:  "Acme Ltd",
		CustomerTaxID: "1234567890",
		Currency:      "EUR",
		IssuedAt:      time.Now().UTC().Add(-24 * time.Hour),
		Subtotal:      25.5,
		TaxTotal:      5.1,
		Total:         30.6,
		Lines:         lines,
	}
}

// InvoiceNumber is the number of Invoice(n).
func InvoiceNumber(n int) string {
	return fmt.Sprintf("INV-%05d", n)
}

// Invoices returns n valid invoices numbered from 1.
func Invoices(n int) []*entities.Invoice {
	items := make([]*entities.Invoice, n)
	for i := range items {
		items[i] = Invoice(i + 1)
	}
	return items
}
