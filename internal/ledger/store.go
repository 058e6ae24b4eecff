package ledger

import (
	"context"
	"fmt"
)

// Store persists ledgers as documents whose subtrees can be replaced by
// dotted path, e.g. "periods.2024.months.January".
type Store interface {
	// FetchLedgerByUser returns the user's ledger or ErrLedgerNotFound.
	FetchLedgerByUser(ctx context.Context, userID string) (*Ledger, error)

	// CreateLedger creates an empty ledger for the user. If one already
	// exists it is returned unchanged.
	CreateLedger(ctx context.Context, userID string) (*Ledger, error)

	// UpdateLedgerFields replaces the node at each dotted path with its value.
	// It fails with ErrVersionConflict unless the stored ledger is still at
	// version, and bumps the version on success.
	UpdateLedgerFields(ctx context.Context, ledgerID string, version int, fields map[string]any) error
}

func yearPath(p Period, field string) string {
	return fmt.Sprintf("periods.%s.%s", p.YearKey(), field)
}

// MonthPath is the dotted path of a month subtree.
func MonthPath(p Period) string {
	return fmt.Sprintf("periods.%s.months.%s", p.YearKey(), p.MonthKey())
}

// periodFields is the partial update touching only p's year totals and month.
func periodFields(p Period, y *YearPeriod, m *MonthPeriod) map[string]any {
	return map[string]any{
		yearPath(p, "total_receipts"): y.TotalReceipts,
		yearPath(p, "total_spent"):    y.TotalSpent,
		yearPath(p, "total_quantity"): y.TotalQuantity,
		MonthPath(p):                  m,
	}
}
