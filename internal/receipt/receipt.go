package receipt

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
)

var (
	// ErrNotFound is returned for receipts that do not exist or belong to another user
	ErrNotFound = errors.New("receipt not found")

	// ErrInvalidCategory is returned when an edit names an unknown category
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidItem is returned when an edit would give a line a negative price or quantity
	ErrInvalidItem = errors.New("invalid item")

	// ErrItemIndex is returned when an edit addresses a line the receipt does not have
	ErrItemIndex = errors.New("item index out of range")
)

// Receipt represents an uploaded grocery receipt and its parsed lines
type Receipt struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Store       string               `json:"store"`
	Date        string               `json:"date"` // MM/DD/YYYY as read from the receipt
	Items       []ledger.GroceryItem `json:"items"`
	Total       decimal.Decimal      `json:"total"`
	Filename    string               `json:"filename"`
	ContentType string               `json:"content_type"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// recomputeTotal sums every line, categorized or not
func (r *Receipt) recomputeTotal() {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.TotalPrice)
	}
	r.Total = total.Round(2)
}

// ItemUpdate is an inline edit of one receipt line. Nil fields are left as they are.
type ItemUpdate struct {
	Category  *string          `json:"category,omitempty"`
	ItemPrice *decimal.Decimal `json:"item_price,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
}
