package ledger

import (
	"github.com/shopspring/decimal"
)

// Ledger is a user's spending history, keyed by year.
type Ledger struct {
	ID      string                 `json:"id"`
	UserID  string                 `json:"user_id"`
	Version int                    `json:"version"`
	Periods map[string]*YearPeriod `json:"periods"`
}

// Totals are the running figures kept for both years and months.
type Totals struct {
	TotalReceipts int             `json:"total_receipts"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	TotalQuantity int             `json:"total_quantity"`
}

// YearPeriod holds a year's totals and its months keyed by month name.
type YearPeriod struct {
	Totals
	Months map[string]*MonthPeriod `json:"months"`
}

// MonthPeriod holds a month's totals and its category breakdown.
type MonthPeriod struct {
	Totals
	Categories []CategoryTotal `json:"categories"`
}

// CategoryTotal is one category's share of a month.
type CategoryTotal struct {
	Category        Category        `json:"category"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Quantity        int             `json:"quantity"`
	PricePercentage decimal.Decimal `json:"price_percentage"`
}

// GroceryItem is a parsed receipt line.
type GroceryItem struct {
	ItemName   string          `json:"item_name"`
	ItemPrice  decimal.Decimal `json:"item_price"`
	Quantity   int             `json:"quantity"`
	Category   string          `json:"category"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func newMonthPeriod() *MonthPeriod {
	m := &MonthPeriod{Categories: make([]CategoryTotal, 0, categoryCount)}
	for _, c := range Categories {
		m.Categories = append(m.Categories, CategoryTotal{Category: c})
	}
	return m
}

// Year returns the year's period if it has been recorded.
func (l *Ledger) Year(year string) (*YearPeriod, bool) {
	y, ok := l.Periods[year]
	return y, ok
}

// Month returns the month's period if it has been recorded.
func (l *Ledger) Month(p Period) (*MonthPeriod, bool) {
	y, ok := l.Periods[p.YearKey()]
	if !ok {
		return nil, false
	}
	m, ok := y.Months[p.MonthKey()]
	return m, ok
}

// period returns the year and month for p, creating zeroed ones as needed.
func (l *Ledger) period(p Period) (*YearPeriod, *MonthPeriod) {
	if l.Periods == nil {
		l.Periods = make(map[string]*YearPeriod)
	}
	y, ok := l.Periods[p.YearKey()]
	if !ok {
		y = &YearPeriod{}
		l.Periods[p.YearKey()] = y
	}
	if y.Months == nil {
		y.Months = make(map[string]*MonthPeriod)
	}
	m, ok := y.Months[p.MonthKey()]
	if !ok {
		m = newMonthPeriod()
		y.Months[p.MonthKey()] = m
	}
	return y, m
}

// Category returns the month's total for c, or nil if c is not present.
func (m *MonthPeriod) Category(c Category) *CategoryTotal {
	for i := range m.Categories {
		if m.Categories[i].Category == c {
			return &m.Categories[i]
		}
	}
	return nil
}

// categoryTotal returns the month's total for c, appending it when absent.
func (m *MonthPeriod) categoryTotal(c Category) *CategoryTotal {
	if ct := m.Category(c); ct != nil {
		return ct
	}
	m.Categories = append(m.Categories, CategoryTotal{Category: c})
	return &m.Categories[len(m.Categories)-1]
}
