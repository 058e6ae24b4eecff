package ledger

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// amount is a signed cost and quantity change.
type amount struct {
	Cost     decimal.Decimal
	Quantity int
}

func (a amount) neg() amount {
	return amount{Cost: a.Cost.Neg(), Quantity: -a.Quantity}
}

// rollup holds one amount per tracked category, indexed by Category.index.
type rollup [categoryCount]amount

// sumItems totals the aggregatable items of a receipt per category.
// Items with an untracked category or a negative total are excluded.
func sumItems(items []GroceryItem) (r rollup, total amount, excluded int) {
	for _, item := range items {
		c, err := ParseCategory(item.Category)
		if err != nil || !c.Tracked() || item.TotalPrice.IsNegative() {
			excluded++
			continue
		}
		i := c.index()
		r[i].Cost = r[i].Cost.Add(item.TotalPrice)
		r[i].Quantity += item.Quantity
		total.Cost = total.Cost.Add(item.TotalPrice)
		total.Quantity += item.Quantity
	}
	return r, total, excluded
}

// floorCost adds delta to cur, rounded to cents. A result below zero leaves
// cur unchanged.
func floorCost(cur, delta decimal.Decimal) decimal.Decimal {
	next := cur.Add(delta).Round(2)
	if next.IsNegative() {
		return cur
	}
	return next
}

func floorQuantity(cur, delta int) int {
	if cur+delta < 0 {
		return cur
	}
	return cur + delta
}

// add applies a to the totals and counts receipts new receipts. The receipt
// count only grows.
func (t *Totals) add(a amount, receipts int) {
	t.TotalSpent = floorCost(t.TotalSpent, a.Cost)
	t.TotalQuantity = floorQuantity(t.TotalQuantity, a.Quantity)
	t.TotalReceipts += receipts
}

// applyCategory adds a to the category's total, creating it if absent.
func (m *MonthPeriod) applyCategory(c Category, a amount) {
	ct := m.categoryTotal(c)
	ct.TotalCost = floorCost(ct.TotalCost, a.Cost)
	ct.Quantity = floorQuantity(ct.Quantity, a.Quantity)
}

// applyRollup adds every tracked category's amount, including zero ones, so
// all five categories are present afterwards.
func (m *MonthPeriod) applyRollup(r rollup) {
	for _, c := range Categories {
		m.applyCategory(c, r[c.index()])
	}
}

// recomputePercentages sets each category's share of the month total.
func (m *MonthPeriod) recomputePercentages() {
	for i := range m.Categories {
		ct := &m.Categories[i]
		if !m.TotalSpent.IsPositive() {
			ct.PricePercentage = decimal.Zero
			continue
		}
		ct.PricePercentage = ct.TotalCost.Div(m.TotalSpent).Mul(hundred).Round(2)
	}
}
