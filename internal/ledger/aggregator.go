package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

const defaultMaxAttempts = 3

// Aggregator keeps each user's ledger in step with their receipts and edits.
// It is the only writer of ledger documents.
type Aggregator struct {
	store       Store
	logger      *slog.Logger
	maxAttempts int
}

// NewAggregator creates an Aggregator logging to the default logger.
func NewAggregator(store Store) *Aggregator {
	return NewAggregatorWithDeps(store, slog.Default(), defaultMaxAttempts)
}

// NewAggregatorWithDeps creates an Aggregator with a custom logger and
// number of attempts made when the ledger changes underneath an update.
func NewAggregatorWithDeps(store Store, logger *slog.Logger, maxAttempts int) *Aggregator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Aggregator{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// RecordReceipt adds a receipt's line items to the month of receiptDate.
// Items with an untracked category or a negative total are ignored; if
// nothing is left to record the result is OutcomeNoOp.
func (a *Aggregator) RecordReceipt(ctx context.Context, userID string, items []GroceryItem, receiptDate string) (Outcome, error) {
	logger := a.opLogger("record_receipt", userID, receiptDate)
	period, err := a.resolve(logger, userID, receiptDate)
	if err != nil {
		return OutcomeFailed, err
	}

	sums, total, excluded := sumItems(items)
	if !total.Cost.IsPositive() {
		logger.Info("not updated since total spent <= 0",
			"items", len(items),
			"excluded", excluded,
			"total_spent", total.Cost.String(),
		)
		return OutcomeNoOp, nil
	}
	if excluded > 0 {
		logger.Debug("excluded receipt items", "excluded", excluded)
	}

	return a.apply(ctx, logger, userID, period, func(y *YearPeriod, m *MonthPeriod) {
		y.add(total, 1)
		m.add(total, 1)
		m.applyRollup(sums)
	})
}

// ReassignCategory moves a line item between categories. Moving from
// Uncategorized adds the line to the month; moving to Uncategorized removes
// it, which is how item deletion is recorded. A negative line amount or
// quantity is never part of the ledger, so it is skipped.
func (a *Aggregator) ReassignCategory(ctx context.Context, userID, receiptDate string, oldCategory, newCategory Category, lineAmount decimal.Decimal, quantity int) (Outcome, error) {
	logger := a.opLogger("reassign_category", userID, receiptDate).With(
		"old_category", oldCategory.String(),
		"new_category", newCategory.String(),
	)
	period, err := a.resolve(logger, userID, receiptDate)
	if err != nil {
		return OutcomeFailed, err
	}

	for _, c := range []Category{oldCategory, newCategory} {
		if c != Uncategorized && !c.Tracked() {
			logger.Warn("skipping update for unrecognized category", "category", c.String())
			return OutcomeSkipped, nil
		}
	}
	if lineAmount.IsNegative() || quantity < 0 {
		logger.Warn("skipping update for negative line item",
			"line_amount", lineAmount.String(),
			"quantity", quantity,
		)
		return OutcomeSkipped, nil
	}
	if oldCategory == newCategory {
		logger.Info("not updated since category is unchanged")
		return OutcomeNoOp, nil
	}

	line := amount{Cost: lineAmount, Quantity: quantity}
	return a.apply(ctx, logger, userID, period, func(y *YearPeriod, m *MonthPeriod) {
		switch {
		case oldCategory == Uncategorized:
			y.add(line, 0)
			m.add(line, 0)
			m.applyCategory(newCategory, line)
		case newCategory == Uncategorized:
			y.add(line.neg(), 0)
			m.add(line.neg(), 0)
			m.applyCategory(oldCategory, line.neg())
		default:
			m.applyCategory(oldCategory, line.neg())
			m.applyCategory(newCategory, line)
		}
	})
}

// ReassignPrice records a change of a line item's unit price.
func (a *Aggregator) ReassignPrice(ctx context.Context, userID, receiptDate string, category Category, newPrice, oldPrice decimal.Decimal, quantity int) (Outcome, error) {
	logger := a.opLogger("reassign_price", userID, receiptDate).With("category", category.String())
	delta := amount{Cost: newPrice.Sub(oldPrice).Mul(decimal.NewFromInt(int64(quantity)))}
	negative := newPrice.IsNegative() || oldPrice.IsNegative() || quantity < 0
	return a.reassignAmount(ctx, logger, userID, receiptDate, category, delta, negative)
}

// ReassignQuantity records a change of a line item's quantity.
func (a *Aggregator) ReassignQuantity(ctx context.Context, userID, receiptDate string, category Category, itemPrice decimal.Decimal, newQuantity, oldQuantity int) (Outcome, error) {
	logger := a.opLogger("reassign_quantity", userID, receiptDate).With("category", category.String())
	diff := newQuantity - oldQuantity
	delta := amount{
		Cost:     itemPrice.Mul(decimal.NewFromInt(int64(diff))),
		Quantity: diff,
	}
	negative := itemPrice.IsNegative() || newQuantity < 0 || oldQuantity < 0
	return a.reassignAmount(ctx, logger, userID, receiptDate, category, delta, negative)
}

func (a *Aggregator) reassignAmount(ctx context.Context, logger *slog.Logger, userID, receiptDate string, category Category, delta amount, negative bool) (Outcome, error) {
	period, err := a.resolve(logger, userID, receiptDate)
	if err != nil {
		return OutcomeFailed, err
	}
	if !category.Tracked() {
		logger.Warn("skipping update for unrecognized category")
		return OutcomeSkipped, nil
	}
	if negative {
		logger.Warn("skipping update for negative line item")
		return OutcomeSkipped, nil
	}
	if delta.Cost.IsZero() && delta.Quantity == 0 {
		logger.Info("not updated since amount is unchanged")
		return OutcomeNoOp, nil
	}

	return a.apply(ctx, logger, userID, period, func(y *YearPeriod, m *MonthPeriod) {
		y.add(delta, 0)
		m.add(delta, 0)
		m.applyCategory(category, delta)
	})
}

// Ledger returns the user's ledger, or an empty one if nothing was recorded yet.
func (a *Aggregator) Ledger(ctx context.Context, userID string) (*Ledger, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	l, err := a.store.FetchLedgerByUser(ctx, userID)
	if errors.Is(err, ErrLedgerNotFound) {
		return &Ledger{UserID: userID, Periods: make(map[string]*YearPeriod)}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "fetching ledger", Err: err}
	}
	return l, nil
}

func (a *Aggregator) opLogger(op, userID, receiptDate string) *slog.Logger {
	return a.logger.With("operation", op, "user_id", userID, "receipt_date", receiptDate)
}

// resolve checks the caller and date before anything is read or written.
func (a *Aggregator) resolve(logger *slog.Logger, userID, receiptDate string) (Period, error) {
	if userID == "" {
		logger.Error("could not find an overview, year, or month", "error", ErrNoUser)
		return Period{}, ErrNoUser
	}
	period, err := ParseReceiptDate(receiptDate)
	if err != nil {
		logger.Error("could not find an overview, year, or month", "error", err)
		return Period{}, err
	}
	return period, nil
}

// apply runs mutate on a freshly read copy of the period and writes the year
// totals and month back. A concurrent change to the ledger causes a re-read
// and another attempt.
func (a *Aggregator) apply(ctx context.Context, logger *slog.Logger, userID string, period Period, mutate func(*YearPeriod, *MonthPeriod)) (Outcome, error) {
	logger = logger.With("year", period.YearKey(), "month", period.MonthKey())

	for attempt := 1; ; attempt++ {
		l, err := a.ledgerFor(ctx, userID)
		if err != nil {
			logger.Error("could not find an overview, year, or month", "error", err)
			return OutcomeFailed, &PersistenceError{Op: "loading ledger", Err: err}
		}

		y, m := l.period(period)
		mutate(y, m)
		m.recomputePercentages()

		err = a.store.UpdateLedgerFields(ctx, l.ID, l.Version, periodFields(period, y, m))
		if errors.Is(err, ErrVersionConflict) && attempt < a.maxAttempts {
			logger.Warn("ledger changed during update, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			logger.Warn("ledger update was not persisted", "attempt", attempt, "error", err)
			return OutcomeFailed, &PersistenceError{Op: "updating ledger", Err: err}
		}

		logger.Info("ledger updated",
			"total_spent", m.TotalSpent.String(),
			"total_quantity", m.TotalQuantity,
			"total_receipts", m.TotalReceipts,
		)
		return OutcomeApplied, nil
	}
}

// ledgerFor fetches the user's ledger, creating it on first use.
func (a *Aggregator) ledgerFor(ctx context.Context, userID string) (*Ledger, error) {
	l, err := a.store.FetchLedgerByUser(ctx, userID)
	if errors.Is(err, ErrLedgerNotFound) {
		l, err = a.store.CreateLedger(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}
