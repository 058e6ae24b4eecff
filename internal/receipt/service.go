package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
	"github.com/budgetbyte/budgetbyte/internal/scanning"
)

// Aggregator keeps the spending ledger in step with receipts and their edits
type Aggregator interface {
	RecordReceipt(ctx context.Context, userID string, items []ledger.GroceryItem, receiptDate string) (ledger.Outcome, error)
	ReassignCategory(ctx context.Context, userID, receiptDate string, oldCategory, newCategory ledger.Category, lineAmount decimal.Decimal, quantity int) (ledger.Outcome, error)
	ReassignPrice(ctx context.Context, userID, receiptDate string, category ledger.Category, newPrice, oldPrice decimal.Decimal, quantity int) (ledger.Outcome, error)
	ReassignQuantity(ctx context.Context, userID, receiptDate string, category ledger.Category, itemPrice decimal.Decimal, newQuantity, oldQuantity int) (ledger.Outcome, error)
	Ledger(ctx context.Context, userID string) (*ledger.Ledger, error)
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	aggregator  Aggregator
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, aggregator Aggregator) *Service {
	return NewServiceWithDeps(db, scanner, storage, aggregator, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, aggregator Aggregator, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		aggregator:  aggregator,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// toGroceryItems converts scanned dollar amounts to cents-exact decimals
func toGroceryItems(items []scanning.Item) []ledger.GroceryItem {
	out := make([]ledger.GroceryItem, 0, len(items))
	for _, item := range items {
		out = append(out, ledger.GroceryItem{
			ItemName:   item.Name,
			ItemPrice:  decimal.NewFromFloat(item.Price).Round(2),
			Quantity:   item.Quantity,
			Category:   item.Category,
			TotalPrice: decimal.NewFromFloat(item.TotalPrice).Round(2),
		})
	}
	return out
}

// itemCategory reads a stored line's category; unknown names count as Uncategorized
func itemCategory(item ledger.GroceryItem) ledger.Category {
	c, err := ledger.ParseCategory(item.Category)
	if err != nil {
		return ledger.Uncategorized
	}
	return c
}

// logAggregation reports an aggregation that did not apply. The receipt itself
// is already saved, so these never fail the request.
func logAggregation(op string, r *Receipt, outcome ledger.Outcome, err error) {
	if err == nil {
		slog.Debug("Ledger aggregation", "operation", op, "receipt_id", r.ID, "outcome", outcome.String())
		return
	}
	var dateErr *ledger.DateFormatError
	if errors.As(err, &dateErr) {
		slog.Warn("Receipt date not usable for ledger", "operation", op, "receipt_id", r.ID, "date", r.Date)
		return
	}
	slog.Warn("Ledger aggregation failed", "operation", op, "receipt_id", r.ID, "error", err)
}

// ProcessReceipt uploads a receipt, scans it, saves it and records it in the ledger
func (s *Service) ProcessReceipt(ctx context.Context, userID, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scanned, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	receipt := &Receipt{
		ID:          id,
		UserID:      userID,
		Store:       scanned.Store,
		Date:        scanned.Date,
		Items:       toGroceryItems(scanned.Items),
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	receipt.recomputeTotal()

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	outcome, err := s.aggregator.RecordReceipt(ctx, userID, receipt.Items, receipt.Date)
	logAggregation("record_receipt", receipt, outcome, err)

	return receipt, nil
}

// GetReceipt retrieves one of the user's receipts
func (s *Service) GetReceipt(userID, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.UserID != userID {
		return nil, fmt.Errorf("getting receipt: %w: %s", ErrNotFound, id)
	}
	return receipt, nil
}

// ListReceipts returns the user's receipts
func (s *Service) ListReceipts(userID string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetReceiptFile retrieves the image of one of the user's receipts
func (s *Service) GetReceiptFile(userID, id string) ([]byte, string, error) {
	receipt, err := s.GetReceipt(userID, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// contribution is what a receipt line adds to the ledger. Lines with an
// untracked category or a negative total were excluded when the receipt was
// recorded and add nothing.
type contribution struct {
	category ledger.Category
	total    decimal.Decimal
	quantity int
}

func lineContribution(item ledger.GroceryItem) contribution {
	return contribution{
		category: itemCategory(item),
		total:    item.TotalPrice,
		quantity: item.Quantity,
	}
}

func (c contribution) counted() bool {
	return c.category.Tracked() && !c.total.IsNegative() && c.quantity >= 0
}

// lineTotal prices a line after an edit. The line's discount (unit price times
// quantity minus what was charged) stays with it, so the ledger moves by
// exactly the change in the charged total.
func lineTotal(price decimal.Decimal, quantity int, discount decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount).Round(2)
}

// UpdateItem applies an inline edit to one line, saves it, then moves the
// ledger with it. Quantity is applied before price and price before category,
// so a category move carries the edited line total.
func (s *Service) UpdateItem(ctx context.Context, userID, receiptID string, index int, update ItemUpdate) (*Receipt, error) {
	receipt, err := s.GetReceipt(userID, receiptID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(receipt.Items) {
		return nil, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}

	if update.Quantity != nil && *update.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
	}
	if update.ItemPrice != nil && update.ItemPrice.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}

	var newCategory ledger.Category
	if update.Category != nil {
		newCategory, err = ledger.ParseCategory(*update.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
		}
	}

	item := &receipt.Items[index]
	before := *item
	discount := before.ItemPrice.Mul(decimal.NewFromInt(int64(before.Quantity))).Sub(before.TotalPrice)

	if update.Quantity != nil {
		item.Quantity = *update.Quantity
	}
	if update.ItemPrice != nil {
		item.ItemPrice = update.ItemPrice.Round(2)
	}
	if item.Quantity != before.Quantity || !item.ItemPrice.Equal(before.ItemPrice) {
		item.TotalPrice = lineTotal(item.ItemPrice, item.Quantity, discount)
	}
	if update.Category != nil && newCategory != itemCategory(before) {
		item.Category = newCategory.String()
	}

	receipt.recomputeTotal()
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	s.moveLine(ctx, receipt, before, *item)
	return receipt, nil
}

// moveLine brings the ledger from a line's old contribution to its new one
func (s *Service) moveLine(ctx context.Context, receipt *Receipt, before, after ledger.GroceryItem) {
	was, now := lineContribution(before), lineContribution(after)

	if !was.counted() || !now.counted() {
		// The line enters or leaves the ledger as a whole
		if was.counted() {
			s.reassign(ctx, receipt, was.category, ledger.Uncategorized, was)
		}
		if now.counted() {
			s.reassign(ctx, receipt, ledger.Uncategorized, now.category, now)
		}
		return
	}

	if after.Quantity != before.Quantity {
		outcome, err := s.aggregator.ReassignQuantity(ctx, receipt.UserID, receipt.Date, was.category, before.ItemPrice, after.Quantity, before.Quantity)
		logAggregation("reassign_quantity", receipt, outcome, err)
	}
	if !after.ItemPrice.Equal(before.ItemPrice) {
		outcome, err := s.aggregator.ReassignPrice(ctx, receipt.UserID, receipt.Date, was.category, after.ItemPrice, before.ItemPrice, after.Quantity)
		logAggregation("reassign_price", receipt, outcome, err)
	}
	if now.category != was.category {
		s.reassign(ctx, receipt, was.category, now.category, now)
	}
}

func (s *Service) reassign(ctx context.Context, receipt *Receipt, from, to ledger.Category, line contribution) {
	outcome, err := s.aggregator.ReassignCategory(ctx, receipt.UserID, receipt.Date, from, to, line.total, line.quantity)
	logAggregation("reassign_category", receipt, outcome, err)
}

// DeleteItem removes a line, then takes it out of the ledger
func (s *Service) DeleteItem(ctx context.Context, userID, receiptID string, index int) (*Receipt, error) {
	receipt, err := s.GetReceipt(userID, receiptID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(receipt.Items) {
		return nil, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}

	removed := receipt.Items[index]
	receipt.Items = append(receipt.Items[:index], receipt.Items[index+1:]...)
	receipt.recomputeTotal()
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	s.uncategorize(ctx, receipt, removed)
	return receipt, nil
}

// DeleteReceipt removes a receipt, then its lines from the ledger and its file.
// The ledger is only touched once the record is gone, so a failed delete can
// be retried without subtracting the receipt twice.
func (s *Service) DeleteReceipt(ctx context.Context, userID, id string) error {
	receipt, err := s.GetReceipt(userID, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}

	for _, item := range receipt.Items {
		s.uncategorize(ctx, receipt, item)
	}

	if err := s.storage.Delete(receipt.Filename); err != nil {
		// Log error; the record is already gone
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}
	return nil
}

// uncategorize takes a line out of the ledger; excluded lines were never in it
func (s *Service) uncategorize(ctx context.Context, receipt *Receipt, item ledger.GroceryItem) {
	line := lineContribution(item)
	if !line.counted() {
		return
	}
	s.reassign(ctx, receipt, line.category, ledger.Uncategorized, line)
}

// Ledger returns the user's spending ledger
func (s *Service) Ledger(ctx context.Context, userID string) (*ledger.Ledger, error) {
	l, err := s.aggregator.Ledger(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting ledger: %w", err)
	}
	return l, nil
}
