package scanning

import (
	"context"
	"fmt"
	"log/slog"
)

// Item is a grocery line as read by the model, in dollars
type Item struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Category   string  `json:"category"`
	TotalPrice float64 `json:"total_price"`
}

// ReceiptData contains extracted information from a grocery receipt
type ReceiptData struct {
	Store string `json:"store"`
	Date  string `json:"date"` // MM/DD/YYYY, or NA/NA/NA when unreadable
	Items []Item `json:"items"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt reads a receipt image/PDF and extracts its grocery lines
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// maxScanAttempts bounds how often a model is asked again after an answer
// that is not receipt JSON
const maxScanAttempts = 2

// generateFunc asks a model about a PNG once and returns its raw answer
type generateFunc func(ctx context.Context, pngData []byte) (string, error)

// scan normalises the upload to PNG and asks the model until it answers with
// parseable receipt JSON. Transport errors are returned at once.
func scan(ctx context.Context, provider string, imageData []byte, contentType string, generate generateFunc) (*ReceiptData, error) {
	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	var parseErr error
	for attempt := 1; attempt <= maxScanAttempts; attempt++ {
		text, err := generate(ctx, pngData)
		if err != nil {
			return nil, err
		}

		data, err := parseReceiptJSON(text)
		if err == nil {
			slog.Debug("Scanned receipt", "provider", provider, "attempt", attempt, "items", len(data.Items))
			return data, nil
		}
		parseErr = err
		slog.Warn("Unreadable receipt response", "provider", provider, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("parsing receipt data: %w", parseErr)
}
