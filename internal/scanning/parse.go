package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// unknownDate is what the prompt asks for when no date is readable. It does
// not parse as a receipt date, so nothing gets aggregated for it.
const unknownDate = "NA/NA/NA"

// dateLayouts are the formats models return despite being asked for MM/DD/YYYY
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// stripFences removes markdown code fences and anything around the JSON object
func stripFences(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

// parseReceiptJSON parses a model response into ReceiptData
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text, err := stripFences(text)
	if err != nil {
		return nil, err
	}

	var data ReceiptData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Store = strings.TrimSpace(data.Store)
	if data.Store == "" {
		data.Store = "Unknown Store"
	}
	data.Date = normalizeDate(data.Date)

	items := data.Items[:0]
	for _, item := range data.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.Category = strings.TrimSpace(item.Category)
		if item.Category == "" {
			item.Category = "Uncategorized"
		}
		if item.TotalPrice == 0 && item.Price != 0 {
			item.TotalPrice = math.Round(item.Price*float64(item.Quantity)*100) / 100
		}
		items = append(items, item)
	}
	data.Items = items

	return &data, nil
}

// normalizeDate rewrites a model date as MM/DD/YYYY
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("01/02/2006")
		}
	}
	return unknownDate
}
