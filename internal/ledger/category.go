package ledger

import (
	"fmt"
	"strings"
)

// Category is a food group tracked in the monthly breakdown.
// The zero value is Uncategorized, which is never aggregated.
type Category int

const (
	Uncategorized Category = iota
	Vegetables
	Fruits
	Grains
	Protein
	Dairy
)

const categoryCount = 5

// Categories lists the tracked categories in breakdown order.
var Categories = [categoryCount]Category{Vegetables, Fruits, Grains, Protein, Dairy}

// ParseCategory maps a category name to a Category. Empty input and
// "Uncategorized" yield Uncategorized; anything else unknown is an error.
func ParseCategory(s string) (Category, error) {
	name := strings.TrimSpace(s)
	if name == "" || strings.EqualFold(name, Uncategorized.String()) {
		return Uncategorized, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(name, c.String()) {
			return c, nil
		}
	}
	return Uncategorized, fmt.Errorf("unknown category %q", s)
}

// Tracked reports whether the category takes part in aggregation.
func (c Category) Tracked() bool {
	return c >= Vegetables && c <= Dairy
}

func (c Category) index() int {
	return int(c) - 1
}

func (c Category) String() string {
	switch c {
	case Vegetables:
		return "Vegetables"
	case Fruits:
		return "Fruits"
	case Grains:
		return "Grains"
	case Protein:
		return "Protein"
	case Dairy:
		return "Dairy"
	case Uncategorized:
		return "Uncategorized"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Tracked() && c != Uncategorized {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
