package stock

import (
	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

// LowStockThreshold is the inclusive upper bound for a "low" variant.
const LowStockThreshold = 5

// Level classifies a single variant quantity.
type Level string

const (
	LevelOK  Level = "ok"
	LevelLow Level = "low"
	LevelOut Level = "out"
)

// LevelOf classifies qty.
func LevelOf(qty int) Level {
	switch {
	case qty <= 0:
		return LevelOut
	case qty <= LowStockThreshold:
		return LevelLow
	default:
		return LevelOK
	}
}

// VariantLevel is one slot in a summary.
type VariantLevel struct {
	Size     *string `json:"size"`
	Color    *string `json:"color"`
	Quantity int     `json:"quantity"`
	Level    Level   `json:"level"`
}

// Summary is the admin overview of one product.
type Summary struct {
	ProductID    uuid.UUID      `json:"product_id"`
	Name         string         `json:"name"`
	TotalStock   int            `json:"total_stock"`
	VariantCount int            `json:"variant_count"`
	LowCount     int            `json:"low_count"`
	OutCount     int            `json:"out_count"`
	HasLow       bool           `json:"has_low"`
	HasOut       bool           `json:"has_out"`
	Variants     []VariantLevel `json:"variants"`
}

// Matrix is the size x color grid for products with both axes.
type Matrix struct {
	Sizes        []string `json:"sizes"`
	Colors       []string `json:"colors"`
	Cells        [][]int  `json:"cells"`
	RowTotals    []int    `json:"row_totals"`
	ColumnTotals []int    `json:"column_totals"`
	GrandTotal   int      `json:"grand_total"`
}

// ExpectedSlots lists the slots implied by the product's axes.
func ExpectedSlots(product models.Product) []VariantKey {
	sizes, colors := []string(product.Sizes), []string(product.Colors)
	var slots []VariantKey
	switch {
	case len(sizes) > 0 && len(colors) > 0:
		for i := range sizes {
			for j := range colors {
				slots = append(slots, VariantKey{Size: &sizes[i], Color: &colors[j]})
			}
		}
	case len(sizes) > 0:
		for i := range sizes {
			slots = append(slots, VariantKey{Size: &sizes[i]})
		}
	case len(colors) > 0:
		for j := range colors {
			slots = append(slots, VariantKey{Color: &colors[j]})
		}
	default:
		slots = append(slots, VariantKey{})
	}
	return slots
}

// Summarize computes totals and low/out counts. Expected slots without a row
// count as out of stock; rows outside the current axes are still included.
// A product without any rows is a single unsized variant holding its flat stock.
func Summarize(product models.Product, rows []models.VariantStock) Summary {
	summary := Summary{ProductID: product.ID, Name: product.Name}

	if len(rows) == 0 {
		summary.add(VariantKey{}, product.Stock)
		return summary
	}

	byKey := make(map[string]int, len(rows))
	order := make([]VariantKey, 0, len(rows))
	for _, row := range rows {
		key := NewVariantKey(row.Size, row.Color)
		if _, seen := byKey[key.id()]; !seen {
			order = append(order, key)
		}
		byKey[key.id()] += row.Quantity
	}

	visited := make(map[string]bool, len(byKey))
	for _, slot := range ExpectedSlots(product) {
		visited[slot.id()] = true
		summary.add(slot, byKey[slot.id()])
	}
	for _, key := range order {
		if visited[key.id()] {
			continue
		}
		visited[key.id()] = true
		summary.add(key, byKey[key.id()])
	}
	return summary
}

func (s *Summary) add(key VariantKey, qty int) {
	level := LevelOf(qty)
	s.TotalStock += qty
	s.VariantCount++
	switch level {
	case LevelOut:
		s.OutCount++
		s.HasOut = true
	case LevelLow:
		s.LowCount++
		s.HasLow = true
	}
	s.Variants = append(s.Variants, VariantLevel{
		Size:     key.Size,
		Color:    key.Color,
		Quantity: qty,
		Level:    level,
	})
}

// BuildMatrix returns nil unless the product has both sizes and colors.
func BuildMatrix(product models.Product, rows []models.VariantStock) *Matrix {
	sizes, colors := []string(product.Sizes), []string(product.Colors)
	if len(sizes) == 0 || len(colors) == 0 {
		return nil
	}

	sizeIdx := make(map[string]int, len(sizes))
	for i, s := range sizes {
		sizeIdx[s] = i
	}
	colorIdx := make(map[string]int, len(colors))
	for j, c := range colors {
		colorIdx[c] = j
	}

	m := &Matrix{
		Sizes:        append([]string(nil), sizes...),
		Colors:       append([]string(nil), colors...),
		Cells:        make([][]int, len(sizes)),
		RowTotals:    make([]int, len(sizes)),
		ColumnTotals: make([]int, len(colors)),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(colors))
	}

	for _, row := range rows {
		key := NewVariantKey(row.Size, row.Color)
		if key.Size == nil || key.Color == nil {
			continue
		}
		i, okSize := sizeIdx[*key.Size]
		j, okColor := colorIdx[*key.Color]
		if !okSize || !okColor {
			continue
		}
		m.Cells[i][j] += row.Quantity
		m.RowTotals[i] += row.Quantity
		m.ColumnTotals[j] += row.Quantity
		m.GrandTotal += row.Quantity
	}
	return m
}

// Filter keeps the summaries matching f. Low includes out-of-stock products.
func Filter(summaries []Summary, f enums.StockFilter) []Summary {
	out := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		switch f {
		case enums.StockFilterLow:
			if !s.HasLow && !s.HasOut {
				continue
			}
		case enums.StockFilterOut:
			if !s.HasOut {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
