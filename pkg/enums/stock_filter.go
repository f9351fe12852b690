package enums

// StockFilter selects products in the admin stock overview.
type StockFilter string

const (
	StockFilterAll StockFilter = "all"
	// StockFilterLow includes out-of-stock products as well.
	StockFilterLow StockFilter = "low"
	StockFilterOut StockFilter = "out"
)

var validStockFilters = []StockFilter{
	StockFilterAll,
	StockFilterLow,
	StockFilterOut,
}

// IsValid reports whether the value is a known StockFilter.
func (f StockFilter) IsValid() bool {
	return known(f, validStockFilters)
}

// ParseStockFilter converts raw input into a StockFilter; empty means all.
func ParseStockFilter(value string) (StockFilter, error) {
	if value == "" {
		return StockFilterAll, nil
	}
	return parse(value, validStockFilters, "stock filter")
}
