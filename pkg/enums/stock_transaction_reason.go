package enums

import "fmt"

// StockTransactionReason explains a change to an item's on-hand quantity.
type StockTransactionReason string

const (
	StockTransactionReasonReceiving     StockTransactionReason = "receiving"
	StockTransactionReasonDamage        StockTransactionReason = "damage"
	StockTransactionReasonCycleCount    StockTransactionReason = "cycle_count"
	StockTransactionReasonReturnToStock StockTransactionReason = "return_to_stock"
	StockTransactionReasonManualAdjust  StockTransactionReason = "manual_adjust"
	StockTransactionReasonConsumption   StockTransactionReason = "consumption"
)

var validStockTransactionReasons = []StockTransactionReason{
	StockTransactionReasonReceiving,
	StockTransactionReasonDamage,
	StockTransactionReasonCycleCount,
	StockTransactionReasonReturnToStock,
	StockTransactionReasonManualAdjust,
	StockTransactionReasonConsumption,
}

// String implements fmt.Stringer.
func (s StockTransactionReason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockTransactionReason.
func (s StockTransactionReason) IsValid() bool {
	for _, candidate := range validStockTransactionReasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockTransactionReason converts raw input into a StockTransactionReason.
func ParseStockTransactionReason(value string) (StockTransactionReason, error) {
	for _, candidate := range validStockTransactionReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction reason %q", value)
}
