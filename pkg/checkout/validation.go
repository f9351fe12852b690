package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
)

// Violation reasons reported per cart line.
const (
	ReasonNotFound = "product_not_found"
	ReasonInactive = "product_inactive"
	ReasonQuantity = "invalid_quantity"
	ReasonVariant  = "invalid_variant"
)

// LineCheck is the outcome of resolving one cart line against the catalog.
type LineCheck struct {
	Index       int
	ProductID   uuid.UUID
	ProductName string
	Found       bool
	Active      bool
	Quantity    int
	VariantErr  string
}

// LineViolation is returned to callers for every rejected line.
type LineViolation struct {
	Index       int       `json:"index"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Reason      string    `json:"reason"`
	Message     string    `json:"message,omitempty"`
}

// ValidateLines reports every failing line at once.
func ValidateLines(lines []LineCheck) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var violations []LineViolation
	for _, line := range lines {
		v := LineViolation{Index: line.Index, ProductID: line.ProductID, ProductName: line.ProductName}
		switch {
		case !line.Found:
			v.Reason = ReasonNotFound
		case !line.Active:
			v.Reason = ReasonInactive
		case line.Quantity < 1:
			v.Reason = ReasonQuantity
			v.Message = fmt.Sprintf("quantity %d is below 1", line.Quantity)
		case line.VariantErr != "":
			v.Reason = ReasonVariant
			v.Message = line.VariantErr
		default:
			continue
		}
		violations = append(violations, v)
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart line(s) cannot be ordered", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
