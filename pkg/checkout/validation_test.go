package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
)

func TestValidateLines_NoViolations(t *testing.T) {
	lines := []LineCheck{
		{Index: 0, ProductID: uuid.New(), ProductName: "Trench", Found: true, Active: true, Quantity: 1},
		{Index: 1, ProductID: uuid.New(), ProductName: "Scarf", Found: true, Active: true, Quantity: 3},
	}
	if err := ValidateLines(lines); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateLines_Empty(t *testing.T) {
	if !pkgerrors.IsCode(ValidateLines(nil), pkgerrors.CodeValidation) {
		t.Fatal("expected validation error for empty cart")
	}
}

func TestValidateLines_Violations(t *testing.T) {
	lines := []LineCheck{
		{Index: 0, ProductID: uuid.New()},
		{Index: 1, ProductID: uuid.New(), ProductName: "Old", Found: true},
		{Index: 2, ProductID: uuid.New(), ProductName: "Dress", Found: true, Active: true, Quantity: 0},
		{Index: 3, ProductID: uuid.New(), ProductName: "Shirt", Found: true, Active: true, Quantity: 1, VariantErr: "size XL is not offered"},
		{Index: 4, ProductID: uuid.New(), ProductName: "Fine", Found: true, Active: true, Quantity: 1},
	}
	err := ValidateLines(lines)
	if err == nil {
		t.Fatal("expected error for invalid lines")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected code %s, got %s", pkgerrors.CodeValidation, typed.Code())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]LineViolation)
	if !ok {
		t.Fatalf("expected violations slice, got %T", details["violations"])
	}
	want := []string{ReasonNotFound, ReasonInactive, ReasonQuantity, ReasonVariant}
	if len(violations) != len(want) {
		t.Fatalf("expected %d violations, got %d", len(want), len(violations))
	}
	for i, violation := range violations {
		if violation.Reason != want[i] {
			t.Fatalf("line %d: expected reason %q, got %q", i, want[i], violation.Reason)
		}
		if violation.ProductID != lines[i].ProductID {
			t.Fatalf("line %d: expected product id %s, got %s", i, lines[i].ProductID, violation.ProductID)
		}
	}
}
