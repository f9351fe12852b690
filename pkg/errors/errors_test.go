package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict, detailsOK: true},
		{code: CodePreconditionFailed, status: http.StatusPreconditionFailed, detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "db: load order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestIsCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("approve: %w", New(CodePreconditionFailed, "return is not requested"))
	if !IsCode(err, CodePreconditionFailed) {
		t.Fatalf("expected precondition code to be found")
	}
	if IsCode(err, CodeConflict) {
		t.Fatalf("unexpected conflict match")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestLogFieldsCollectsChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key", TableName: "orders"}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "order number taken")

	fields := LogFields(err)
	if fields["error_code"] != string(CodeConflict) {
		t.Fatalf("expected conflict code, got %v", fields["error_code"])
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 3 {
		t.Fatalf("expected three chain entries, got %v", fields["error_chain"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "orders_order_number_key" {
		t.Fatalf("postgres details missing: %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty diagnostics must be omitted")
	}

	legacy := LogFields(&pq.Error{Code: "23503", Table: "order_items"})
	if legacy["pg_code"] != "23503" || legacy["pg_table"] != "order_items" {
		t.Fatalf("lib/pq details missing: %v", legacy)
	}

	if LogFields(nil) != nil {
		t.Fatalf("nil error has no fields")
	}
}

func TestWithDetailsLeavesOriginalUntouched(t *testing.T) {
	base := New(CodeConflict, "variant changed")
	decorated := base.WithDetails(map[string]int{"available": 2})
	if base.Details() != nil {
		t.Fatalf("base error mutated: %v", base.Details())
	}
	if decorated.Details() == nil || decorated.Code() != CodeConflict {
		t.Fatalf("decorated error lost data: %+v", decorated)
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load return: %w", Wrap(CodeNotFound, stdErrors.New("record not found"), "return not found"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("expected not-found match")
	}
	if stdErrors.Is(err, New(CodeForbidden, "")) {
		t.Fatalf("unexpected forbidden match")
	}
	var nilTyped *Error
	if IsCode(nilTyped, CodeInternal) || IsCode(nil, "") {
		t.Fatalf("nil errors carry no code")
	}
}
