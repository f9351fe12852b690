package documents

import "fmt"

// InvoiceNumber formats FM-<year>-<6 digit sequence>.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("FM-%d-%06d", year, seq)
}

// CreditNoteNumber formats CN-<year>-<6 digit sequence>.
func CreditNoteNumber(year, seq int) string {
	return fmt.Sprintf("CN-%d-%06d", year, seq)
}
