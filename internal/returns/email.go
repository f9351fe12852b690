package returns

import (
	"fmt"
	"strings"

	"github.com/fashionmarket/storefront-backend/internal/documents"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/mailer"
	"github.com/fashionmarket/storefront-backend/pkg/money"
)

func approvedMessage(ret models.Return, note models.CreditNote) mailer.Message {
	text := documents.RenderText(documents.Render(documents.CreditNoteDocument(note)))
	body := fmt.Sprintf(
		"Your return %s has been approved.\n\nWe will refund %s to your original payment method. The credit note %s is attached.\n\nFashionMarket",
		ret.ReturnNumber, money.Format(note.TotalCents, note.Currency), note.CreditNoteNumber,
	)
	return mailer.Message{
		Subject: "Return " + ret.ReturnNumber + " approved",
		Body:    body,
		Attachments: []mailer.Attachment{{
			Filename:    note.CreditNoteNumber + ".txt",
			ContentType: "text/plain",
			Content:     []byte(text),
		}},
	}
}

func rejectedMessage(ret models.Return) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "We could not accept your return %s.\n\n", ret.ReturnNumber)
	if ret.AdminNotes != nil {
		fmt.Fprintf(&b, "Reason: %s\n\n", *ret.AdminNotes)
	}
	b.WriteString("Reply to this email if you have any questions.\n\nFashionMarket")
	return mailer.Message{
		Subject: "Return " + ret.ReturnNumber + " update",
		Body:    b.String(),
	}
}
