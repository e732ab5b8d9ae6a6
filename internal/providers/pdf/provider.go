package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// ReceiptData is one settled credit transaction rendered as a PDF.
type ReceiptData struct {
	ReceiptNumber string
	DatePaid      string
	BilledToName  string
	BilledToEmail string
	Description   string
	Credits       int64
	Amount        string
	Currency      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

func NewProvider() Provider {
	return &marotoProvider{}
}

var Module = fx.Module("providers.pdf",
	fx.Provide(NewProvider),
)
