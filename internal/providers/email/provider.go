package email

import "context"

// CreditReceipt is the data rendered into the purchase confirmation mail.
type CreditReceipt struct {
	Name        string
	Credits     int64
	Amount      string
	Description string
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendCreditReceipt(ctx context.Context, to string, receipt CreditReceipt) error
}

// NoOpProvider is used when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendCreditReceipt(ctx context.Context, to string, receipt CreditReceipt) error {
	return nil
}
