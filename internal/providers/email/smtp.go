package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

var creditReceiptTemplate = template.Must(template.New("credit_receipt").Parse(`
<html>
<body>
  <h2>Thanks for your purchase{{if .Name}}, {{.Name}}{{end}}!</h2>
  <p>Your payment of <strong>{{.Amount}}</strong> settled and
  <strong>{{.Credits}} credits</strong> were added to your RoomVision account.</p>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p>Happy staging!</p>
</body>
</html>
`))

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", to[0], subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, p.cfg.From, to, msg)
}

func (p *SMTPProvider) SendCreditReceipt(ctx context.Context, to string, receipt CreditReceipt) error {
	var body bytes.Buffer
	if err := creditReceiptTemplate.Execute(&body, receipt); err != nil {
		return fmt.Errorf("render credit receipt: %w", err)
	}
	subject := fmt.Sprintf("Your %d RoomVision credits are ready", receipt.Credits)
	return p.Send(ctx, []string{to}, subject, body.String())
}
