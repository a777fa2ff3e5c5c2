// Package render produces the HTML documents the billing engine mails
// out: the invoice, the admin receipt-verification notice, and the
// payment confirmation.
package render

import (
	"bytes"
	"html/template"
	"time"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice</title>
  <style>
    body { margin: 0; padding: 32px; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; background: #f7f9fc; }
    .card { background: #fff; max-width: 680px; margin: 0 auto; padding: 40px; border-radius: 4px; box-shadow: 0 2px 5px rgba(0,0,0,0.04); }
    h1 { font-size: 22px; margin: 0 0 8px; }
    .muted { color: #8792a2; font-size: 13px; }
    .amount { font-size: 30px; font-weight: 700; margin: 24px 0 4px; }
    table { width: 100%; border-collapse: collapse; margin-top: 24px; font-size: 13px; }
    th { text-align: left; color: #8792a2; text-transform: uppercase; font-size: 11px; padding: 6px 0; border-bottom: 1px solid #e3e8ee; }
    td { padding: 6px 0; border-bottom: 1px solid #f0f2f5; }
    .right { text-align: right; }
    .qr { margin: 24px 0; text-align: center; }
    .pay-link { color: #006aff; font-size: 13px; }
    .pix { font-size: 12px; word-break: break-all; background: #f7f9fc; padding: 10px; border-radius: 4px; }
  </style>
</head>
<body>
  <div class="card">
    <h1>{{.CompanyName}}</h1>
    <div class="muted">Invoice for {{.ClientName}}, issued {{.IssuedAt.Format "2006-01-02"}}</div>

    <div class="amount">{{.AmountDue}}</div>
    <div class="muted">amount due this cycle</div>

    <table>
      <tr><th>Activity</th><th class="right">Records</th><th class="right">Cost</th></tr>
      <tr><td>Completion requests</td><td class="right">{{.RequestCount}}</td><td class="right">{{.RequestCost}}</td></tr>
      <tr><td>Knowledge-base uploads</td><td class="right">{{.UploadCount}}</td><td class="right">{{.UploadCost}}</td></tr>
      <tr><td>Service fee</td><td class="right"></td><td class="right">{{.FlatFee}}</td></tr>
    </table>

    <div class="qr"><img src="cid:qrcode" alt="payment QR code" width="220" height="220" /></div>

    <div class="pix">{{.PixPayload}}</div>

    <p><a class="pay-link" href="{{.PayURL}}">Upload your payment receipt</a></p>
  </div>
</body>
</html>`

const verifyBillingHTMLTemplate = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8" /><title>Receipt received</title></head>
<body style="font-family: Arial, sans-serif; color: #1a1f36;">
  <h2>Payment receipt received</h2>
  <p>Client <strong>{{.ClientName}}</strong> ({{.ClientID}}) uploaded a payment receipt
     for <strong>{{.AmountDue}}</strong>.</p>
  <p><a href="{{.DownloadURL}}">Download the receipt</a></p>
  <p><a href="{{.ConfirmURL}}">Confirm the payment</a></p>
</body>
</html>`

const billingPaidHTMLTemplate = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8" /><title>Payment confirmed</title></head>
<body style="font-family: Arial, sans-serif; color: #1a1f36;">
  <h2>Payment confirmed</h2>
  <p>Hi {{.ClientName}},</p>
  <p>Your payment of <strong>{{.AmountPaid}}</strong> was confirmed on {{.PaidAt.Format "2006-01-02"}}.
     Your access is active again.</p>
  <p><a href="{{.ReceiptURL}}">Download your receipt</a></p>
  <p style="color: #8792a2; font-size: 12px;">Questions? Write to {{.SupportEmail}}.</p>
</body>
</html>`

var (
	invoiceTmpl       = template.Must(template.New("invoice").Parse(invoiceHTMLTemplate))
	verifyBillingTmpl = template.Must(template.New("verify_billing").Parse(verifyBillingHTMLTemplate))
	billingPaidTmpl   = template.Must(template.New("billing_paid").Parse(billingPaidHTMLTemplate))
)

type InvoiceData struct {
	CompanyName  string
	ClientName   string
	IssuedAt     time.Time
	AmountDue    string
	RequestCount int
	RequestCost  string
	UploadCount  int
	UploadCost   string
	FlatFee      string
	PixPayload   string
	PayURL       string
}

type VerifyBillingData struct {
	ClientName  string
	ClientID    string
	AmountDue   string
	DownloadURL string
	ConfirmURL  string
}

type BillingPaidData struct {
	ClientName   string
	AmountPaid   string
	PaidAt       time.Time
	ReceiptURL   string
	SupportEmail string
}

func Invoice(data InvoiceData) (string, error) {
	return execute(invoiceTmpl, data)
}

func VerifyBilling(data VerifyBillingData) (string, error) {
	return execute(verifyBillingTmpl, data)
}

func BillingPaid(data BillingPaidData) (string, error) {
	return execute(billingPaidTmpl, data)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
