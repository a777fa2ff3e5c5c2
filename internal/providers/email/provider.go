package email

import "context"

// Attachment is one file carried alongside a message body.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Provider sends billing notifications. Delivery is best effort from
// the engine's perspective: a failed send is logged and counted, never
// propagated into a billing state transition.
type Provider interface {
	// Send delivers an HTML message. inlinePNG, when non-nil, is
	// attached as an inline image addressable as cid:qrcode.
	Send(ctx context.Context, to, subject, htmlBody string, inlinePNG []byte, attachments []Attachment) error
}
