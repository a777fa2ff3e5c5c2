package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"path/filepath"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

const inlineImageCID = "qrcode"

func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody string, inlinePNG []byte, attachments []Attachment) error {
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	msg := buildMessage(p.cfg.From, to, subject, htmlBody, inlinePNG, attachments)
	return smtp.SendMail(addr, auth, p.cfg.From, []string{to}, msg)
}

func buildMessage(from, to, subject, htmlBody string, inlinePNG []byte, attachments []Attachment) []byte {
	const boundary = "meterbill-mixed"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	writePart(&buf, boundary, "text/html; charset=\"UTF-8\"", "", "", []byte(htmlBody))

	if inlinePNG != nil {
		writePart(&buf, boundary, "image/png", inlineImageCID, "", inlinePNG)
	}
	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(att.Filename))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		writePart(&buf, boundary, contentType, "", att.Filename, att.Data)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func writePart(buf *bytes.Buffer, boundary, contentType, cid, filename string, data []byte) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s\r\n", contentType)
	if cid != "" {
		fmt.Fprintf(buf, "Content-ID: <%s>\r\n", cid)
		buf.WriteString("Content-Disposition: inline\r\n")
	}
	if filename != "" {
		fmt.Fprintf(buf, "Content-Disposition: attachment; filename=%q\r\n", filename)
	}
	if cid != "" || filename != "" {
		buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		encoded := base64.StdEncoding.EncodeToString(data)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76] + "\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded + "\r\n")
		return
	}
	buf.WriteString("\r\n")
	buf.Write(data)
	buf.WriteString("\r\n")
}
