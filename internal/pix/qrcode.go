package pix

import qrcode "github.com/skip2/go-qrcode"

// QRCodePNG renders an encoded payload as a PNG image suitable for
// embedding inline in invoice mail.
func QRCodePNG(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, 256)
}
