// Package encoder turns ticket tokens into scannable credential images.
package encoder

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder maps an opaque token to an image payload. Pure by contract: the
// same token always yields an equivalent image and nothing is persisted.
type Encoder interface {
	Encode(token string) ([]byte, error)
}

// QR renders tokens as QR code PNGs.
type QR struct {
	Size int
}

// NewQR returns a QR encoder at the size the gate scanners are tuned for.
func NewQR() QR {
	return QR{Size: 320}
}

// Encode renders the token into a PNG.
func (q QR) Encode(token string) ([]byte, error) {
	size := q.Size
	if size <= 0 {
		size = 320
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
