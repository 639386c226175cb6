package encoder

import (
	"bytes"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestQREncodeProducesPNG(t *testing.T) {
	png, err := NewQR().Encode("tok_abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatalf("output is not a PNG, first bytes: %x", png[:8])
	}
}

func TestQRZeroSizeDefaults(t *testing.T) {
	png, err := QR{}.Encode("tok_abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty image")
	}
}
