package token

import (
	"strings"
	"testing"
)

func TestNewIsUnique(t *testing.T) {
	const n = 10_000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok := New()
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d generations: %s", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewIsURLSafe(t *testing.T) {
	tok := New()
	if len(tok) != 43 { // 32 bytes, base64url, no padding
		t.Fatalf("token length = %d, want 43", len(tok))
	}
	for _, r := range tok {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			t.Fatalf("token contains non-url-safe rune %q in %s", r, tok)
		}
	}
	if strings.ContainsRune(tok, '=') {
		t.Fatalf("token is padded: %s", tok)
	}
}
