package token

import "testing"

func TestVerificationCode_Shape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		code, err := VerificationCode()
		if err != nil {
			t.Fatalf("VerificationCode: %v", err)
		}
		if len(code) != VerificationCodeDigits {
			t.Fatalf("code %q: want %d digits", code, VerificationCodeDigits)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q: non-decimal rune %q", code, r)
			}
		}
		seen[code] = true
	}
	// 64 draws from a million-value space colliding down to one value
	// would indicate a broken random source.
	if len(seen) < 2 {
		t.Fatalf("verification codes look constant: %v", seen)
	}
}

func TestOpaqueTokenHex(t *testing.T) {
	a, err := OpaqueTokenHex(32)
	if err != nil {
		t.Fatalf("OpaqueTokenHex: %v", err)
	}
	b, err := OpaqueTokenHex(32)
	if err != nil {
		t.Fatalf("OpaqueTokenHex: %v", err)
	}
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("want 64 hex chars, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("expected distinct tokens")
	}

	// Non-positive sizes fall back to 32 bytes.
	d, err := OpaqueTokenHex(0)
	if err != nil {
		t.Fatalf("OpaqueTokenHex: %v", err)
	}
	if len(d) != 64 {
		t.Fatalf("default size: want 64 hex chars, got %d", len(d))
	}
}
