package token

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "unit-test-secret-key-0123456789"

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, DefaultMaxAge)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func testClaims(now time.Time) Claims {
	return Claims{
		AccountID: "01J5ZW9Y4R8B3T6K2M1QD7XCVN",
		Email:     "a@x.com",
		Role:      "Learner",
		IssuedAt:  now.UnixMilli(),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec(t)
	now := time.Now().UTC()

	in := testClaims(now)
	tok, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, err := c.Decode(tok, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round-trip mismatch: got %+v want %+v", out, in)
	}
}

func TestCodec_EncodeIsNonDeterministic(t *testing.T) {
	c := testCodec(t)
	in := testClaims(time.Now().UTC())

	t1, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	t2, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if t1 == t2 {
		t.Fatalf("expected distinct tokens for same claims (random IV)")
	}
}

func TestCodec_ExpiresAfterMaxAge(t *testing.T) {
	c := testCodec(t)
	issued := time.Now().UTC()

	tok, err := c.Encode(testClaims(issued))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Still valid just inside the window.
	if _, err := c.Decode(tok, issued.Add(DefaultMaxAge-time.Minute)); err != nil {
		t.Fatalf("Decode inside window: %v", err)
	}

	// One second past the window.
	if _, err := c.Decode(tok, issued.Add(DefaultMaxAge+time.Second)); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken past maxAge, got %v", err)
	}
}

func TestCodec_TamperedCiphertextRejected(t *testing.T) {
	c := testCodec(t)
	now := time.Now().UTC()

	tok, err := c.Encode(testClaims(now))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	framed, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	ivHex, ctHex, ok := strings.Cut(string(framed), ":")
	if !ok {
		t.Fatalf("bad frame")
	}

	// Flip one bit in every ciphertext byte position in turn; no variant may decode.
	for i := 0; i < len(ctHex); i++ {
		mut := []byte(ctHex)
		if mut[i] == 'a' {
			mut[i] = 'b'
		} else {
			mut[i] = 'a'
		}
		bad := base64.StdEncoding.EncodeToString([]byte(ivHex + ":" + string(mut)))
		if _, err := c.Decode(bad, now); !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("pos %d: tampered token decoded (err=%v)", i, err)
		}
	}
}

func TestCodec_GarbageInputsRejected(t *testing.T) {
	c := testCodec(t)
	now := time.Now().UTC()

	cases := []string{
		"",
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("no-separator")),
		base64.StdEncoding.EncodeToString([]byte("deadbeef:zz")),
		base64.StdEncoding.EncodeToString([]byte("00112233445566778899aabbccddeeff:")),
		base64.StdEncoding.EncodeToString([]byte("00112233445566778899aabbccddeeff:00")),
	}
	for _, tc := range cases {
		if _, err := c.Decode(tc, now); !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("input %q: expected ErrInvalidOrExpiredToken, got %v", tc, err)
		}
	}
}

func TestCodec_MissingClaimFieldsRejected(t *testing.T) {
	c := testCodec(t)
	now := time.Now().UTC()

	cases := []Claims{
		{Email: "a@x.com", Role: "Learner", IssuedAt: now.UnixMilli()},
		{AccountID: "id", Role: "Learner", IssuedAt: now.UnixMilli()},
		{AccountID: "id", Email: "a@x.com", IssuedAt: now.UnixMilli()},
		{AccountID: "id", Email: "a@x.com", Role: "Learner"},
	}
	for i, cl := range cases {
		if _, err := c.Encode(cl); !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("case %d: expected Encode to reject incomplete claims, got %v", i, err)
		}
	}
}

func TestCodec_DecodeRejectsIncompleteClaims(t *testing.T) {
	c := testCodec(t)
	now := time.Now().UTC()

	// Hand-roll a well-formed token whose payload is missing required
	// claim fields; Decode must still reject it.
	tok := encryptRaw(t, c, []byte(`{"email":"a@x.com","timestamp":`+
		"1700000000000"+`}`))
	if _, err := c.Decode(tok, now); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken for incomplete claims, got %v", err)
	}
}

func encryptRaw(t *testing.T, c *Codec, plain []byte) string {
	t.Helper()

	block, err := aes.NewCipher(c.key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	iv := make([]byte, aes.BlockSize)
	padded := pkcs7Pad(plain, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	framed := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
	return base64.StdEncoding.EncodeToString([]byte(framed))
}

func TestCodec_WrongSecretRejected(t *testing.T) {
	c := testCodec(t)
	other, err := NewCodec("another-secret-key-9876543210", DefaultMaxAge)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now().UTC()
	tok, err := c.Encode(testClaims(now))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := other.Decode(tok, now); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected cross-secret decode to fail, got %v", err)
	}
}

func TestNewCodec_RejectsShortSecret(t *testing.T) {
	if _, err := NewCodec("short", DefaultMaxAge); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
