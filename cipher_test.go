package neonfs

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func testKeyNonce(t *testing.T) (key, nonce []byte) {
	t.Helper()
	key = make([]byte, MasterKeySize)
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rng failed: %v", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rng failed: %v", err)
	}
	return key, nonce
}

func TestCipherContextRoundTrip(t *testing.T) {
	for _, suite := range []CipherSuite{SuiteAES256GCM, SuiteChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			key, nonce := testKeyNonce(t)
			plaintext := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

			enc := NewCipherContext()
			if err := enc.Init(suite, key, nonce, true); err != nil {
				t.Fatalf("encrypt init failed: %v", err)
			}
			ciphertext, tag, err := enc.Seal(plaintext)
			if err != nil {
				t.Fatalf("seal failed: %v", err)
			}
			if len(ciphertext) != len(plaintext) {
				t.Fatalf("ciphertext length %d, want %d", len(ciphertext), len(plaintext))
			}
			if len(tag) != TagSize {
				t.Fatalf("tag length %d, want %d", len(tag), TagSize)
			}
			if bytes.Equal(ciphertext, plaintext) {
				t.Fatal("ciphertext equals plaintext")
			}

			dec := NewCipherContext()
			if err := dec.Init(suite, key, nonce, false); err != nil {
				t.Fatalf("decrypt init failed: %v", err)
			}
			got, err := dec.Open(ciphertext, tag)
			if err != nil {
				t.Fatalf("open failed: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Fatalf("round trip mismatch: %x != %x", got, plaintext)
			}
		})
	}
}

func TestCipherContextInitStepFailures(t *testing.T) {
	key, nonce := testKeyNonce(t)

	tests := []struct {
		name    string
		suite   CipherSuite
		key     []byte
		nonce   []byte
		wantMsg string
	}{
		{"short key", SuiteAES256GCM, key[:16], nonce, "key installation"},
		{"empty nonce", SuiteAES256GCM, key, nil, "nonce length"},
		{"bad suite", CipherSuite(77), key, nonce, "cipher selection"},
		{"chacha odd nonce", SuiteChaCha20Poly1305, key, make([]byte, 16), "nonce length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewCipherContext()
			err := ctx.Init(tt.suite, tt.key, tt.nonce, true)
			assertKind(t, err, KindCryptoFailure)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("message %q does not name step %q", err.Error(), tt.wantMsg)
			}
			if !ctx.IsPoisoned() {
				t.Fatal("failed init left context unpoisoned")
			}
		})
	}
}

func TestCipherContextPoisonedRequiresReset(t *testing.T) {
	key, nonce := testKeyNonce(t)

	ctx := NewCipherContext()
	if err := ctx.Init(SuiteAES256GCM, key[:8], nonce, true); err == nil {
		t.Fatal("short key accepted")
	}

	// Reuse without reset is refused.
	err := ctx.Init(SuiteAES256GCM, key, nonce, true)
	assertKind(t, err, KindInvalidState)

	ctx.Reset()
	if ctx.IsPoisoned() {
		t.Fatal("reset did not clear poison")
	}
	if err := ctx.Init(SuiteAES256GCM, key, nonce, true); err != nil {
		t.Fatalf("init after reset failed: %v", err)
	}
}

func TestCipherContextResetIdempotent(t *testing.T) {
	ctx := NewCipherContext()
	ctx.Reset()
	ctx.Reset()

	key, nonce := testKeyNonce(t)
	if err := ctx.Init(SuiteAES256GCM, key, nonce, true); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !ctx.IsReady() {
		t.Fatal("context not ready after init")
	}
	ctx.Reset()
	if ctx.IsReady() {
		t.Fatal("context ready after reset")
	}
	if _, _, err := ctx.Seal([]byte("x")); err == nil {
		t.Fatal("seal succeeded on reset context")
	}
}

func TestCipherContextModeMismatch(t *testing.T) {
	key, nonce := testKeyNonce(t)

	enc := NewCipherContext()
	if err := enc.Init(SuiteAES256GCM, key, nonce, true); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := enc.Open([]byte("cipher"), make([]byte, TagSize)); err == nil {
		t.Fatal("open succeeded on encrypt-mode context")
	}

	dec := NewCipherContext()
	if err := dec.Init(SuiteAES256GCM, key, nonce, false); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, _, err := dec.Seal([]byte("plain")); err == nil {
		t.Fatal("seal succeeded on decrypt-mode context")
	}
}

func TestCipherContextTamperDetection(t *testing.T) {
	key, nonce := testKeyNonce(t)
	plaintext := []byte("eight by") // 8 bytes

	enc := NewCipherContext()
	if err := enc.Init(SuiteAES256GCM, key, nonce, true); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	ciphertext, tag, err := enc.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	open := func(ct, n, tg []byte) error {
		dec := NewCipherContext()
		if err := dec.Init(SuiteAES256GCM, key, n, false); err != nil {
			t.Fatalf("init failed: %v", err)
		}
		_, err := dec.Open(ct, tg)
		return err
	}

	// Flip one bit in each of ciphertext, nonce, and tag.
	badCT := append([]byte(nil), ciphertext...)
	badCT[0] ^= 0x01
	assertKind(t, open(badCT, nonce, tag), KindAuthenticationFailure)

	badNonce := append([]byte(nil), nonce...)
	badNonce[3] ^= 0x01
	assertKind(t, open(ciphertext, badNonce, tag), KindAuthenticationFailure)

	badTag := append([]byte(nil), tag...)
	badTag[15] ^= 0x01
	assertKind(t, open(ciphertext, nonce, badTag), KindAuthenticationFailure)

	// The untampered triple still opens.
	if err := open(ciphertext, nonce, tag); err != nil {
		t.Fatalf("untampered open failed: %v", err)
	}
}

func TestCipherContextOddNonceLengthGCM(t *testing.T) {
	// GCM accepts nonce lengths other than 12; the context honors the
	// requested length.
	key, _ := testKeyNonce(t)
	nonce := make([]byte, 16)

	ctx := NewCipherContext()
	if err := ctx.Init(SuiteAES256GCM, key, nonce, true); err != nil {
		t.Fatalf("16-byte nonce rejected: %v", err)
	}
	if _, _, err := ctx.Seal([]byte("data")); err != nil {
		t.Fatalf("seal failed: %v", err)
	}
}
