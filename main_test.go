package neonfs

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	if err := InitializeSecureHeap(0, 0); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// mustBuffer wraps NewSecureBufferFromBytes for fixtures. It copies its
// input first so test literals survive the wipe-on-copy.
func mustBuffer(t testing.TB, data []byte) *SecureBuffer {
	t.Helper()
	cp := make([]byte, len(data))
	copy(cp, data)
	buf, err := NewSecureBufferFromBytes(cp)
	if err != nil {
		t.Fatalf("failed to create secure buffer: %v", err)
	}
	return buf
}

// mustKey generates a random master key for fixtures.
func mustKey(t testing.TB) *SecureBuffer {
	t.Helper()
	key, err := GenerateMasterKey(MasterKeySize)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

// assertKind fails unless err carries the given kind.
func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	got, ok := KindOf(err)
	if !ok {
		t.Fatalf("expected %v error, got foreign error: %v", kind, err)
	}
	if got != kind {
		t.Fatalf("expected %v error, got %v: %v", kind, got, err)
	}
}
