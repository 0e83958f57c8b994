package neonfs

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"hash"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KeyDerivation selects the algorithm used by DeriveKey and
// VerifyPassword.
type KeyDerivation uint8

const (
	// PBKDF2SHA256 is PBKDF2 with HMAC-SHA256.
	PBKDF2SHA256 KeyDerivation = iota
	// PBKDF2SHA512 is PBKDF2 with HMAC-SHA512.
	PBKDF2SHA512
	// Argon2id is the memory-hard Argon2id function. The iterations
	// parameter is the time cost; memory and parallelism use the
	// defaults below.
	Argon2id
)

// String returns the string representation of the derivation algorithm.
func (a KeyDerivation) String() string {
	switch a {
	case PBKDF2SHA256:
		return "pbkdf2-hmac-sha256"
	case PBKDF2SHA512:
		return "pbkdf2-hmac-sha512"
	case Argon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

const (
	// DefaultIterations is the default PBKDF2 iteration count.
	DefaultIterations = 100000

	// MaxMasterKeySize bounds GenerateMasterKey.
	MaxMasterKeySize = 512
	// MaxSaltSize bounds GenerateSalt.
	MaxSaltSize = 64
	// MaxDerivedKeySize bounds the expected key in VerifyPassword.
	MaxDerivedKeySize = 64

	// Argon2id cost defaults, matching common server guidance.
	argon2Memory      = 64 * 1024 // KiB
	argon2Parallelism = 4
)

// GenerateMasterKey fills a fresh secure buffer of the given size with
// bytes from the OS CSPRNG. Size must be in [1, MaxMasterKeySize].
func GenerateMasterKey(size int) (*SecureBuffer, error) {
	if err := validateSizeRange(size, 1, MaxMasterKeySize, "key size"); err != nil {
		return nil, err
	}
	return randomBuffer(size, "master key")
}

// GenerateSalt fills a fresh secure buffer of the given size with bytes
// from the OS CSPRNG. Size must be in [1, MaxSaltSize].
func GenerateSalt(size int) (*SecureBuffer, error) {
	if err := validateSizeRange(size, 1, MaxSaltSize, "salt size"); err != nil {
		return nil, err
	}
	return randomBuffer(size, "salt")
}

func randomBuffer(size int, what string) (*SecureBuffer, error) {
	buf, err := NewSecureBuffer(size)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, buf.Bytes()); err != nil {
		buf.Destroy()
		return nil, errCrypto("failed to generate random %s: %v", what, err)
	}
	return buf, nil
}

// DeriveKey stretches a password into a key of keyLen bytes using the
// selected algorithm and iteration count. Pass 0 iterations for the
// default. The password and salt buffers are read, never modified.
func DeriveKey(password, salt *SecureBuffer, keyLen int, algorithm KeyDerivation, iterations int) (*SecureBuffer, error) {
	if err := validateNonEmpty(password, "password"); err != nil {
		return nil, err
	}
	if err := validateNonEmpty(salt, "salt"); err != nil {
		return nil, err
	}
	if keyLen <= 0 {
		return nil, errInvalidArgument("derived key length must be greater than zero")
	}
	if iterations < 0 {
		return nil, errInvalidArgument("iterations cannot be negative")
	}
	if iterations == 0 {
		iterations = DefaultIterations
		if algorithm == Argon2id {
			iterations = 3 // Argon2id default time cost (passes)
		}
	}

	out, err := NewSecureBuffer(keyLen)
	if err != nil {
		return nil, err
	}

	var derived []byte
	switch algorithm {
	case PBKDF2SHA256, PBKDF2SHA512:
		var hashFunc func() hash.Hash
		if algorithm == PBKDF2SHA256 {
			hashFunc = sha256.New
		} else {
			hashFunc = sha512.New
		}
		derived = pbkdf2.Key(password.Bytes(), salt.Bytes(), iterations, keyLen, hashFunc)
	case Argon2id:
		derived = argon2.IDKey(password.Bytes(), salt.Bytes(),
			uint32(iterations), argon2Memory, argon2Parallelism, uint32(keyLen))
	default:
		out.Destroy()
		return nil, errInvalidArgument("unsupported key derivation algorithm: %d", algorithm)
	}
	if len(derived) != keyLen {
		out.Destroy()
		memguard.WipeBytes(derived)
		return nil, errCrypto("key derivation failed (%s)", algorithm)
	}

	copy(out.Bytes(), derived)
	memguard.WipeBytes(derived)
	return out, nil
}

// VerifyPassword derives a key from password and salt with parameters
// identical to those used for expected, and compares in constant time.
// The locally derived key is wiped before returning. Returns (true, nil)
// on match, (false, nil) on mismatch.
func VerifyPassword(password, salt, expected *SecureBuffer, keyLen int, algorithm KeyDerivation, iterations int) (bool, error) {
	if err := validateNonEmpty(password, "password"); err != nil {
		return false, err
	}
	if err := validateNonEmpty(salt, "salt"); err != nil {
		return false, err
	}
	if err := validateSizeRange(keyLen, 1, MaxDerivedKeySize, "derived key length"); err != nil {
		return false, err
	}
	if err := validateSecureBuffer(expected, "expected key", keyLen); err != nil {
		return false, err
	}

	derived, err := DeriveKey(password, salt, keyLen, algorithm, iterations)
	if err != nil {
		return false, err
	}
	defer derived.Destroy()

	return subtle.ConstantTimeCompare(derived.Bytes(), expected.Bytes()) == 1, nil
}
