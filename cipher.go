package neonfs

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

// CipherContext is an owning handle to a single AEAD state. It is
// constructed empty, configured with Init, and returned to a clean state
// with Reset. A context is a single-threaded value; share concurrency
// through a ContextPool instead.
type CipherContext struct {
	suite    CipherSuite
	aead     cipher.AEAD
	nonce    []byte
	encrypt  bool
	ready    bool
	poisoned bool
}

// NewCipherContext constructs an empty context.
func NewCipherContext() *CipherContext {
	return &CipherContext{}
}

// Reset returns the context to a clean state without releasing the
// handle. Idempotent and infallible; it also clears the poisoned flag
// left by a failed Init.
func (c *CipherContext) Reset() {
	if c.nonce != nil {
		memguard.WipeBytes(c.nonce)
		c.nonce = nil
	}
	c.aead = nil
	c.ready = false
	c.poisoned = false
	c.encrypt = false
	c.suite = SuiteAuto
}

// Init configures the context for one encrypt (forEncrypt true) or
// decrypt (false) operation: it resets the state, selects the suite,
// fixes the nonce length, then installs key and nonce. Any failing step
// poisons the context; call Reset before reusing it.
func (c *CipherContext) Init(suite CipherSuite, key, nonce []byte, forEncrypt bool) error {
	if c.poisoned {
		return errInvalidState("cipher context is poisoned; reset before reuse")
	}
	c.Reset()
	c.poisoned = true // cleared on success or by Reset

	if len(key) != MasterKeySize {
		return errCrypto("key installation failed: key must be %d bytes, got %d",
			MasterKeySize, len(key))
	}
	if len(nonce) < 1 {
		return errCrypto("nonce length selection failed: nonce cannot be empty")
	}

	var aead cipher.AEAD
	switch suite.resolve() {
	case SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return errCrypto("cipher selection failed: %v", err)
		}
		aead, err = cipher.NewGCMWithNonceSize(block, len(nonce))
		if err != nil {
			return errCrypto("nonce length selection failed: %v", err)
		}
	case SuiteChaCha20Poly1305:
		if len(nonce) != chacha20poly1305.NonceSize {
			return errCrypto("nonce length selection failed: chacha20-poly1305 requires %d-byte nonces",
				chacha20poly1305.NonceSize)
		}
		a, err := chacha20poly1305.New(key)
		if err != nil {
			return errCrypto("cipher selection failed: %v", err)
		}
		aead = a
	default:
		return errCrypto("cipher selection failed: unsupported suite %d", suite)
	}

	c.suite = suite.resolve()
	c.aead = aead
	c.nonce = make([]byte, len(nonce))
	copy(c.nonce, nonce)
	c.encrypt = forEncrypt
	c.ready = true
	c.poisoned = false
	return nil
}

// Seal encrypts plaintext under the installed key and nonce, returning
// the ciphertext (same length as the plaintext) and the authentication
// tag separately.
func (c *CipherContext) Seal(plaintext []byte) (ciphertext, tag []byte, err error) {
	if !c.ready {
		return nil, nil, errInvalidState("cipher context not initialized")
	}
	if !c.encrypt {
		return nil, nil, errInvalidState("cipher context initialized for decrypt")
	}
	sealed := c.aead.Seal(nil, c.nonce, plaintext, nil)
	n := len(sealed) - c.aead.Overhead()
	return sealed[:n], sealed[n:], nil
}

// Open authenticates ciphertext against tag and decrypts it. Tag
// mismatch, or tampering of ciphertext or nonce, yields an
// authentication-failure error and no plaintext.
func (c *CipherContext) Open(ciphertext, tag []byte) ([]byte, error) {
	if !c.ready {
		return nil, errInvalidState("cipher context not initialized")
	}
	if c.encrypt {
		return nil, errInvalidState("cipher context initialized for encrypt")
	}
	if len(tag) != c.aead.Overhead() {
		return nil, errCrypto("tag installation failed: tag must be %d bytes, got %d",
			c.aead.Overhead(), len(tag))
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := c.aead.Open(nil, c.nonce, sealed, nil)
	if err != nil {
		return nil, errAuth("tag verification failed: data is corrupted or tampered")
	}
	return plaintext, nil
}

// Suite returns the suite the context was initialized with, or SuiteAuto
// when uninitialized.
func (c *CipherContext) Suite() CipherSuite { return c.suite }

// IsReady reports whether Init has succeeded since the last Reset.
func (c *CipherContext) IsReady() bool { return c.ready }

// IsPoisoned reports whether the last Init failed; a poisoned context
// must be Reset before reuse.
func (c *CipherContext) IsPoisoned() bool { return c.poisoned }
