package neonfs

import (
	"crypto/rand"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultPoolSize is the default number of pooled cipher contexts per
// provider.
const DefaultPoolSize = 4

// AESProvider performs one-shot authenticated encryption with a single
// master key, drawing cipher contexts from an internal pool. The key is
// moved in at construction, read-only afterwards, and never exposed;
// the provider is safe to share across goroutines, with concurrency
// bounded by the pool size.
type AESProvider struct {
	key   *SecureBuffer
	pool  *ContextPool
	suite CipherSuite
}

var _ EncryptionProvider = (*AESProvider)(nil)

// NewAESProvider creates a provider that owns masterKey. The key must be
// exactly MasterKeySize bytes; on any construction failure ownership
// stays with the caller. poolSize ≤ 0 selects DefaultPoolSize.
func NewAESProvider(masterKey *SecureBuffer, poolSize int) (*AESProvider, error) {
	return NewProviderWithSuite(masterKey, poolSize, SuiteAES256GCM)
}

// NewProviderWithSuite is NewAESProvider with an explicit cipher suite.
func NewProviderWithSuite(masterKey *SecureBuffer, poolSize int, suite CipherSuite) (*AESProvider, error) {
	if err := validateSecureBuffer(masterKey, "master key", MasterKeySize); err != nil {
		return nil, err
	}
	switch suite.resolve() {
	case SuiteAES256GCM, SuiteChaCha20Poly1305:
	default:
		return nil, errInvalidArgument("unsupported cipher suite: %d", suite)
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	pool, err := NewContextPool(poolSize)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"suite":     suite.resolve().String(),
		"pool_size": poolSize,
	}).Debug("encryption provider created")
	return &AESProvider{key: masterKey, pool: pool, suite: suite.resolve()}, nil
}

// IVSize returns the nonce size in bytes.
func (p *AESProvider) IVSize() int { return NonceSize }

// TagSize returns the authentication tag size in bytes.
func (p *AESProvider) TagSize() int { return TagSize }

// Suite returns the provider's cipher suite.
func (p *AESProvider) Suite() CipherSuite { return p.suite }

// Pool exposes the provider's context pool, mainly for observability.
func (p *AESProvider) Pool() *ContextPool { return p.pool }

// Close destroys the master key. The provider is unusable afterwards.
func (p *AESProvider) Close() {
	p.key.Destroy()
}

// Encrypt encrypts plain under the master key. When nonce is empty it is
// resized to IVSize bytes and filled from the OS CSPRNG; a caller-filled
// nonce must be exactly IVSize bytes and the caller then owns the
// uniqueness guarantee. tag is resized to TagSize bytes and overwritten.
// The returned ciphertext has exactly the plaintext's length.
func (p *AESProvider) Encrypt(plain *SecureBuffer, nonce, tag *SecureBuffer) (*SecureBuffer, error) {
	if err := validateSecureBuffer(p.key, "master key", MasterKeySize); err != nil {
		return nil, err
	}
	if err := validateSecureBuffer(plain, "plaintext", 0); err != nil {
		return nil, err
	}
	if nonce == nil || tag == nil {
		return nil, errInvalidArgument("nonce and tag buffers cannot be nil")
	}

	if nonce.Len() == 0 {
		if err := nonce.Resize(NonceSize); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(rand.Reader, nonce.Bytes()); err != nil {
			return nil, errCrypto("failed to generate nonce: %v", err)
		}
	} else if nonce.Len() != NonceSize {
		return nil, errInvalidArgument("nonce must be %d bytes, got %d", NonceSize, nonce.Len())
	}

	if err := tag.Resize(TagSize); err != nil {
		return nil, err
	}
	if err := tag.Wipe(); err != nil {
		return nil, err
	}

	out, err := NewSecureBuffer(plain.Len())
	if err != nil {
		return nil, err
	}

	err = p.pool.With(func(ctx *CipherContext) error {
		if err := ctx.Init(p.suite, p.key.Bytes(), nonce.Bytes(), true); err != nil {
			return err
		}
		ciphertext, authTag, err := ctx.Seal(plain.Bytes())
		if err != nil {
			return err
		}
		copy(out.Bytes(), ciphertext)
		copy(tag.Bytes(), authTag)
		return nil
	})
	if err != nil {
		out.Destroy()
		return nil, err
	}
	return out, nil
}

// Decrypt authenticates and decrypts ciphertext. The nonce must be
// IVSize bytes, the tag TagSize bytes, and the ciphertext non-empty.
// Any tampering of ciphertext, nonce, or tag yields an
// authentication-failure error and no plaintext.
func (p *AESProvider) Decrypt(ciphertext *SecureBuffer, nonce, tag *SecureBuffer) (*SecureBuffer, error) {
	if err := validateSecureBuffer(p.key, "master key", MasterKeySize); err != nil {
		return nil, err
	}
	if err := validateNonEmpty(ciphertext, "ciphertext"); err != nil {
		return nil, err
	}
	if err := validateSecureBuffer(nonce, "nonce", NonceSize); err != nil {
		return nil, err
	}
	if err := validateSecureBuffer(tag, "tag", TagSize); err != nil {
		return nil, err
	}

	var out *SecureBuffer
	err := p.pool.With(func(ctx *CipherContext) error {
		if err := ctx.Init(p.suite, p.key.Bytes(), nonce.Bytes(), false); err != nil {
			return err
		}
		plaintext, err := ctx.Open(ciphertext.Bytes(), tag.Bytes())
		if err != nil {
			return err
		}
		buf, err := NewSecureBufferFromBytes(plaintext)
		if err != nil {
			return err
		}
		out = buf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
