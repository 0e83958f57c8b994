package neonfs

// CipherSuite selects the AEAD algorithm used by cipher contexts and
// encryption providers.
type CipherSuite uint8

const (
	// SuiteAuto selects the best available suite (currently AES-256-GCM).
	SuiteAuto CipherSuite = iota
	// SuiteAES256GCM uses AES-256 in Galois/Counter Mode.
	SuiteAES256GCM
	// SuiteChaCha20Poly1305 uses the ChaCha20 stream cipher with the
	// Poly1305 authenticator.
	SuiteChaCha20Poly1305
)

// String returns the string representation of the cipher suite.
func (s CipherSuite) String() string {
	switch s {
	case SuiteAuto:
		return "auto"
	case SuiteAES256GCM:
		return "aes-256-gcm"
	case SuiteChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// resolve maps SuiteAuto to a concrete suite.
func (s CipherSuite) resolve() CipherSuite {
	if s == SuiteAuto {
		return SuiteAES256GCM
	}
	return s
}

const (
	// MasterKeySize is the key size for AES-256 and ChaCha20 (32 bytes).
	MasterKeySize = 32
	// NonceSize is the AEAD nonce size (96 bits).
	NonceSize = 12
	// TagSize is the AEAD authentication tag size (128 bits).
	TagSize = 16
)

// BlockStorageConfig describes the geometry of a block storage volume.
type BlockStorageConfig struct {
	// BlockSize is the size of each block in bytes. Must be > 0.
	BlockSize uint64
	// TotalSize is the total volume size in bytes. Must be a positive
	// exact multiple of BlockSize.
	TotalSize uint64
}

// Validate checks the geometry.
func (c BlockStorageConfig) Validate() error {
	if c.BlockSize == 0 {
		return errInvalidArgument("block size must be greater than zero")
	}
	if c.TotalSize == 0 {
		return errInvalidArgument("total size must be greater than zero")
	}
	if c.TotalSize%c.BlockSize != 0 {
		return errInvalidArgument("total size %d is not a multiple of block size %d",
			c.TotalSize, c.BlockSize)
	}
	return nil
}

// BlockCount returns the number of blocks the geometry describes.
func (c BlockStorageConfig) BlockCount() uint64 {
	if c.BlockSize == 0 {
		return 0
	}
	return c.TotalSize / c.BlockSize
}

// EncryptionProvider is the capability set for one-shot authenticated
// encryption. Implementations must be safe for concurrent use.
type EncryptionProvider interface {
	// Encrypt encrypts plain, writing a fresh nonce into nonce (or using
	// its contents when pre-sized to IVSize bytes) and the
	// authentication tag into tag. The ciphertext has the same length as
	// the plaintext.
	Encrypt(plain *SecureBuffer, nonce, tag *SecureBuffer) (*SecureBuffer, error)

	// Decrypt authenticates and decrypts cipher with the given nonce and
	// tag. Tampering of any of the three surfaces as an
	// authentication-failure error and no plaintext.
	Decrypt(cipher *SecureBuffer, nonce, tag *SecureBuffer) (*SecureBuffer, error)

	// IVSize returns the nonce size in bytes.
	IVSize() int

	// TagSize returns the authentication tag size in bytes.
	TagSize() int
}

// StorageProvider is the capability set for fixed-size block I/O.
// Implementations must be safe for concurrent use; the block layer moves
// opaque bytes and is cipher-agnostic.
type StorageProvider interface {
	// ReadBlock returns the raw contents of the block, always exactly
	// BlockSize bytes.
	ReadBlock(id uint64) ([]byte, error)

	// WriteBlock writes data into the block, zero-padding to BlockSize.
	// Data longer than BlockSize is rejected.
	WriteBlock(id uint64, data []byte) error

	// BlockCount returns the number of blocks in the volume.
	BlockCount() uint64

	// BlockSize returns the size of each block in bytes.
	BlockSize() uint64
}

// BlockInfo associates one block of a logical unit with the nonce and tag
// produced when its contents were encrypted.
type BlockInfo struct {
	BlockID uint64
	Offset  uint64
	Nonce   []byte
	Tag     []byte
}

// Metadata describes a file or directory as the metadata collaborator
// stores it. The block layer only consumes this contract; integrity of
// the records is the collaborator's concern.
type Metadata struct {
	FileID      uint64
	Filename    string
	Size        uint64
	Created     uint64
	Modified    uint64
	Permissions uint32
	IsDirectory bool
	ParentID    uint64
	Blocks      []BlockInfo
}

// MetadataProvider is the external metadata collaborator contract. It is
// consumed by higher layers to map logical units onto block ids, nonces,
// and tags; no implementation lives in this module.
type MetadataProvider interface {
	Initialize() error
	Shutdown() error

	Upsert(meta Metadata) error
	Get(fileID uint64) (Metadata, error)
	Delete(fileID uint64) error
	ListIDs() ([]uint64, error)
	BatchGet(ids []uint64) ([]Metadata, error)

	Children(parentID uint64) ([]Metadata, error)
	IsDirectoryEmpty(directoryID uint64) (bool, error)
	Move(fileID, newParentID uint64) error
	CreateDirectory(name string, parentID uint64, permissions uint32) (uint64, error)
	CreateFile(name string, parentID uint64, permissions uint32) (uint64, error)
	Rename(fileID uint64, newName string) error
}
