// Package neonfs provides the encrypted, block-addressed storage core
// for a virtual filesystem: authenticated encryption over AES-256-GCM, a
// bounded pool of cipher contexts, and a file-backed fixed-size block
// store, all built on a secure-memory discipline.
//
// # Overview
//
// Three subsystems cooperate to move confidential bytes through a single
// backing file:
//
//   - AESProvider performs one-shot encrypt/decrypt with fresh 96-bit
//     nonces and 128-bit authentication tags, drawing cipher state from a
//     ContextPool that bounds concurrency.
//   - BlockStorage exposes a file on any absfs.FileSystem as an indexed
//     array of equal-sized blocks under a locking discipline that rules
//     out torn reads and writes.
//   - SecureBuffer keeps every key, password, salt, and plaintext in
//     page-locked memory that is wiped on release, charged against a
//     process-wide secure heap that fails closed when uninitialized.
//
// The block layer is cipher-agnostic: it stores opaque bytes, and the
// nonce and tag for each encrypted block belong to an external metadata
// collaborator (see MetadataProvider).
//
// # Basic Usage
//
//	if err := neonfs.InitializeSecureHeap(0, 0); err != nil {
//		panic(err)
//	}
//
//	key, err := neonfs.GenerateMasterKey(32)
//	if err != nil {
//		panic(err)
//	}
//
//	provider, err := neonfs.NewAESProvider(key, 4)
//	if err != nil {
//		panic(err)
//	}
//	defer provider.Close()
//
//	plain, _ := neonfs.NewSecureBufferFromBytes([]byte("secret"))
//	nonce, _ := neonfs.NewSecureBuffer(0)
//	tag, _ := neonfs.NewSecureBuffer(0)
//
//	cipher, err := provider.Encrypt(plain, nonce, tag)
//	// cipher.Len() == 6; nonce and tag are filled in.
//
// # Security Considerations
//
// Nonces are generated from the OS CSPRNG per encrypt call; GCM requires
// them unique per key, so supply your own nonce only when you can
// guarantee uniqueness (deterministic tests). Decrypt reports any
// tampering of ciphertext, nonce, or tag as an authentication failure
// and returns no plaintext. Password verification compares derived keys
// in constant time.
//
// There is no crash-consistency protocol beyond Flush: a crash mid-write
// can leave a block indeterminate, which the stored tag surfaces as an
// authentication failure on the next read.
package neonfs
