// Package checksum implements the iPod's two device-bound database
// signatures: HASH58 (HMAC-SHA1, Nano 3G/4G) and HASH72 (AES-CBC based,
// Classic and Nano 5G). Both are computed over the whole iTunesDB buffer
// with specific root-header fields zeroed first.
package checksum

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // iPod firmware mandates SHA-1 for this signature scheme.
	"errors"
	"fmt"
)

// Fixed byte offsets within the iTunesDB root header, per spec §4.4.
const (
	OffsetDatabaseID = 0x18
	OffsetHash58     = 0x58
	OffsetHash72     = 0x72
	OffsetUnk0x32    = 0x32

	LenDatabaseID = 8
	LenHash58     = 20
	LenHash72     = 46
)

// ErrHashKeyUnavailable is returned when HASH72 is required but no
// reference (IV, nonce) pair has ever been captured for this device.
var ErrHashKeyUnavailable = errors.New("checksum: no reference database captured for this device; first sync a clean database with iTunes")

// fixedConstantKey is the well-known 16-byte AES key shared across all
// devices using the HASH72 scheme (libgpod itdb_hash72.c).
var fixedConstantKey = []byte{
	0x61, 0x8c, 0xa1, 0x0d, 0xc7, 0xf5, 0x7f, 0xd3,
	0xb4, 0x72, 0x3e, 0x08, 0x15, 0x74, 0x63, 0xd7,
}

// HashKeys holds the device-bound secrets needed to sign a database:
// the HMAC key for HASH58 (derived from the device's FireWire GUID) and
// the (IV, nonce) pair for HASH72, which can only be extracted from a
// prior iTunes-signed database on the same device.
type HashKeys struct {
	HMACKey []byte // 20 bytes, derived from device GUID
	IV      []byte // 16 bytes
	Nonce   []byte // 12 bytes
}

// zeroedForHash58 returns a copy of db with the database ID, unk_0x32,
// and the HASH58 slot zeroed. HASH72's slot is left untouched, which is
// why HASH72 must be written before HASH58: HASH58's input includes
// whatever is currently sitting in the HASH72 slot (spec §4.4).
func zeroedForHash58(db []byte) []byte {
	out := make([]byte, len(db))
	copy(out, db)
	zero(out, OffsetDatabaseID, LenDatabaseID)
	zero(out, OffsetUnk0x32, 20)
	zero(out, OffsetHash58, LenHash58)
	return out
}

// zeroedForHash72 returns a copy of db with the database ID and both
// checksum slots zeroed. unk_0x32 is left untouched (spec §4.4
// parenthetical: "for HASH72 only — unk_0x32 is not zeroed").
func zeroedForHash72(db []byte) []byte {
	out := make([]byte, len(db))
	copy(out, db)
	zero(out, OffsetDatabaseID, LenDatabaseID)
	zero(out, OffsetHash58, LenHash58)
	zero(out, OffsetHash72, LenHash72)
	return out
}

func zero(buf []byte, offset, length int) {
	if offset+length > len(buf) {
		return
	}
	for i := offset; i < offset+length; i++ {
		buf[i] = 0
	}
}

func sha1Sum(data []byte) []byte {
	h := sha1.New() //nolint:gosec
	h.Write(data)
	return h.Sum(nil)
}

// ComputeHash58 returns the 20-byte HMAC-SHA1 signature over the zeroed
// database, keyed by the device's derived HMAC key.
func ComputeHash58(db []byte, hmacKey []byte) ([]byte, error) {
	if len(hmacKey) == 0 {
		return nil, fmt.Errorf("checksum: empty HMAC key")
	}
	z := zeroedForHash58(db)
	mac := hmac.New(sha1.New, hmacKey) //nolint:gosec
	mac.Write(z)
	return mac.Sum(nil), nil
}

// ComputeHash72 returns the 46-byte AES-CBC signature
// 0x01 0x00 ∥ nonce ∥ ciphertext, where ciphertext = AES-CBC-encrypt(SHA1(zeroed_db) ∥ nonce).
func ComputeHash72(db []byte, iv, nonce []byte) ([]byte, error) {
	if len(iv) != 16 {
		return nil, fmt.Errorf("checksum: IV must be 16 bytes, got %d", len(iv))
	}
	if len(nonce) != 12 {
		return nil, fmt.Errorf("checksum: nonce must be 12 bytes, got %d", len(nonce))
	}

	z := zeroedForHash72(db)
	digest := sha1Sum(z) // 20 bytes
	plaintext := append(append([]byte{}, digest...), nonce...)
	if len(plaintext) != 32 {
		return nil, fmt.Errorf("checksum: internal plaintext length %d, want 32", len(plaintext))
	}

	block, err := aes.NewCipher(fixedConstantKey)
	if err != nil {
		return nil, fmt.Errorf("checksum: building AES cipher: %w", err)
	}
	ciphertext := make([]byte, len(plaintext))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(ciphertext, plaintext)

	sig := make([]byte, 0, LenHash72)
	sig = append(sig, 0x01, 0x00)
	sig = append(sig, nonce...)
	sig = append(sig, ciphertext...)
	if len(sig) != LenHash72 {
		return nil, fmt.Errorf("checksum: internal signature length %d, want %d", len(sig), LenHash72)
	}
	return sig, nil
}

// ExtractIVNonce recovers the (IV, nonce) pair from a valid HASH72
// signature S computed over database buffer db (before the new sync
// mutates it), per the CBC XOR-cancellation trick in spec §4.4:
// decrypting S's ciphertext block with the fixed key, using the
// database's own zeroed-SHA1 first 16 bytes as a "fake IV", yields the
// real IV directly.
func ExtractIVNonce(db []byte, signature []byte) (iv, nonce []byte, err error) {
	if len(signature) != LenHash72 {
		return nil, nil, fmt.Errorf("checksum: signature must be %d bytes, got %d", LenHash72, len(signature))
	}
	if signature[0] != 0x01 || signature[1] != 0x00 {
		return nil, nil, fmt.Errorf("checksum: unexpected signature version bytes %x %x", signature[0], signature[1])
	}
	nonce = append([]byte{}, signature[2:14]...)
	ciphertext := signature[14:46] // 32 bytes

	z := zeroedForHash72(db)
	digest := sha1Sum(z)
	fakeIV := digest[0:16]

	block, err := aes.NewCipher(fixedConstantKey)
	if err != nil {
		return nil, nil, fmt.Errorf("checksum: building AES cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, fakeIV)
	cbc.CryptBlocks(plaintext, ciphertext)

	// plaintext = SHA1(zeroed_db) ∥ nonce for the reference database;
	// the CBC XOR-unrolling over two blocks cancels the fake IV, so the
	// first-block decryption of this call directly exposes IV[0:16] in
	// the position where the real encrypt used P0 ⊕ IV — see spec §4.4.
	iv = append([]byte{}, plaintext[0:16]...)
	return iv, nonce, nil
}

// Scheme selects which checksum(s) a device expects, from the 2-byte
// hashing_scheme field at root-header offset 0x30.
type Scheme uint16

const (
	SchemeNone   Scheme = 0
	SchemeHash58 Scheme = 2 // Nano 3G/4G
	SchemeHash72 Scheme = 3 // Classic, Nano 5G
	SchemeBoth   Scheme = 1 // iPod Classic quirk: both slots populated
)

// Sign writes the required checksum(s) into db's header in place,
// following the iPod Classic ordering quirk: when both slots are
// required, HASH72 MUST be written before HASH58, because HASH58's
// input buffer has HASH72 left un-zeroed.
func Sign(db []byte, scheme Scheme, keys HashKeys) error {
	switch scheme {
	case SchemeNone:
		return nil
	case SchemeHash58:
		return signHash58(db, keys)
	case SchemeHash72:
		return signHash72(db, keys)
	case SchemeBoth:
		if err := signHash72(db, keys); err != nil {
			return err
		}
		return signHash58(db, keys)
	default:
		return fmt.Errorf("checksum: unsupported hashing scheme %d", scheme)
	}
}

func signHash58(db []byte, keys HashKeys) error {
	if len(keys.HMACKey) == 0 {
		return fmt.Errorf("%w: HASH58 requires a device HMAC key", ErrHashKeyUnavailable)
	}
	sig, err := ComputeHash58(db, keys.HMACKey)
	if err != nil {
		return err
	}
	if OffsetHash58+len(sig) > len(db) {
		return fmt.Errorf("checksum: database too small for HASH58 slot")
	}
	copy(db[OffsetHash58:OffsetHash58+LenHash58], sig)
	return nil
}

func signHash72(db []byte, keys HashKeys) error {
	if len(keys.IV) == 0 || len(keys.Nonce) == 0 {
		return fmt.Errorf("%w", ErrHashKeyUnavailable)
	}
	sig, err := ComputeHash72(db, keys.IV, keys.Nonce)
	if err != nil {
		return err
	}
	if OffsetHash72+len(sig) > len(db) {
		return fmt.Errorf("checksum: database too small for HASH72 slot")
	}
	copy(db[OffsetHash72:OffsetHash72+LenHash72], sig)
	return nil
}

// VerifyHash72 recomputes HASH72 with the supplied keys and compares it
// against the signature currently stored in db, bit for bit.
func VerifyHash72(db []byte, keys HashKeys) (bool, error) {
	stored := make([]byte, LenHash72)
	copy(stored, db[OffsetHash72:OffsetHash72+LenHash72])
	cleared := make([]byte, len(db))
	copy(cleared, db)
	sig, err := ComputeHash72(cleared, keys.IV, keys.Nonce)
	if err != nil {
		return false, err
	}
	return bytes.Equal(sig, stored), nil
}
