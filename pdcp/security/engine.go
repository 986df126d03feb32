package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

// ErrMACMismatch is returned by VerifyIntegrity when the computed
// MAC-I does not match the one carried on the PDU.
var ErrMACMismatch = errors.New("security: mac-i mismatch")

// Provider is the crypto engine facade PDCP's TX/RX halves call into. Every
// method is a pure function of its arguments, so a single Provider is safe
// to share across the crypto worker pool.
type Provider interface {
	// Integrity computes the 4-byte MAC-I over msg under key, bound to
	// count/bearer/dir.
	Integrity(algo IntegrityAlgorithm, key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte) [4]byte

	// Cipher returns data XORed with the algo's keystream for
	// count/bearer/dir/key. Ciphering is its own inverse: calling Cipher a
	// second time with identical arguments recovers the original data.
	Cipher(algo CipheringAlgorithm, key [16]byte, count uint32, bearer uint8, dir Direction, data []byte) ([]byte, error)
}

// DefaultProvider implements Provider with NIA0-3/NEA0-3 built from the
// stdlib AES block cipher and golang.org/x/crypto's ChaCha20 family.
type DefaultProvider struct{}

// NewDefaultProvider returns the standard crypto engine.
func NewDefaultProvider() *DefaultProvider { return &DefaultProvider{} }

func (DefaultProvider) Integrity(algo IntegrityAlgorithm, key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte) [4]byte {
	switch algo {
	case NIA0:
		return [4]byte{}
	case NIA1:
		return aesChainedMAC(key, count, bearer, dir, msg)
	case NIA2:
		return sha3MAC(key, count, bearer, dir, msg)
	case NIA3:
		return chachaPolyMAC(key, count, bearer, dir, msg)
	default:
		return [4]byte{}
	}
}

func (DefaultProvider) Cipher(algo CipheringAlgorithm, key [16]byte, count uint32, bearer uint8, dir Direction, data []byte) ([]byte, error) {
	switch algo {
	case NEA0:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case NEA1:
		return aesCTRXOR(key, count, bearer, dir, data)
	case NEA2:
		return chacha20XOR(expandKey32(key), count, bearer, dir, data)
	case NEA3:
		combined, err := aesCTRXOR(key, count, bearer, dir, data)
		if err != nil {
			return nil, err
		}
		return chacha20XOR(expandKey32(key), count, bearer, dir, combined)
	default:
		return nil, fmt.Errorf("security: unknown ciphering algorithm %d", algo)
	}
}

// VerifyIntegrity recomputes the MAC-I for msg and reports ErrMACMismatch on
// a mismatch. NIA0 always verifies (TS 38.323 treats null integrity as
// always-pass).
func VerifyIntegrity(p Provider, algo IntegrityAlgorithm, key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte, macI [4]byte) error {
	if algo == NIA0 {
		return nil
	}
	got := p.Integrity(algo, key, count, bearer, dir, msg)
	if got != macI {
		return ErrMACMismatch
	}
	return nil
}

// inputBlock packs the (count, bearer, dir) crypto inputs the same way
// across all four algorithm families, mirroring how TS 33.501 folds COUNT,
// BEARER and DIRECTION into every NIA/NEA's input block.
func inputBlock(count uint32, bearer uint8, dir Direction) [6]byte {
	var b [6]byte
	binary.BigEndian.PutUint32(b[0:4], count)
	b[4] = bearer
	b[5] = byte(dir)
	return b
}

func expandKey32(key [16]byte) [32]byte {
	return sha3.Sum256(key[:])
}

func deriveNonce12(count uint32, bearer uint8, dir Direction) [12]byte {
	var n [12]byte
	ib := inputBlock(count, bearer, dir)
	copy(n[:6], ib[:])
	return n
}

func deriveIV16(count uint32, bearer uint8, dir Direction) [16]byte {
	var iv [16]byte
	ib := inputBlock(count, bearer, dir)
	copy(iv[:6], ib[:])
	return iv
}

func aesCTRXOR(key [16]byte, count uint32, bearer uint8, dir Direction, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("security: aes-ctr key schedule: %w", err)
	}
	iv := deriveIV16(count, bearer, dir)
	stream := cipher.NewCTR(block, iv[:])
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

func chacha20XOR(key32 [32]byte, count uint32, bearer uint8, dir Direction, data []byte) ([]byte, error) {
	nonce := deriveNonce12(count, bearer, dir)
	c, err := chacha20.NewUnauthenticatedCipher(key32[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("security: chacha20 key schedule: %w", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesChainedMAC is a CBC-MAC-style construction over AES-128: msg is
// zero-padded to a block boundary and chained with an IV derived from
// count/bearer/dir, and the first 4 bytes of the final block form MAC-I.
func aesChainedMAC(key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte) [4]byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [4]byte{}
	}
	iv := deriveIV16(count, bearer, dir)
	prev := iv
	padded := padToBlock(msg, aes.BlockSize)
	cur := make([]byte, aes.BlockSize)
	for off := 0; off < len(padded); off += aes.BlockSize {
		chunk := padded[off : off+aes.BlockSize]
		for i := range cur {
			cur[i] = chunk[i] ^ prev[i]
		}
		block.Encrypt(cur, cur)
		copy(prev[:], cur)
	}
	var mac [4]byte
	copy(mac[:], cur[:4])
	return mac
}

func padToBlock(msg []byte, blockSize int) []byte {
	if len(msg) == 0 {
		return make([]byte, blockSize)
	}
	rem := len(msg) % blockSize
	if rem == 0 {
		return msg
	}
	out := make([]byte, len(msg)+(blockSize-rem))
	copy(out, msg)
	return out
}

func sha3MAC(key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte) [4]byte {
	h := sha3.New256()
	h.Write(key[:])
	ib := inputBlock(count, bearer, dir)
	h.Write(ib[:])
	h.Write(msg)
	sum := h.Sum(nil)
	var mac [4]byte
	copy(mac[:], sum[:4])
	return mac
}

// chachaPolyMAC derives an authentication tag via ChaCha20-Poly1305's AEAD
// construction used in auth-only mode: Seal on an empty plaintext with msg
// as associated data yields exactly the 16-byte Poly1305 tag, truncated to
// MAC-I's 4 bytes.
func chachaPolyMAC(key [16]byte, count uint32, bearer uint8, dir Direction, msg []byte) [4]byte {
	key32 := expandKey32(key)
	aead, err := chacha20poly1305.New(key32[:])
	if err != nil {
		return [4]byte{}
	}
	nonce := deriveNonce12(count, bearer, dir)
	tag := aead.Seal(nil, nonce[:], nil, msg)
	var mac [4]byte
	copy(mac[:], tag[:4])
	return mac
}
