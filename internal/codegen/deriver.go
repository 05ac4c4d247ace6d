// Package codegen derives access codes from a (VIN, number) pair.
//
// A code is a pure function of its inputs: the key "VIN_NUMBER" (upper case)
// is hashed, the digest is read as a big-endian unsigned integer and reduced
// modulo 10^length, then left-padded with zeros. Anyone holding the same
// digest setting can re-derive a code without reading the code store.
package codegen

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Supported digest names.
const (
	DigestSHA256  = "sha256"
	DigestSHA3    = "sha3-256"
	DigestBLAKE2b = "blake2b-256"
)

// DefaultLength is the issued code length when none is configured.
const DefaultLength = 6

// MaxLength keeps 10^length comfortably below the 256-bit digest range.
const MaxLength = 18

var (
	ErrUnsupportedDigest = errors.New("codegen: unsupported digest")
	ErrInvalidLength     = errors.New("codegen: invalid code length")
)

// Deriver derives codes of a fixed length with a fixed digest.
// The zero value derives 6-digit SHA-256 codes.
type Deriver struct {
	Length int
	Digest string
}

// NewDeriver validates length and digest. A zero length selects
// DefaultLength and an empty digest selects SHA-256.
func NewDeriver(length int, digest string) (Deriver, error) {
	if length == 0 {
		length = DefaultLength
	}
	if length < 1 || length > MaxLength {
		return Deriver{}, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidLength, length, MaxLength)
	}
	if !ValidDigest(digest) {
		return Deriver{}, fmt.Errorf("%w: %q", ErrUnsupportedDigest, digest)
	}
	return Deriver{Length: length, Digest: digest}, nil
}

// Derive returns the code for (vin, number). A Deriver built by hand with a
// digest NewDeriver would reject yields an error instead of a code.
func (d Deriver) Derive(vin, number string) (string, error) {
	length := d.Length
	if length == 0 {
		length = DefaultLength
	}
	if length < 1 || length > MaxLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	h, err := newHash(d.Digest)
	if err != nil {
		return "", err
	}
	return derive(h, vin, number, length), nil
}

// Derive returns the SHA-256 based code of the given length for (vin, number).
// A non-positive length selects DefaultLength.
func Derive(vin, number string, length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	return derive(sha256.New(), vin, number, length)
}

// Key returns the normalized derivation key for (vin, number).
func Key(vin, number string) string {
	return strings.ToUpper(vin + "_" + number)
}

// ValidDigest reports whether name is a supported digest.
func ValidDigest(name string) bool {
	_, err := newHash(name)
	return err == nil
}

func newHash(name string) (hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DigestSHA256, "":
		return sha256.New(), nil
	case DigestSHA3:
		return sha3.New256(), nil
	case DigestBLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDigest, name)
	}
}

func derive(h hash.Hash, vin, number string, length int) string {
	h.Write([]byte(Key(vin, number)))
	n := new(big.Int).SetBytes(h.Sum(nil))
	mod := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	digits := n.Mod(n, mod).Text(10)
	if pad := length - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return digits
}
