package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"
)

// KeyType is a signature scheme of an identity key.
type KeyType byte

// Key types.
const (
	KeyED25519    KeyType = 0
	KeyBLS12381   KeyType = 1
	KeyDilithium3 KeyType = 2
)

const (
	// BLSPublicKeySize is the size of a compressed BLS public key in bytes.
	BLSPublicKeySize = 48

	// BLSSignatureSize is the size of a compressed BLS signature in bytes.
	BLSSignatureSize = 96
)

var (
	// ErrUnknownKeyType is returned for key types outside the supported set.
	ErrUnknownKeyType = errors.New("unknown key type")

	// ErrInvalidKey is returned when key material does not match its type.
	ErrInvalidKey = errors.New("invalid public key")
)

// blsDST is the domain separation tag for BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// String returns the key type name.
func (t KeyType) String() string {
	switch t {
	case KeyED25519:
		return "ED25519"
	case KeyBLS12381:
		return "BLS12_381"
	case KeyDilithium3:
		return "DILITHIUM3"
	default:
		return fmt.Sprintf("KeyType(%d)", byte(t))
	}
}

// ParseKeyType maps a key type name to its value.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToUpper(s) {
	case "ED25519":
		return KeyED25519, nil
	case "BLS12_381", "BLS":
		return KeyBLS12381, nil
	case "DILITHIUM3":
		return KeyDilithium3, nil
	default:
		return 0, fmt.Errorf("%q:\n%w", s, ErrUnknownKeyType)
	}
}

// CheckPublicKey verifies that data is a well-formed key of type t.
func (t KeyType) CheckPublicKey(data []byte) error {
	switch t {
	case KeyED25519:
		if len(data) != ed25519.PublicKeySize {
			return fmt.Errorf("ed25519 key must be %d bytes, got %d:\n%w", ed25519.PublicKeySize, len(data), ErrInvalidKey)
		}
	case KeyBLS12381:
		if len(data) != BLSPublicKeySize || new(blst.P1Affine).Uncompress(data) == nil {
			return fmt.Errorf("BLS12-381:\n%w", ErrInvalidKey)
		}
	case KeyDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("dilithium3 %v:\n%w", err, ErrInvalidKey)
		}
	default:
		return ErrUnknownKeyType
	}

	return nil
}

// Verify checks signature over message with a public key of type t.
func (t KeyType) Verify(publicKey, message, signature []byte) bool {
	switch t {
	case KeyED25519:
		if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(publicKey, message, signature)

	case KeyBLS12381:
		return verifyBLS(signature, message, publicKey)

	case KeyDilithium3:
		if len(signature) != mode3.SignatureSize {
			return false
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(publicKey); err != nil {
			return false
		}
		return mode3.Verify(&pk, message, signature)

	default:
		return false
	}
}

// verifyBLS checks a min-pk BLS signature against a message and public key.
func verifyBLS(signature, message, publicKey []byte) bool {
	if len(signature) != BLSSignatureSize || len(publicKey) != BLSPublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, blsDST)
}

// Signer produces signatures for one identity key.
type Signer interface {
	KeyType() KeyType
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// ED25519Signer signs with an ed25519 key.
type ED25519Signer struct {
	key ed25519.PrivateKey // key is the private key
}

// NewED25519Signer wraps an ed25519 private key.
func NewED25519Signer(key ed25519.PrivateKey) *ED25519Signer {
	return &ED25519Signer{key: key}
}

// GenerateED25519 creates a random ed25519 signer.
func GenerateED25519() (*ED25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key:\n%w", err)
	}
	return NewED25519Signer(priv), nil
}

func (s *ED25519Signer) KeyType() KeyType  { return KeyED25519 }
func (s *ED25519Signer) PublicKey() []byte { return s.key.Public().(ed25519.PublicKey) }

// Sign signs message.
func (s *ED25519Signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}

// BLSSigner signs with a BLS12-381 key (public keys in G1, signatures in G2).
type BLSSigner struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// DeriveBLSFromED25519 derives a deterministic BLS signer bound to an ed25519 key
// via BLAKE3("docbatch-bls-keygen" || seed).
func DeriveBLSFromED25519(privKey ed25519.PrivateKey) (*BLSSigner, error) {
	h := blake3.New()
	h.Write([]byte("docbatch-bls-keygen"))
	h.Write(privKey.Seed())

	var derived [32]byte
	h.Sum(derived[:0])

	return NewBLSSignerFromSeed(derived[:])
}

// GenerateBLS creates a BLS signer from a random seed.
func GenerateBLS() (*BLSSigner, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return NewBLSSignerFromSeed(ikm[:])
}

// NewBLSSignerFromSeed creates a BLS signer from a seed of at least 32 bytes.
func NewBLSSignerFromSeed(seed []byte) (*BLSSigner, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	return &BLSSigner{secret: secret, public: new(blst.P1Affine).From(secret)}, nil
}

func (s *BLSSigner) KeyType() KeyType  { return KeyBLS12381 }
func (s *BLSSigner) PublicKey() []byte { return s.public.Compress() }

// Sign signs message.
func (s *BLSSigner) Sign(message []byte) ([]byte, error) {
	return new(blst.P2Affine).Sign(s.secret, message, blsDST).Compress(), nil
}

// Dilithium3Signer signs with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	public *mode3.PublicKey  // public is the verification key
	secret *mode3.PrivateKey // secret is the signing key
}

// GenerateDilithium3 creates a Dilithium3 signer from rnd, or crypto/rand when nil.
func GenerateDilithium3(rnd io.Reader) (*Dilithium3Signer, error) {
	if rnd == nil {
		rnd = rand.Reader
	}

	pk, sk, err := mode3.GenerateKey(rnd)
	if err != nil {
		return nil, fmt.Errorf("generate dilithium3 key:\n%w", err)
	}

	return &Dilithium3Signer{public: pk, secret: sk}, nil
}

func (s *Dilithium3Signer) KeyType() KeyType { return KeyDilithium3 }

// PublicKey returns the packed public key.
func (s *Dilithium3Signer) PublicKey() []byte {
	data, _ := s.public.MarshalBinary()
	return data
}

// Sign signs message.
func (s *Dilithium3Signer) Sign(message []byte) ([]byte, error) {
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.secret, message, sig)
	return sig, nil
}
