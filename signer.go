package tss

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// secpOrderField is the field of the secp256k1 group order, shared by every
// signature value in the package.
var secpOrderField = mustField(btcec.S256().N)

// secpHalfOrder = floor(N / 2); s above this is malleable high-S form.
var secpHalfOrder = new(big.Int).Rsh(new(big.Int).Set(btcec.S256().N), 1)

func mustField(modulus *big.Int) *Field {
	field, err := NewField(modulus)
	if err != nil {
		panic(err)
	}
	return field
}

// ECDSASignature is an ECDSA signature over secp256k1. S is always kept in
// low-S form before the signature is considered valid for output.
type ECDSASignature struct {
	R *FieldElement
	S *FieldElement
}

// Normalize returns the signature with s replaced by order-s when s is in
// the upper half of the group order. Both encodings verify; consensus rules
// and Ethereum require the lower one.
func (sig *ECDSASignature) Normalize() *ECDSASignature {
	if sig.S.BigInt().Cmp(secpHalfOrder) <= 0 {
		return sig
	}
	return &ECDSASignature{R: sig.R, S: sig.S.Negate()}
}

// IsLowS reports whether s <= order/2.
func (sig *ECDSASignature) IsLowS() bool {
	return sig.S.BigInt().Cmp(secpHalfOrder) <= 0
}

// SerializeDER encodes the signature in DER form for Bitcoin script
// insertion (at most 72 bytes).
func (sig *ECDSASignature) SerializeDER() []byte {
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig.R.Bytes())
	s.SetByteSlice(sig.S.Bytes())
	return ecdsa.NewSignature(&r, &s).Serialize()
}

// ParseDERSignature decodes a DER signature.
func ParseDERSignature(der []byte) (*ECDSASignature, error) {
	parsed, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return nil, ErrInvalidSignature.WithCause(err)
	}
	r := parsed.R()
	s := parsed.S()
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	return &ECDSASignature{
		R: secpOrderField.ElementFromBytes(rBytes[:]),
		S: secpOrderField.ElementFromBytes(sBytes[:]),
	}, nil
}

// SignDigest signs a 32-byte digest with the secp256k1 private key. The
// nonce is derived deterministically (RFC 6979) from the key and digest, so
// signing the same pair twice yields the identical signature and nonce
// reuse across distinct messages cannot happen by accident. The result is
// low-S normalized.
func SignDigest(privateKey, digest []byte) (*ECDSASignature, error) {
	if len(digest) != 32 {
		return nil, ErrInvalidSignature.WithDetails("digest must be 32 bytes, got %d", len(digest))
	}
	curve := NewSecp256k1Curve()
	if err := curve.ValidateScalar(privateKey); err != nil {
		return nil, ErrInvalidPrivateKey.WithCause(err)
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	defer priv.Key.Zero()

	signature := ecdsa.Sign(priv, digest)
	r := signature.R()
	s := signature.S()
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	sig := &ECDSASignature{
		R: secpOrderField.ElementFromBytes(rBytes[:]),
		S: secpOrderField.ElementFromBytes(sBytes[:]),
	}
	return sig.Normalize(), nil
}

// SignDigestCompact signs like SignDigest but also returns the recovery id
// in [0, 3] so the public key can be recovered from the signature alone.
func SignDigestCompact(privateKey, digest []byte) (*ECDSASignature, byte, error) {
	if len(digest) != 32 {
		return nil, 0, ErrInvalidSignature.WithDetails("digest must be 32 bytes, got %d", len(digest))
	}
	curve := NewSecp256k1Curve()
	if err := curve.ValidateScalar(privateKey); err != nil {
		return nil, 0, ErrInvalidPrivateKey.WithCause(err)
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	defer priv.Key.Zero()

	compact := ecdsa.SignCompact(priv, digest, false)
	recoveryID := compact[0] - 27
	sig := &ECDSASignature{
		R: secpOrderField.ElementFromBytes(compact[1:33]),
		S: secpOrderField.ElementFromBytes(compact[33:65]),
	}
	return sig, recoveryID, nil
}

// VerifyDigest checks the signature over the digest against a secp256k1
// public key. r and s must both be in [1, order); any failure, including a
// malformed key or point, is reported uniformly as false.
func VerifyDigest(publicKey, digest []byte, sig *ECDSASignature) bool {
	if sig == nil || sig.R == nil || sig.S == nil || len(digest) != 32 {
		return false
	}
	if sig.R.IsZero() || sig.S.IsZero() {
		return false
	}
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig.R.Bytes())
	s.SetByteSlice(sig.S.Bytes())
	return ecdsa.NewSignature(&r, &s).Verify(digest, pub)
}

// RecoverPublicKey recovers the compressed signing public key from a
// signature and its recovery id.
func RecoverPublicKey(digest []byte, sig *ECDSASignature, recoveryID byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, ErrInvalidSignature.WithDetails("digest must be 32 bytes")
	}
	if recoveryID > 3 {
		return nil, ErrInvalidSignature.WithDetails("recovery id %d out of range", recoveryID)
	}
	compact := make([]byte, 65)
	compact[0] = 27 + recoveryID
	copy(compact[1:33], sig.R.Bytes())
	copy(compact[33:65], sig.S.Bytes())
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, ErrInvalidSignature.WithCause(err)
	}
	return pub.SerializeCompressed(), nil
}
