package tss

import (
	"crypto/sha256"
	"crypto/sha512"
)

// SchnorrProof is a non-interactive proof of knowledge of the discrete log
// of a public point. Ceremony participants attach one to their nonce
// reveal so a replayed or substituted nonce point is caught before any
// partial signature is produced.
type SchnorrProof struct {
	Challenge Scalar
	Response  Scalar
}

// NewSchnorrProof proves knowledge of secret for publicPoint = g^secret.
func NewSchnorrProof(curve Curve, rand SecureRandomSource, secret Scalar, publicPoint Point) (*SchnorrProof, error) {
	nonceBytes, err := rand.GenerateRandomBytes(64)
	if err != nil {
		return nil, err
	}
	defer zeroize(nonceBytes)
	nonce, err := curve.ScalarFromUniformBytes(nonceBytes)
	if err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}
	defer nonce.Zeroize()

	commitment := curve.BasePoint().Mul(nonce)
	challenge, err := schnorrChallenge(curve, publicPoint, commitment)
	if err != nil {
		return nil, err
	}

	// s = r + c*x
	response := nonce.Add(challenge.Mul(secret))
	return &SchnorrProof{Challenge: challenge, Response: response}, nil
}

// Verify checks the proof against the public point.
func (sp *SchnorrProof) Verify(curve Curve, publicPoint Point) bool {
	if sp == nil || sp.Challenge == nil || sp.Response == nil {
		return false
	}
	// R' = g^s - c*X
	commitment := curve.BasePoint().Mul(sp.Response).Sub(publicPoint.Mul(sp.Challenge))
	expected, err := schnorrChallenge(curve, publicPoint, commitment)
	if err != nil {
		return false
	}
	return sp.Challenge.Equal(expected)
}

// schnorrChallenge computes the Fiat-Shamir challenge. SHA-512 for Ed25519,
// SHA-256 elsewhere, with a fixed domain separator.
func schnorrChallenge(curve Curve, publicPoint, commitment Point) (Scalar, error) {
	var digest []byte
	if curve.Name() == string(CurveEd25519) {
		h := sha512.New()
		h.Write([]byte("TSS_SCHNORR_POK"))
		h.Write(publicPoint.CompressedBytes())
		h.Write(commitment.CompressedBytes())
		digest = h.Sum(nil)
	} else {
		h := sha256.New()
		h.Write([]byte("TSS_SCHNORR_POK"))
		h.Write(publicPoint.CompressedBytes())
		h.Write(commitment.CompressedBytes())
		digest = h.Sum(nil)
	}
	scalar, err := curve.ScalarFromUniformBytes(digest)
	if err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}
	return scalar, nil
}
