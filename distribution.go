package tss

import (
	"crypto/sha256"
	"io"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const eciesInfo = "TSS_SHARE_ECIES_V1"

// shareWire is the CBOR encoding of a key share.
type shareWire struct {
	Index       uint32    `cbor:"1,keyasint"`
	Value       []byte    `cbor:"2,keyasint"`
	PublicKey   []byte    `cbor:"3,keyasint"`
	Threshold   uint32    `cbor:"4,keyasint"`
	TotalShares uint32    `cbor:"5,keyasint"`
	Curve       string    `cbor:"6,keyasint"`
	KeyID       string    `cbor:"7,keyasint"`
	CreatedAt   time.Time `cbor:"8,keyasint"`
}

// MarshalShare serializes a key share to its CBOR wire form. The output
// contains the secret share value; treat it like key material.
func MarshalShare(share *KeyShare) ([]byte, error) {
	if share == nil || share.Value == nil {
		return nil, ErrInvalidShareData.WithDetails("missing share value")
	}
	wire := shareWire{
		Index:       share.Index,
		Value:       share.Value.Bytes(),
		PublicKey:   share.PublicKey,
		Threshold:   share.Threshold,
		TotalShares: share.TotalShares,
		Curve:       string(share.Curve),
		KeyID:       share.Metadata.KeyID,
		CreatedAt:   share.Metadata.CreatedAt,
	}
	defer zeroize(wire.Value)
	return cbor.Marshal(wire)
}

// UnmarshalShare parses the CBOR wire form back into a key share.
func UnmarshalShare(data []byte) (*KeyShare, error) {
	var wire shareWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, ErrInvalidShareData.WithCause(err)
	}
	curve, err := NewCurve(CurveType(wire.Curve))
	if err != nil {
		return nil, ErrInvalidShareData.WithCause(err)
	}
	field, err := ScalarField(curve)
	if err != nil {
		return nil, err
	}
	value := field.ElementFromBytes(wire.Value)
	zeroize(wire.Value)
	return &KeyShare{
		Index:       wire.Index,
		Value:       value,
		PublicKey:   wire.PublicKey,
		Threshold:   wire.Threshold,
		TotalShares: wire.TotalShares,
		Curve:       CurveType(wire.Curve),
		Metadata:    ShareMetadata{KeyID: wire.KeyID, CreatedAt: wire.CreatedAt},
	}, nil
}

// EncryptedShare is one share sealed for a single recipient: ephemeral
// public key plus authenticated ciphertext. Only the holder of the matching
// recipient private key can open it.
type EncryptedShare struct {
	Index              uint32 `cbor:"1,keyasint"`
	EphemeralPublicKey []byte `cbor:"2,keyasint"`
	Nonce              []byte `cbor:"3,keyasint"`
	Ciphertext         []byte `cbor:"4,keyasint"` // includes the Poly1305 tag
}

// eciesKey derives the symmetric key from an ECDH shared point.
func eciesKey(shared *btcec.PublicKey) ([]byte, error) {
	reader := hkdf.New(sha256.New, shared.SerializeCompressed(), nil, []byte(eciesInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}
	return key, nil
}

func ecdhPoint(scalar *btcec.ModNScalar, pub *btcec.PublicKey) *btcec.PublicKey {
	var point, result btcec.JacobianPoint
	pub.AsJacobian(&point)
	btcec.ScalarMultNonConst(scalar, &point, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

// EncryptSharesForDistribution pairs each share 1:1 with a recipient
// secp256k1 public key and seals it under ephemeral ECDH + HKDF-SHA256 +
// ChaCha20-Poly1305. Mismatched slice lengths are a precondition failure.
func (e *Engine) EncryptSharesForDistribution(shares []*KeyShare, recipientPublicKeys [][]byte) (sealed []*EncryptedShare, err error) {
	event := newAuditEvent(AuditEventShareDistribution)
	if len(shares) > 0 {
		event.KeyID = shares[0].Metadata.KeyID
		event.Curve = string(shares[0].Curve)
		event.Threshold = shares[0].Threshold
		event.ShareCount = len(shares)
	}
	defer func() { e.audit.OnAuditEvent(event.withError(err)) }()

	if len(shares) != len(recipientPublicKeys) {
		return nil, ErrInvalidShareCount.WithDetails(
			"%d shares but %d recipient keys", len(shares), len(recipientPublicKeys))
	}

	sealed = make([]*EncryptedShare, len(shares))
	for i, share := range shares {
		recipient, err := btcec.ParsePubKey(recipientPublicKeys[i])
		if err != nil {
			return nil, ErrCryptographic.WithDetails("recipient key %d is invalid", i).WithCause(err)
		}

		plaintext, err := MarshalShare(share)
		if err != nil {
			return nil, err
		}

		ephemeral, err := e.randomSecpKey()
		if err != nil {
			zeroize(plaintext)
			return nil, err
		}

		key, err := eciesKey(ecdhPoint(&ephemeral.Key, recipient))
		if err != nil {
			zeroize(plaintext)
			return nil, err
		}

		aead, err := chacha20poly1305.New(key)
		zeroize(key)
		if err != nil {
			zeroize(plaintext)
			return nil, ErrCryptographic.WithCause(err)
		}

		nonce, err := e.rand.GenerateRandomBytes(chacha20poly1305.NonceSize)
		if err != nil {
			zeroize(plaintext)
			return nil, err
		}

		ephemeralPub := ephemeral.PubKey().SerializeCompressed()
		ciphertext := aead.Seal(nil, nonce, plaintext, ephemeralPub)
		zeroize(plaintext)
		ephemeral.Key.Zero()

		sealed[i] = &EncryptedShare{
			Index:              share.Index,
			EphemeralPublicKey: ephemeralPub,
			Nonce:              nonce,
			Ciphertext:         ciphertext,
		}
	}
	return sealed, nil
}

// DecryptShare opens an encrypted share with the recipient's secp256k1
// private key.
func DecryptShare(sealed *EncryptedShare, recipientPrivateKey []byte) (*KeyShare, error) {
	if sealed == nil {
		return nil, ErrInvalidShareData.WithDetails("nil encrypted share")
	}
	priv, _ := btcec.PrivKeyFromBytes(recipientPrivateKey)
	if priv.Key.IsZero() {
		return nil, ErrInvalidPrivateKey.WithDetails("zero scalar")
	}
	defer priv.Key.Zero()

	ephemeral, err := btcec.ParsePubKey(sealed.EphemeralPublicKey)
	if err != nil {
		return nil, ErrCryptographic.WithDetails("invalid ephemeral key").WithCause(err)
	}

	key, err := eciesKey(ecdhPoint(&priv.Key, ephemeral))
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	zeroize(key)
	if err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}

	plaintext, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, sealed.EphemeralPublicKey)
	if err != nil {
		return nil, ErrCryptographic.WithDetails("share decryption failed").WithCause(err)
	}
	defer zeroize(plaintext)
	return UnmarshalShare(plaintext)
}

// randomSecpKey draws a secp256k1 private key from the engine's randomness
// source, rejection-sampling values at or above the group order.
func (e *Engine) randomSecpKey() (*btcec.PrivateKey, error) {
	for {
		buf, err := e.rand.GenerateRandomBytes(32)
		if err != nil {
			return nil, err
		}
		var scalar btcec.ModNScalar
		overflow := scalar.SetBytes((*[32]byte)(buf))
		if overflow == 0 && !scalar.IsZero() {
			priv, _ := btcec.PrivKeyFromBytes(buf)
			scalar.Zero()
			zeroize(buf)
			return priv, nil
		}
		scalar.Zero()
		zeroize(buf)
	}
}
