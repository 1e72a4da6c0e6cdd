package tss

import (
	"bytes"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/rlp"
)

// EthereumTxType selects the transaction encoding.
type EthereumTxType uint8

const (
	EthereumTxLegacy     EthereumTxType = 0x00
	EthereumTxDynamicFee EthereumTxType = 0x02
)

// EthereumTransaction is an unsigned Ethereum-family transaction. To is the
// 20-byte recipient, or nil for contract creation. Legacy transactions use
// GasPrice; dynamic-fee transactions use GasTipCap/GasFeeCap.
type EthereumTransaction struct {
	Type      EthereumTxType
	ChainID   *big.Int
	Nonce     uint64
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Gas       uint64
	To        []byte
	Value     *big.Int
	Data      []byte
}

type accessTuple struct {
	Address     [20]byte
	StorageKeys [][32]byte
}

type legacySigningFields struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	Zero1    uint
	Zero2    uint
}

type legacyPre155SigningFields struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
}

type legacySignedFields struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

type dynamicFeeSigningFields struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         []byte
	Value      *big.Int
	Data       []byte
	AccessList []accessTuple
}

type dynamicFeeSignedFields struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         []byte
	Value      *big.Int
	Data       []byte
	AccessList []accessTuple
	YParity    uint8
	R          *big.Int
	S          *big.Int
}

func (tx *EthereumTransaction) validate() error {
	if tx.To != nil && len(tx.To) != 20 {
		return ErrInvalidTransaction.WithDetails("recipient must be 20 bytes, got %d", len(tx.To))
	}
	switch tx.Type {
	case EthereumTxLegacy:
		if tx.GasPrice == nil {
			return ErrInvalidTransaction.WithDetails("legacy transaction requires a gas price")
		}
	case EthereumTxDynamicFee:
		if tx.ChainID == nil {
			return ErrInvalidTransaction.WithDetails("typed transaction requires a chain id")
		}
		if tx.GasTipCap == nil || tx.GasFeeCap == nil {
			return ErrInvalidTransaction.WithDetails("dynamic-fee transaction requires tip and fee caps")
		}
	default:
		return ErrInvalidTransaction.WithDetails("unsupported transaction type %#x", uint8(tx.Type))
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// SigningHash computes the Keccak-256 digest that gets signed: the EIP-155
// encoding for legacy transactions (chain id folded into the payload) and
// the type-prefixed canonical encoding for dynamic-fee transactions.
func (tx *EthereumTransaction) SigningHash() ([]byte, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	switch tx.Type {
	case EthereumTxLegacy:
		var encoded []byte
		var err error
		if tx.ChainID != nil && tx.ChainID.Sign() > 0 {
			encoded, err = rlp.EncodeToBytes(&legacySigningFields{
				Nonce:    tx.Nonce,
				GasPrice: tx.GasPrice,
				Gas:      tx.Gas,
				To:       tx.To,
				Value:    orZero(tx.Value),
				Data:     tx.Data,
				ChainID:  tx.ChainID,
			})
		} else {
			// Pre-EIP-155 encoding omits the chain id fields entirely.
			encoded, err = rlp.EncodeToBytes(&legacyPre155SigningFields{
				Nonce:    tx.Nonce,
				GasPrice: tx.GasPrice,
				Gas:      tx.Gas,
				To:       tx.To,
				Value:    orZero(tx.Value),
				Data:     tx.Data,
			})
		}
		if err != nil {
			return nil, ErrInvalidTransaction.WithCause(err)
		}
		return Keccak256(encoded), nil
	default:
		encoded, err := rlp.EncodeToBytes(&dynamicFeeSigningFields{
			ChainID:    tx.ChainID,
			Nonce:      tx.Nonce,
			GasTipCap:  tx.GasTipCap,
			GasFeeCap:  tx.GasFeeCap,
			Gas:        tx.Gas,
			To:         tx.To,
			Value:      orZero(tx.Value),
			Data:       tx.Data,
			AccessList: []accessTuple{},
		})
		if err != nil {
			return nil, ErrInvalidTransaction.WithCause(err)
		}
		return Keccak256([]byte{byte(EthereumTxDynamicFee)}, encoded), nil
	}
}

// SignedEthereumTransaction pairs the raw signed encoding with the unsigned
// fields used as the verification context.
type SignedEthereumTransaction struct {
	Tx        *EthereumTransaction
	Raw       []byte
	Signature *ECDSASignature
	V         *big.Int // legacy v; for typed transactions the y-parity
	From      []byte   // 20-byte signer address recovered at signing time
}

// SignEthereumTransactionWithShares reconstructs the private key from a
// quorum of shares, signs the transaction and wipes the key. Chain signing
// is ECDSA, so only secp256k1 shares are accepted.
func (e *Engine) SignEthereumTransactionWithShares(tx *EthereumTransaction, shares []*KeyShare) (*SignedEthereumTransaction, error) {
	if len(shares) > 0 && shares[0].Curve != CurveSecp256k1 {
		return nil, ErrUnsupportedSigningCurve.WithDetails("shares are on curve %s", shares[0].Curve)
	}
	keyBytes, err := e.ReconstructKey(shares)
	if err != nil {
		return nil, err
	}
	defer zeroize(keyBytes)
	return SignEthereumTransaction(tx, keyBytes)
}

// SignEthereumTransaction signs the transaction with the secp256k1 private
// key, using a deterministic nonce and low-S form, and attaches the
// recovery identifier so the signer can be recovered from the signature
// alone. Legacy transactions fold the chain id into v per EIP-155.
func SignEthereumTransaction(tx *EthereumTransaction, privateKey []byte) (*SignedEthereumTransaction, error) {
	digest, err := tx.SigningHash()
	if err != nil {
		return nil, err
	}
	sig, recoveryID, err := SignDigestCompact(privateKey, digest)
	if err != nil {
		return nil, err
	}

	r := sig.R.BigInt()
	s := sig.S.BigInt()

	var raw []byte
	var v *big.Int
	switch tx.Type {
	case EthereumTxLegacy:
		if tx.ChainID != nil && tx.ChainID.Sign() > 0 {
			// v = chainId*2 + 35 + recid
			v = new(big.Int).Mul(tx.ChainID, big.NewInt(2))
			v.Add(v, big.NewInt(35+int64(recoveryID)))
		} else {
			v = big.NewInt(27 + int64(recoveryID))
		}
		raw, err = rlp.EncodeToBytes(&legacySignedFields{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			Gas:      tx.Gas,
			To:       tx.To,
			Value:    orZero(tx.Value),
			Data:     tx.Data,
			V:        v,
			R:        r,
			S:        s,
		})
	default:
		v = big.NewInt(int64(recoveryID))
		var payload []byte
		payload, err = rlp.EncodeToBytes(&dynamicFeeSignedFields{
			ChainID:    tx.ChainID,
			Nonce:      tx.Nonce,
			GasTipCap:  tx.GasTipCap,
			GasFeeCap:  tx.GasFeeCap,
			Gas:        tx.Gas,
			To:         tx.To,
			Value:      orZero(tx.Value),
			Data:       tx.Data,
			AccessList: []accessTuple{},
			YParity:    recoveryID,
			R:          r,
			S:          s,
		})
		if err == nil {
			raw = append([]byte{byte(EthereumTxDynamicFee)}, payload...)
		}
	}
	if err != nil {
		return nil, ErrInvalidTransaction.WithCause(err)
	}

	publicKey, err := RecoverPublicKey(digest, sig, recoveryID)
	if err != nil {
		return nil, err
	}
	from, err := EthereumAddressBytes(publicKey)
	if err != nil {
		return nil, err
	}

	return &SignedEthereumTransaction{
		Tx:        tx,
		Raw:       raw,
		Signature: sig,
		V:         v,
		From:      from,
	}, nil
}

// recoveryIDFromV extracts the recovery id from the stored v value.
func (stx *SignedEthereumTransaction) recoveryIDFromV() (byte, bool) {
	v := stx.V
	if v == nil {
		return 0, false
	}
	switch stx.Tx.Type {
	case EthereumTxLegacy:
		if stx.Tx.ChainID != nil && stx.Tx.ChainID.Sign() > 0 {
			rec := new(big.Int).Sub(v, new(big.Int).Mul(stx.Tx.ChainID, big.NewInt(2)))
			rec.Sub(rec, big.NewInt(35))
			if !rec.IsUint64() || rec.Uint64() > 1 {
				return 0, false
			}
			return byte(rec.Uint64()), true
		}
		rec := new(big.Int).Sub(v, big.NewInt(27))
		if !rec.IsUint64() || rec.Uint64() > 1 {
			return 0, false
		}
		return byte(rec.Uint64()), true
	default:
		if !v.IsUint64() || v.Uint64() > 1 {
			return 0, false
		}
		return byte(v.Uint64()), true
	}
}

// Verify recomputes the signing digest from the transaction fields stored
// alongside the signature, checks r and s are in range and low-S, verifies
// the ECDSA equation, and recovers the signer address for comparison
// against the expected signer. Any mismatch is a uniform false.
func (stx *SignedEthereumTransaction) Verify(expectedSigner []byte) bool {
	if stx.Signature == nil || stx.Tx == nil {
		return false
	}
	if stx.Signature.R.IsZero() || stx.Signature.S.IsZero() || !stx.Signature.IsLowS() {
		return false
	}
	digest, err := stx.Tx.SigningHash()
	if err != nil {
		return false
	}
	recoveryID, ok := stx.recoveryIDFromV()
	if !ok {
		return false
	}
	publicKey, err := RecoverPublicKey(digest, stx.Signature, recoveryID)
	if err != nil {
		return false
	}
	if !VerifyDigest(publicKey, digest, stx.Signature) {
		return false
	}
	from, err := EthereumAddressBytes(publicKey)
	if err != nil {
		return false
	}
	if !bytes.Equal(from, stx.From) {
		return false
	}
	return expectedSigner == nil || bytes.Equal(from, expectedSigner)
}

// EthereumAddressBytes derives the 20-byte address from a secp256k1 public
// key in either compressed or uncompressed form: the last 20 bytes of
// Keccak-256 over the uncompressed x||y coordinates.
func EthereumAddressBytes(publicKey []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	uncompressed := pub.SerializeUncompressed()
	digest := Keccak256(uncompressed[1:])
	return digest[12:], nil
}
