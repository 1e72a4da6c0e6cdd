package tss

import (
	"bytes"
	"encoding/binary"
)

// SigHashType selects which parts of a Bitcoin transaction are committed to
// by a signature.
type SigHashType uint32

const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyOneCanPay SigHashType = 0x80

	sigHashMask = 0x1f
)

// TxInput is one input of a Bitcoin transaction. PrevTxID is in wire
// (little-endian) byte order. PrevScript and Value describe the output
// being spent; BIP143 digests commit to both.
type TxInput struct {
	PrevTxID   []byte // 32 bytes, wire order
	PrevIndex  uint32
	ScriptSig  []byte
	Sequence   uint32
	Witness    [][]byte
	PrevScript []byte // scriptPubKey of the spent output
	Value      int64  // amount of the spent output, in satoshis
	SegWit     bool
}

// TxOutput is one output of a Bitcoin transaction.
type TxOutput struct {
	Value        int64
	ScriptPubKey []byte
}

// BitcoinTransaction is the transaction skeleton built by the caller and
// completed by signing.
type BitcoinTransaction struct {
	Version  int32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
}

// HasWitness reports whether any input carries witness data.
func (tx *BitcoinTransaction) HasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n)
	}
}

func writeVarBytes(buf *bytes.Buffer, data []byte) {
	writeVarInt(buf, uint64(len(data)))
	buf.Write(data)
}

func writeOutpoint(buf *bytes.Buffer, in *TxInput) {
	buf.Write(in.PrevTxID)
	binary.Write(buf, binary.LittleEndian, in.PrevIndex)
}

func writeTxOutput(buf *bytes.Buffer, out *TxOutput) {
	binary.Write(buf, binary.LittleEndian, uint64(out.Value))
	writeVarBytes(buf, out.ScriptPubKey)
}

// Serialize encodes the transaction in raw wire format. When any input has
// witness data the SegWit marker 0x00 and flag 0x01 are emitted and the
// witness stacks appended after the outputs.
func (tx *BitcoinTransaction) Serialize() ([]byte, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	withWitness := tx.HasWitness()

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(tx.Version))
	if withWitness {
		buf.WriteByte(0x00)
		buf.WriteByte(0x01)
	}

	writeVarInt(&buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		writeOutpoint(&buf, in)
		writeVarBytes(&buf, in.ScriptSig)
		binary.Write(&buf, binary.LittleEndian, in.Sequence)
	}

	writeVarInt(&buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		writeTxOutput(&buf, out)
	}

	if withWitness {
		for _, in := range tx.Inputs {
			writeVarInt(&buf, uint64(len(in.Witness)))
			for _, item := range in.Witness {
				writeVarBytes(&buf, item)
			}
		}
	}

	binary.Write(&buf, binary.LittleEndian, tx.LockTime)
	return buf.Bytes(), nil
}

func (tx *BitcoinTransaction) validate() error {
	if len(tx.Inputs) == 0 {
		return ErrInvalidTransaction.WithDetails("transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return ErrInvalidTransaction.WithDetails("transaction has no outputs")
	}
	for i, in := range tx.Inputs {
		if len(in.PrevTxID) != 32 {
			return ErrInvalidTransaction.WithDetails("input %d has a malformed previous txid", i)
		}
	}
	for i, out := range tx.Outputs {
		if out.Value < 0 {
			return ErrInvalidTransaction.WithDetails("output %d has a negative value", i)
		}
	}
	return nil
}

// LegacySignatureHash computes the pre-SegWit signature digest for one
// input: a modified copy of the transaction with other inputs' scripts
// blanked per the sighash type, serialized with the hash type appended,
// then double SHA-256.
func (tx *BitcoinTransaction) LegacySignatureHash(inputIndex int, scriptCode []byte, hashType SigHashType) ([]byte, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, ErrInvalidTransaction.WithDetails("input index %d out of range", inputIndex)
	}

	base := hashType & sigHashMask
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0

	// Consensus quirk: SIGHASH_SINGLE with no matching output signs the
	// digest 0x01 followed by 31 zero bytes.
	if base == SigHashSingle && inputIndex >= len(tx.Outputs) {
		digest := make([]byte, 32)
		digest[0] = 0x01
		return digest, nil
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(tx.Version))

	if anyoneCanPay {
		writeVarInt(&buf, 1)
		in := tx.Inputs[inputIndex]
		writeOutpoint(&buf, in)
		writeVarBytes(&buf, scriptCode)
		binary.Write(&buf, binary.LittleEndian, in.Sequence)
	} else {
		writeVarInt(&buf, uint64(len(tx.Inputs)))
		for i, in := range tx.Inputs {
			writeOutpoint(&buf, in)
			if i == inputIndex {
				writeVarBytes(&buf, scriptCode)
			} else {
				writeVarBytes(&buf, nil)
			}
			sequence := in.Sequence
			if i != inputIndex && (base == SigHashNone || base == SigHashSingle) {
				sequence = 0
			}
			binary.Write(&buf, binary.LittleEndian, sequence)
		}
	}

	switch base {
	case SigHashNone:
		writeVarInt(&buf, 0)
	case SigHashSingle:
		writeVarInt(&buf, uint64(inputIndex+1))
		for i := 0; i < inputIndex; i++ {
			// Earlier outputs are blanked to value -1 with an empty script.
			binary.Write(&buf, binary.LittleEndian, uint64(0xffffffffffffffff))
			writeVarBytes(&buf, nil)
		}
		writeTxOutput(&buf, tx.Outputs[inputIndex])
	default:
		writeVarInt(&buf, uint64(len(tx.Outputs)))
		for _, out := range tx.Outputs {
			writeTxOutput(&buf, out)
		}
	}

	binary.Write(&buf, binary.LittleEndian, tx.LockTime)
	binary.Write(&buf, binary.LittleEndian, uint32(hashType))
	return DoubleSHA256(buf.Bytes()), nil
}

// WitnessSignatureHash computes the BIP143 digest for a SegWit input. The
// preimage is replay-protected: it commits to the spent amount and a fixed
// script code, and the aggregate prevout/sequence/output hashes.
func (tx *BitcoinTransaction) WitnessSignatureHash(inputIndex int, scriptCode []byte, amount int64, hashType SigHashType) ([]byte, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, ErrInvalidTransaction.WithDetails("input index %d out of range", inputIndex)
	}

	base := hashType & sigHashMask
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0
	zero := make([]byte, 32)

	hashPrevouts := zero
	if !anyoneCanPay {
		var prevouts bytes.Buffer
		for _, in := range tx.Inputs {
			writeOutpoint(&prevouts, in)
		}
		hashPrevouts = DoubleSHA256(prevouts.Bytes())
	}

	hashSequence := zero
	if !anyoneCanPay && base != SigHashNone && base != SigHashSingle {
		var sequences bytes.Buffer
		for _, in := range tx.Inputs {
			binary.Write(&sequences, binary.LittleEndian, in.Sequence)
		}
		hashSequence = DoubleSHA256(sequences.Bytes())
	}

	hashOutputs := zero
	if base != SigHashNone && base != SigHashSingle {
		var outputs bytes.Buffer
		for _, out := range tx.Outputs {
			writeTxOutput(&outputs, out)
		}
		hashOutputs = DoubleSHA256(outputs.Bytes())
	} else if base == SigHashSingle && inputIndex < len(tx.Outputs) {
		var output bytes.Buffer
		writeTxOutput(&output, tx.Outputs[inputIndex])
		hashOutputs = DoubleSHA256(output.Bytes())
	}

	in := tx.Inputs[inputIndex]
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(tx.Version))
	buf.Write(hashPrevouts)
	buf.Write(hashSequence)
	writeOutpoint(&buf, in)
	writeVarBytes(&buf, scriptCode)
	binary.Write(&buf, binary.LittleEndian, uint64(amount))
	binary.Write(&buf, binary.LittleEndian, in.Sequence)
	buf.Write(hashOutputs)
	binary.Write(&buf, binary.LittleEndian, tx.LockTime)
	binary.Write(&buf, binary.LittleEndian, uint32(hashType))
	return DoubleSHA256(buf.Bytes()), nil
}

// p2pkhScript builds the canonical pay-to-pubkey-hash script, which also
// serves as the BIP143 script code for P2WPKH spends.
func p2pkhScript(pubKeyHash []byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14) // OP_DUP OP_HASH160 PUSH20
	script = append(script, pubKeyHash...)
	script = append(script, 0x88, 0xac) // OP_EQUALVERIFY OP_CHECKSIG
	return script
}

// pushData prefixes data with the minimal direct push opcode. Signature and
// pubkey pushes are always under 76 bytes.
func pushData(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, byte(len(data)))
	return append(out, data...)
}

// BitcoinSigningContext records exactly what was hashed when an input was
// signed. Verification recomputes the digest from this record rather than
// rebuilding it from scratch.
type BitcoinSigningContext struct {
	InputIndex int
	ScriptCode []byte
	Amount     int64
	HashType   SigHashType
	SegWit     bool
	PublicKey  []byte
}

// SignedBitcoinTransaction pairs the completed transaction with its raw
// bytes and the per-input signing contexts.
type SignedBitcoinTransaction struct {
	Tx       *BitcoinTransaction
	Raw      []byte
	Contexts []*BitcoinSigningContext
}

// SignBitcoinTransaction signs every input with the given secp256k1 private
// key. P2PKH inputs get a scriptSig of <sig||hashtype> <pubkey>; P2WPKH
// inputs get the equivalent two-element witness stack and their digest is
// computed per BIP143. Nonces are deterministic and signatures low-S DER.
func SignBitcoinTransaction(tx *BitcoinTransaction, privateKey []byte, hashType SigHashType) (*SignedBitcoinTransaction, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	publicKey, err := DerivePublicKey(privateKey, CurveSecp256k1)
	if err != nil {
		return nil, err
	}
	pubKeyHash := Hash160(publicKey)
	scriptCode := p2pkhScript(pubKeyHash)

	contexts := make([]*BitcoinSigningContext, len(tx.Inputs))
	for i, in := range tx.Inputs {
		var digest []byte
		if in.SegWit {
			digest, err = tx.WitnessSignatureHash(i, scriptCode, in.Value, hashType)
		} else {
			digest, err = tx.LegacySignatureHash(i, scriptCode, hashType)
		}
		if err != nil {
			return nil, err
		}

		sig, err := SignDigest(privateKey, digest)
		if err != nil {
			return nil, err
		}
		sigBytes := append(sig.SerializeDER(), byte(hashType))

		if in.SegWit {
			in.Witness = [][]byte{sigBytes, publicKey}
			in.ScriptSig = nil
		} else {
			var scriptSig bytes.Buffer
			scriptSig.Write(pushData(sigBytes))
			scriptSig.Write(pushData(publicKey))
			in.ScriptSig = scriptSig.Bytes()
		}

		contexts[i] = &BitcoinSigningContext{
			InputIndex: i,
			ScriptCode: scriptCode,
			Amount:     in.Value,
			HashType:   hashType,
			SegWit:     in.SegWit,
			PublicKey:  publicKey,
		}
	}

	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	return &SignedBitcoinTransaction{Tx: tx, Raw: raw, Contexts: contexts}, nil
}

// SignBitcoinTransactionWithShares reconstructs the private key from a
// quorum of shares, signs every input and wipes the key. Chain signing is
// ECDSA, so only secp256k1 shares are accepted.
func (e *Engine) SignBitcoinTransactionWithShares(tx *BitcoinTransaction, shares []*KeyShare, hashType SigHashType) (*SignedBitcoinTransaction, error) {
	if len(shares) > 0 && shares[0].Curve != CurveSecp256k1 {
		return nil, ErrUnsupportedSigningCurve.WithDetails("shares are on curve %s", shares[0].Curve)
	}
	keyBytes, err := e.ReconstructKey(shares)
	if err != nil {
		return nil, err
	}
	defer zeroize(keyBytes)
	return SignBitcoinTransaction(tx, keyBytes, hashType)
}

// VerifyInputSignature recomputes the digest from the stored signing
// context and checks the input's signature against the recorded public key.
// Any mismatch is reported uniformly as false.
func (stx *SignedBitcoinTransaction) VerifyInputSignature(inputIndex int) bool {
	if inputIndex < 0 || inputIndex >= len(stx.Contexts) || inputIndex >= len(stx.Tx.Inputs) {
		return false
	}
	ctx := stx.Contexts[inputIndex]
	in := stx.Tx.Inputs[inputIndex]

	var sigBytes []byte
	if ctx.SegWit {
		if len(in.Witness) != 2 {
			return false
		}
		sigBytes = in.Witness[0]
	} else {
		// scriptSig is <push sig> <push pubkey>
		if len(in.ScriptSig) < 2 || int(in.ScriptSig[0])+1 > len(in.ScriptSig) {
			return false
		}
		sigBytes = in.ScriptSig[1 : 1+int(in.ScriptSig[0])]
	}
	if len(sigBytes) < 2 {
		return false
	}
	hashType := SigHashType(sigBytes[len(sigBytes)-1])
	if hashType != ctx.HashType {
		return false
	}
	sig, err := ParseDERSignature(sigBytes[:len(sigBytes)-1])
	if err != nil {
		return false
	}

	var digest []byte
	if ctx.SegWit {
		digest, err = stx.Tx.WitnessSignatureHash(inputIndex, ctx.ScriptCode, ctx.Amount, ctx.HashType)
	} else {
		digest, err = stx.Tx.LegacySignatureHash(inputIndex, ctx.ScriptCode, ctx.HashType)
	}
	if err != nil {
		return false
	}
	return VerifyDigest(ctx.PublicKey, digest, sig)
}
