package tss

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
)

// The signing ceremony is a strict phase barrier: commit to ephemeral
// nonces, reveal them, exchange partial signatures, aggregate. No phase
// starts until every required signer's input for the previous phase has
// been received and validated, and any invalid or missing input aborts the
// whole ceremony. Message delivery between participants is the caller's
// transport concern; the ceremony only maps received messages to the next
// phase's output or a typed error.

type ceremonyPhase int

const (
	phaseInit ceremonyPhase = iota
	phaseCommitted
	phaseCommitmentsReceived
	phaseRevealed
	phaseRevealsReceived
	phasePartialSigned
	phaseDone
	phaseAborted
)

// NonceCommitment is the phase-1 message: a binding hash of the signer's
// nonce point, sent before any nonce is revealed.
type NonceCommitment struct {
	Index uint32
	Hash  [32]byte
}

// NonceReveal is the phase-2 message: the actual nonce point, checked
// against the earlier commitment hash, plus a proof of knowledge of the
// nonce so nobody can replay another signer's point.
type NonceReveal struct {
	Index uint32
	Point []byte
	Proof *SchnorrProof
}

// PartialSignature is the phase-3 message: the signer's Lagrange-weighted
// Schnorr response.
type PartialSignature struct {
	Index    uint32
	Response []byte
}

// ThresholdSignature is the aggregated Schnorr signature (R, s).
type ThresholdSignature struct {
	R Point
	S Scalar
}

// SigningCeremony is one participant's view of a threshold signing session.
type SigningCeremony struct {
	curve        Curve
	field        *Field
	rand         SecureRandomSource
	share        *KeyShare
	message      []byte
	signers      []uint32
	publicShares map[uint32]Point
	groupKey     Point

	phase           ceremonyPhase
	nonce           Scalar
	commitment      Point
	commitHashes    map[uint32][32]byte
	reveals         map[uint32]Point
	groupCommitment Point
	challenge       Scalar
}

// NewSigningCeremony starts a ceremony for the given message. signers is
// the quorum roster (must include the local share's index and meet the
// share's threshold) and publicShares maps every roster index to that
// participant's public share g^share, which partial signatures are checked
// against.
func NewSigningCeremony(
	rand SecureRandomSource,
	share *KeyShare,
	message []byte,
	signers []uint32,
	publicShares map[uint32][]byte,
) (*SigningCeremony, error) {
	if share == nil || share.Value == nil {
		return nil, ErrInvalidShareData.WithDetails("missing local share")
	}
	if len(signers) < int(share.Threshold) {
		return nil, ErrInsufficientShares.WithDetails(
			"roster of %d below threshold %d", len(signers), share.Threshold)
	}
	curve, err := NewCurve(share.Curve)
	if err != nil {
		return nil, ErrInvalidShareData.WithCause(err)
	}
	field, err := ScalarField(curve)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint32]bool, len(signers))
	local := false
	for _, idx := range signers {
		if seen[idx] {
			return nil, ErrDuplicateShareIndex.WithDetails("index %d", idx)
		}
		seen[idx] = true
		if idx == share.Index {
			local = true
		}
	}
	if !local {
		return nil, ErrInvalidShareData.WithDetails(
			"local index %d not in signer roster", share.Index)
	}

	points := make(map[uint32]Point, len(signers))
	for _, idx := range signers {
		raw, ok := publicShares[idx]
		if !ok {
			return nil, ErrInvalidShareData.WithDetails("no public share for signer %d", idx)
		}
		point, err := curve.PointFromBytes(raw)
		if err != nil {
			return nil, ErrInvalidShareData.WithDetails("public share for signer %d is invalid", idx).WithCause(err)
		}
		points[idx] = point
	}

	groupKey, err := curve.PointFromBytes(share.PublicKey)
	if err != nil {
		return nil, ErrInvalidShareData.WithDetails("group public key is invalid").WithCause(err)
	}

	return &SigningCeremony{
		curve:        curve,
		field:        field,
		rand:         rand,
		share:        share,
		message:      message,
		signers:      signers,
		publicShares: points,
		groupKey:     groupKey,
		phase:        phaseInit,
		commitHashes: make(map[uint32][32]byte, len(signers)),
		reveals:      make(map[uint32]Point, len(signers)),
	}, nil
}

func (c *SigningCeremony) abort(err *EngineError) error {
	c.phase = phaseAborted
	if c.nonce != nil {
		c.nonce.Zeroize()
		c.nonce = nil
	}
	return err
}

func commitmentHash(index uint32, point Point) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	h := sha256.New()
	h.Write([]byte("TSS_CEREMONY_COMMIT"))
	h.Write(idx[:])
	h.Write(point.CompressedBytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Commit generates the ephemeral nonce and returns the phase-1 commitment.
func (c *SigningCeremony) Commit() (*NonceCommitment, error) {
	if c.phase != phaseInit {
		return nil, ErrCeremonyPhaseOrder.WithDetails("Commit called in phase %d", c.phase)
	}
	nonceBytes, err := c.rand.GenerateRandomBytes(64)
	if err != nil {
		return nil, c.abort(ErrCeremonyAborted.WithCause(err))
	}
	nonce, err := c.curve.ScalarFromUniformBytes(nonceBytes)
	zeroize(nonceBytes)
	if err != nil {
		return nil, c.abort(ErrCeremonyAborted.WithCause(err))
	}
	if nonce.IsZero() {
		return nil, c.abort(ErrCeremonyAborted.WithDetails("zero nonce drawn"))
	}

	c.nonce = nonce
	c.commitment = c.curve.BasePoint().Mul(nonce)
	hash := commitmentHash(c.share.Index, c.commitment)
	c.commitHashes[c.share.Index] = hash
	c.phase = phaseCommitted
	return &NonceCommitment{Index: c.share.Index, Hash: hash}, nil
}

// rosterComplete checks a received message set covers every other signer
// exactly once.
func (c *SigningCeremony) rosterComplete(indices []uint32) *EngineError {
	if len(indices) != len(c.signers)-1 {
		return ErrCeremonyAborted.WithDetails(
			"expected input from %d signers, got %d", len(c.signers)-1, len(indices))
	}
	expected := make(map[uint32]bool, len(c.signers))
	for _, idx := range c.signers {
		expected[idx] = idx != c.share.Index
	}
	for _, idx := range indices {
		if !expected[idx] {
			return ErrCeremonyAborted.WithDetails("unexpected or duplicate input from signer %d", idx)
		}
		expected[idx] = false
	}
	return nil
}

// ProcessCommitments records every other signer's phase-1 commitment.
func (c *SigningCeremony) ProcessCommitments(commitments []*NonceCommitment) error {
	if c.phase != phaseCommitted {
		return ErrCeremonyPhaseOrder.WithDetails("ProcessCommitments called in phase %d", c.phase)
	}
	indices := make([]uint32, len(commitments))
	for i, msg := range commitments {
		if msg == nil {
			return c.abort(ErrCeremonyAborted.WithDetails("nil commitment message"))
		}
		indices[i] = msg.Index
	}
	if err := c.rosterComplete(indices); err != nil {
		return c.abort(err)
	}
	for _, msg := range commitments {
		c.commitHashes[msg.Index] = msg.Hash
	}
	c.phase = phaseCommitmentsReceived
	return nil
}

// Reveal releases the local nonce point, only after every commitment has
// been received.
func (c *SigningCeremony) Reveal() (*NonceReveal, error) {
	if c.phase != phaseCommitmentsReceived {
		return nil, ErrCeremonyPhaseOrder.WithDetails("Reveal called in phase %d", c.phase)
	}
	proof, err := NewSchnorrProof(c.curve, c.rand, c.nonce, c.commitment)
	if err != nil {
		return nil, c.abort(ErrCeremonyAborted.WithCause(err))
	}
	c.reveals[c.share.Index] = c.commitment
	c.phase = phaseRevealed
	return &NonceReveal{
		Index: c.share.Index,
		Point: c.commitment.CompressedBytes(),
		Proof: proof,
	}, nil
}

// ProcessReveals checks every revealed nonce point against its phase-1
// commitment hash and computes the group commitment and challenge. A
// single bad reveal aborts the ceremony for everyone.
func (c *SigningCeremony) ProcessReveals(reveals []*NonceReveal) error {
	if c.phase != phaseRevealed {
		return ErrCeremonyPhaseOrder.WithDetails("ProcessReveals called in phase %d", c.phase)
	}
	indices := make([]uint32, len(reveals))
	for i, msg := range reveals {
		if msg == nil {
			return c.abort(ErrCeremonyAborted.WithDetails("nil reveal message"))
		}
		indices[i] = msg.Index
	}
	if err := c.rosterComplete(indices); err != nil {
		return c.abort(err)
	}

	for _, msg := range reveals {
		point, err := c.curve.PointFromBytes(msg.Point)
		if err != nil {
			return c.abort(ErrCeremonyAborted.WithDetails(
				"signer %d revealed an invalid point", msg.Index))
		}
		expected, ok := c.commitHashes[msg.Index]
		if !ok {
			return c.abort(ErrCeremonyAborted.WithDetails(
				"signer %d revealed without a commitment", msg.Index))
		}
		actual := commitmentHash(msg.Index, point)
		if !bytes.Equal(expected[:], actual[:]) {
			return c.abort(ErrCeremonyAborted.WithDetails(
				"signer %d's reveal does not match its commitment", msg.Index))
		}
		if !msg.Proof.Verify(c.curve, point) {
			return c.abort(ErrCeremonyAborted.WithDetails(
				"signer %d cannot prove knowledge of its nonce", msg.Index))
		}
		c.reveals[msg.Index] = point
	}

	group := c.curve.PointIdentity()
	for _, idx := range c.signers {
		group = group.Add(c.reveals[idx])
	}
	c.groupCommitment = group

	challenge, err := ceremonyChallenge(c.curve, group, c.groupKey, c.message)
	if err != nil {
		return c.abort(ErrCeremonyAborted.WithCause(err))
	}
	c.challenge = challenge
	c.phase = phaseRevealsReceived
	return nil
}

// lagrangeCoefficient computes l_idx(0) over the signer roster.
func (c *SigningCeremony) lagrangeCoefficient(idx uint32) (Scalar, error) {
	numerator := c.field.One()
	denominator := c.field.One()
	xi := c.field.ElementFromUint64(uint64(idx))
	for _, other := range c.signers {
		if other == idx {
			continue
		}
		xj := c.field.ElementFromUint64(uint64(other))
		numerator = numerator.Mul(xj.Negate())
		denominator = denominator.Mul(xi.Sub(xj))
	}
	denomInv, err := denominator.Inverse()
	if err != nil {
		return nil, err
	}
	return scalarFromFieldElement(c.curve, numerator.Mul(denomInv))
}

// PartialSign computes the local response s_i = d_i + c * lambda_i * x_i.
func (c *SigningCeremony) PartialSign() (*PartialSignature, error) {
	if c.phase != phaseRevealsReceived {
		return nil, ErrCeremonyPhaseOrder.WithDetails("PartialSign called in phase %d", c.phase)
	}
	lambda, err := c.lagrangeCoefficient(c.share.Index)
	if err != nil {
		return nil, c.abort(ErrCeremonyAborted.WithCause(err))
	}
	shareScalar, err := scalarFromFieldElement(c.curve, c.share.Value)
	if err != nil {
		return nil, c.abort(ErrCeremonyAborted.WithCause(err))
	}
	response := c.nonce.Add(c.challenge.Mul(lambda).Mul(shareScalar))
	shareScalar.Zeroize()
	c.phase = phasePartialSigned
	return &PartialSignature{Index: c.share.Index, Response: response.Bytes()}, nil
}

// verifyPartial checks g^s_i == D_i + c * lambda_i * Y_i.
func (c *SigningCeremony) verifyPartial(idx uint32, response Scalar) error {
	lambda, err := c.lagrangeCoefficient(idx)
	if err != nil {
		return err
	}
	left := c.curve.BasePoint().Mul(response)
	right := c.reveals[idx].Add(c.publicShares[idx].Mul(c.challenge.Mul(lambda)))
	if !left.Equal(right) {
		return ErrCeremonyAborted.WithDetails("signer %d sent an invalid partial signature", idx)
	}
	return nil
}

// Aggregate validates every partial signature against its signer's public
// share and sums them into the final signature, which is verified against
// the group public key before being returned.
func (c *SigningCeremony) Aggregate(own *PartialSignature, others []*PartialSignature) (*ThresholdSignature, error) {
	if c.phase != phasePartialSigned {
		return nil, ErrCeremonyPhaseOrder.WithDetails("Aggregate called in phase %d", c.phase)
	}
	indices := make([]uint32, len(others))
	for i, msg := range others {
		if msg == nil {
			return nil, c.abort(ErrCeremonyAborted.WithDetails("nil partial signature"))
		}
		indices[i] = msg.Index
	}
	if err := c.rosterComplete(indices); err != nil {
		return nil, c.abort(err)
	}
	if own == nil || own.Index != c.share.Index {
		return nil, c.abort(ErrCeremonyAborted.WithDetails("local partial signature missing"))
	}

	sum := c.curve.ScalarZero()
	all := append([]*PartialSignature{own}, others...)
	for _, msg := range all {
		response, err := c.curve.ScalarFromBytes(msg.Response)
		if err != nil {
			return nil, c.abort(ErrCeremonyAborted.WithDetails(
				"signer %d sent a malformed response", msg.Index))
		}
		if err := c.verifyPartial(msg.Index, response); err != nil {
			if engineErr, ok := err.(*EngineError); ok {
				return nil, c.abort(engineErr)
			}
			return nil, c.abort(ErrCeremonyAborted.WithCause(err))
		}
		sum = sum.Add(response)
	}

	sig := &ThresholdSignature{R: c.groupCommitment, S: sum}
	if !VerifyThresholdSignature(c.curve, sig, c.message, c.groupKey) {
		return nil, c.abort(ErrCeremonyAborted.WithDetails("aggregated signature failed verification"))
	}

	c.nonce.Zeroize()
	c.nonce = nil
	c.phase = phaseDone
	return sig, nil
}

// VerifyThresholdSignature checks g^s == R + c*P for the ceremony's
// challenge construction.
func VerifyThresholdSignature(curve Curve, sig *ThresholdSignature, message []byte, groupKey Point) bool {
	if sig == nil || sig.R == nil || sig.S == nil {
		return false
	}
	challenge, err := ceremonyChallenge(curve, sig.R, groupKey, message)
	if err != nil {
		return false
	}
	left := curve.BasePoint().Mul(sig.S)
	right := sig.R.Add(groupKey.Mul(challenge))
	return left.Equal(right)
}

// ceremonyChallenge derives the Fiat-Shamir challenge c = H(R || P || m).
// SHA-512 feeds Ed25519's wide reduction; SHA-256 elsewhere.
func ceremonyChallenge(curve Curve, commitment, groupKey Point, message []byte) (Scalar, error) {
	var digest []byte
	if curve.Name() == string(CurveEd25519) {
		h := sha512.New()
		h.Write([]byte("TSS_CEREMONY_CHALLENGE"))
		h.Write(commitment.CompressedBytes())
		h.Write(groupKey.CompressedBytes())
		h.Write(message)
		digest = h.Sum(nil)
	} else {
		h := sha256.New()
		h.Write([]byte("TSS_CEREMONY_CHALLENGE"))
		h.Write(commitment.CompressedBytes())
		h.Write(groupKey.CompressedBytes())
		h.Write(message)
		digest = h.Sum(nil)
	}
	return curve.ScalarFromUniformBytes(digest)
}
