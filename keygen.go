package tss

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ShareMetadata carries non-secret bookkeeping attached to every share.
type ShareMetadata struct {
	KeyID     string    `cbor:"key_id"`
	CreatedAt time.Time `cbor:"created_at"`
}

// KeyShare is one participant's share of a threshold key. Shares from the
// same generation run carry identical PublicKey, Threshold, TotalShares and
// Curve; Index is unique in [1, TotalShares].
type KeyShare struct {
	Index       uint32
	Value       *FieldElement
	PublicKey   []byte
	Threshold   uint32
	TotalShares uint32
	Curve       CurveType
	Metadata    ShareMetadata
}

// Zeroize clears the secret share value.
func (ks *KeyShare) Zeroize() {
	if ks.Value != nil {
		ks.Value.Zeroize()
	}
}

// TSSKeyPair is the transient result of key generation. The caller
// distributes the shares and then discards the object; Zeroize wipes all
// share values.
type TSSKeyPair struct {
	PublicKey   []byte
	Shares      []*KeyShare
	Commitments [][]byte // Feldman commitment vector, constant term first
	Curve       CurveType
	Threshold   uint32
	TotalShares uint32
	CreatedAt   time.Time
}

// Zeroize clears every share's secret value.
func (kp *TSSKeyPair) Zeroize() {
	for _, share := range kp.Shares {
		share.Zeroize()
	}
}

// Engine drives threshold key generation, reconstruction and refresh. All
// randomness comes from the injected source; the engine holds no mutable
// state of its own.
type Engine struct {
	rand  SecureRandomSource
	audit AuditEventHandler
}

// NewEngine creates an engine with the given randomness source.
func NewEngine(rand SecureRandomSource) *Engine {
	return &Engine{rand: rand, audit: NullAuditHandler{}}
}

// WithAuditHandler routes lifecycle events to the given handler and
// returns the engine for chaining.
func (e *Engine) WithAuditHandler(handler AuditEventHandler) *Engine {
	if handler != nil {
		e.audit = handler
	}
	return e
}

// randomFieldElement draws a uniformly distributed element of the field.
// Sampling twice the modulus width before reduction keeps the bias
// negligible.
func (e *Engine) randomFieldElement(field *Field) (*FieldElement, error) {
	width := 2 * ((field.bits + 7) / 8)
	buf, err := e.rand.GenerateRandomBytes(width)
	if err != nil {
		return nil, err
	}
	defer zeroize(buf)
	return field.ElementFromBytes(buf), nil
}

// randomNonZeroFieldElement draws from [1, modulus).
func (e *Engine) randomNonZeroFieldElement(field *Field) (*FieldElement, error) {
	for {
		fe, err := e.randomFieldElement(field)
		if err != nil {
			return nil, err
		}
		if !fe.IsZero() {
			return fe, nil
		}
		fe.Zeroize()
	}
}

// GenerateKeyPair runs the linear key-generation state machine:
// validate parameters, draw the master secret, derive the public key, draw
// the random coefficients, evaluate the shares, then wipe the secret and
// every coefficient before returning. Failures propagate; nothing is
// retried.
func (e *Engine) GenerateKeyPair(curveType CurveType, threshold, totalShares int) (keyPair *TSSKeyPair, err error) {
	event := newAuditEvent(AuditEventKeyGeneration)
	event.Curve = string(curveType)
	event.Threshold = uint32(threshold)
	event.ShareCount = totalShares
	defer func() { e.audit.OnAuditEvent(event.withError(err)) }()

	if err := validateThresholdParams(threshold, totalShares); err != nil {
		return nil, err
	}
	curve, err := NewCurve(curveType)
	if err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}
	field, err := ScalarField(curve)
	if err != nil {
		return nil, err
	}

	masterSecret, err := e.randomNonZeroFieldElement(field)
	if err != nil {
		return nil, err
	}
	defer masterSecret.Zeroize()

	secretScalar, err := scalarFromFieldElement(curve, masterSecret)
	if err != nil {
		return nil, ErrCryptographic.WithCause(err)
	}
	defer secretScalar.Zeroize()
	publicKey := curve.BasePoint().Mul(secretScalar).CompressedBytes()

	coefficients := make([]*FieldElement, threshold-1)
	defer func() {
		for _, c := range coefficients {
			if c != nil {
				c.Zeroize()
			}
		}
	}()
	for i := range coefficients {
		coefficients[i], err = e.randomFieldElement(field)
		if err != nil {
			return nil, err
		}
	}

	allCoefficients := append([]*FieldElement{masterSecret}, coefficients...)
	polynomial, err := NewPolynomial(field, allCoefficients)
	if err != nil {
		return nil, err
	}
	defer polynomial.Zeroize()

	commitment, err := NewVSSCommitment(curve, polynomial)
	if err != nil {
		return nil, err
	}

	// Each share is a pure evaluation over immutable coefficients, so the
	// per-share work fans out across goroutines.
	points := make([]*SharePoint, totalShares)
	var group errgroup.Group
	for i := 0; i < totalShares; i++ {
		i := i
		group.Go(func() error {
			x := field.ElementFromUint64(uint64(i + 1))
			points[i] = &SharePoint{Index: uint32(i + 1), Value: polynomial.Evaluate(x)}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	keyID := uuid.NewString()
	event.KeyID = keyID
	shares := make([]*KeyShare, totalShares)
	for i, pt := range points {
		shares[i] = &KeyShare{
			Index:       pt.Index,
			Value:       pt.Value,
			PublicKey:   publicKey,
			Threshold:   uint32(threshold),
			TotalShares: uint32(totalShares),
			Curve:       curveType,
			Metadata:    ShareMetadata{KeyID: keyID, CreatedAt: now},
		}
	}

	commitmentBytes := make([][]byte, len(commitment.Points()))
	for i, pt := range commitment.Points() {
		commitmentBytes[i] = pt.CompressedBytes()
	}

	return &TSSKeyPair{
		PublicKey:   publicKey,
		Shares:      shares,
		Commitments: commitmentBytes,
		Curve:       curveType,
		Threshold:   uint32(threshold),
		TotalShares: uint32(totalShares),
		CreatedAt:   now,
	}, nil
}

// validateShareSet checks quorum and that all shares agree on public key,
// threshold, total count and curve, with unique indices.
func validateShareSet(shares []*KeyShare) error {
	if len(shares) == 0 {
		return ErrInsufficientShares.WithDetails("no shares supplied")
	}
	ref := shares[0]
	if len(shares) < int(ref.Threshold) {
		return ErrInsufficientShares.WithDetails(
			"need %d shares, got %d", ref.Threshold, len(shares))
	}
	seen := make(map[uint32]bool, len(shares))
	for _, share := range shares {
		if share.Value == nil {
			return ErrInvalidShareData.WithDetails("share %d has no value", share.Index)
		}
		if share.Index == 0 || share.Index > ref.TotalShares {
			return ErrInvalidShareData.WithDetails("share index %d out of range", share.Index)
		}
		if seen[share.Index] {
			return ErrDuplicateShareIndex.WithDetails("index %d", share.Index)
		}
		seen[share.Index] = true
		if share.Threshold != ref.Threshold ||
			share.TotalShares != ref.TotalShares ||
			share.Curve != ref.Curve ||
			!bytes.Equal(share.PublicKey, ref.PublicKey) {
			return ErrInvalidShareData.WithDetails(
				"share %d disagrees with the share set", share.Index)
		}
	}
	return nil
}

// reconstructSecret interpolates the master secret and verifies it against
// the public key recorded on the shares. An unverifiable secret is never
// returned.
func (e *Engine) reconstructSecret(shares []*KeyShare) (*FieldElement, Curve, *Field, error) {
	if err := validateShareSet(shares); err != nil {
		return nil, nil, nil, err
	}
	curve, err := NewCurve(shares[0].Curve)
	if err != nil {
		return nil, nil, nil, ErrInvalidShareData.WithCause(err)
	}
	field, err := ScalarField(curve)
	if err != nil {
		return nil, nil, nil, err
	}

	points := make([]*SharePoint, int(shares[0].Threshold))
	for i := range points {
		points[i] = &SharePoint{Index: shares[i].Index, Value: shares[i].Value}
	}
	sss := NewShamirSecretSharing(field)
	secret, err := sss.LagrangeInterpolate(points)
	if err != nil {
		return nil, nil, nil, err
	}

	secretScalar, err := scalarFromFieldElement(curve, secret)
	if err != nil {
		secret.Zeroize()
		return nil, nil, nil, ErrShareReconstructionFailed.WithCause(err)
	}
	derived := curve.BasePoint().Mul(secretScalar).CompressedBytes()
	secretScalar.Zeroize()
	if !bytes.Equal(derived, shares[0].PublicKey) {
		secret.Zeroize()
		return nil, nil, nil, ErrShareReconstructionFailed
	}
	return secret, curve, field, nil
}

// ReconstructKey recombines a quorum of shares into the private key, in the
// curve's canonical scalar encoding. The returned buffer is the caller's to
// wipe.
func (e *Engine) ReconstructKey(shares []*KeyShare) (keyBytes []byte, err error) {
	event := newAuditEvent(AuditEventKeyReconstruction)
	if len(shares) > 0 {
		event.KeyID = shares[0].Metadata.KeyID
		event.Curve = string(shares[0].Curve)
		event.ShareCount = len(shares)
	}
	defer func() { e.audit.OnAuditEvent(event.withError(err)) }()

	secret, curve, _, err := e.reconstructSecret(shares)
	if err != nil {
		return nil, err
	}
	defer secret.Zeroize()

	scalar, err := scalarFromFieldElement(curve, secret)
	if err != nil {
		return nil, ErrShareReconstructionFailed.WithCause(err)
	}
	keyBytes = scalar.Bytes()
	scalar.Zeroize()
	return keyBytes, nil
}

// RefreshShares reconstructs the secret and deals a fresh, independent share
// set for the same (threshold, totalShares, curve). The group public key is
// re-checked so the externally visible address never changes; the share
// values themselves are unrelated to the previous generation.
func (e *Engine) RefreshShares(shares []*KeyShare) (refreshed []*KeyShare, err error) {
	event := newAuditEvent(AuditEventShareRefresh)
	if len(shares) > 0 {
		event.KeyID = shares[0].Metadata.KeyID
		event.Curve = string(shares[0].Curve)
	}
	defer func() { e.audit.OnAuditEvent(event.withError(err)) }()

	secret, curve, field, err := e.reconstructSecret(shares)
	if err != nil {
		return nil, err
	}
	defer secret.Zeroize()

	ref := shares[0]
	threshold := int(ref.Threshold)
	totalShares := int(ref.TotalShares)

	coefficients := make([]*FieldElement, threshold-1)
	defer func() {
		for _, c := range coefficients {
			if c != nil {
				c.Zeroize()
			}
		}
	}()
	for i := range coefficients {
		coefficients[i], err = e.randomFieldElement(field)
		if err != nil {
			return nil, err
		}
	}

	sss := NewShamirSecretSharing(field)
	points, err := sss.GenerateShares(secret, threshold, totalShares, coefficients)
	if err != nil {
		return nil, err
	}

	secretScalar, err := scalarFromFieldElement(curve, secret)
	if err != nil {
		return nil, ErrShareReconstructionFailed.WithCause(err)
	}
	derived := curve.BasePoint().Mul(secretScalar).CompressedBytes()
	secretScalar.Zeroize()
	if !bytes.Equal(derived, ref.PublicKey) {
		return nil, ErrShareReconstructionFailed
	}

	event.ShareCount = totalShares
	event.Threshold = ref.Threshold

	now := time.Now().UTC()
	refreshed = make([]*KeyShare, totalShares)
	for i, pt := range points {
		refreshed[i] = &KeyShare{
			Index:       pt.Index,
			Value:       pt.Value,
			PublicKey:   ref.PublicKey,
			Threshold:   ref.Threshold,
			TotalShares: ref.TotalShares,
			Curve:       ref.Curve,
			Metadata:    ShareMetadata{KeyID: ref.Metadata.KeyID, CreatedAt: now},
		}
	}
	return refreshed, nil
}
