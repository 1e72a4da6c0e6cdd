package tss

import (
	"fmt"
	"math"
)

// SecurityLevel grades a threshold configuration.
type SecurityLevel string

const (
	SecurityLevelLow    SecurityLevel = "low"
	SecurityLevelMedium SecurityLevel = "medium"
	SecurityLevelHigh   SecurityLevel = "high"
)

// DefaultByzantineRatio is the 2/3 quorum bound for Byzantine fault tolerance.
const DefaultByzantineRatio = 2.0 / 3.0

// ValidationResult carries the outcome of a parameter check along with
// advisory findings.
type ValidationResult struct {
	Valid                   bool          `json:"valid"`
	SecurityLevel           SecurityLevel `json:"security_level"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance"`
	Warnings                []string      `json:"warnings,omitempty"`
	Errors                  []string      `json:"errors,omitempty"`
	Recommendations         []string      `json:"recommendations,omitempty"`
}

// ThresholdValidator checks (threshold, totalShares) configurations
// against minimum and recommended bounds before key generation.
type ThresholdValidator struct {
	MinShares           uint32  `json:"min_shares"`
	MinThreshold        uint32  `json:"min_threshold"`
	MaxShares           uint32  `json:"max_shares"`
	ByzantineRatio      float64 `json:"byzantine_ratio"`
	RecommendedMinRatio float64 `json:"recommended_min_ratio"`
	RecommendedMaxRatio float64 `json:"recommended_max_ratio"`
}

// NewDefaultThresholdValidator returns a validator with the engine's
// default bounds.
func NewDefaultThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{
		MinShares:           3,
		MinThreshold:        2,
		MaxShares:           MaxTotalShares,
		ByzantineRatio:      DefaultByzantineRatio,
		RecommendedMinRatio: 0.51,
		RecommendedMaxRatio: 0.80,
	}
}

// ValidateParameters checks a threshold configuration. Hard failures set
// Valid to false; ratio findings surface as warnings and recommendations.
func (tv *ThresholdValidator) ValidateParameters(threshold, totalShares uint32) *ValidationResult {
	result := &ValidationResult{
		Valid:         true,
		SecurityLevel: SecurityLevelMedium,
	}

	if threshold < 2 {
		result.Valid = false
		result.Errors = append(result.Errors, "threshold must be at least 2")
	}
	if totalShares == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "share count must be positive")
	}
	if threshold > totalShares {
		result.Valid = false
		result.Errors = append(result.Errors, "threshold cannot exceed share count")
	}
	if !result.Valid {
		result.SecurityLevel = SecurityLevelLow
		return result
	}

	if totalShares < tv.MinShares {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("minimum %d shares required", tv.MinShares))
	}
	if threshold < tv.MinThreshold {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("minimum threshold of %d required", tv.MinThreshold))
	}
	if totalShares > tv.MaxShares {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("share count exceeds maximum of %d", tv.MaxShares))
	}
	if !result.Valid {
		result.SecurityLevel = SecurityLevelLow
		return result
	}

	ratio := float64(threshold) / float64(totalShares)

	byzantineThreshold := uint32(float64(totalShares) * tv.ByzantineRatio)
	if threshold >= byzantineThreshold {
		result.ByzantineFaultTolerance = true
		result.SecurityLevel = SecurityLevelHigh
	}

	if ratio < tv.RecommendedMinRatio {
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings,
			"threshold ratio is below the recommended minimum")
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("consider a threshold of at least %d",
				uint32(math.Ceil(float64(totalShares)*tv.RecommendedMinRatio))))
	} else if ratio > tv.RecommendedMaxRatio {
		result.Warnings = append(result.Warnings,
			"threshold ratio is high and may affect availability")
	}

	if threshold == totalShares {
		result.Warnings = append(result.Warnings,
			"threshold equals share count, so a single lost share makes the key unrecoverable")
		result.Recommendations = append(result.Recommendations,
			"consider reducing threshold to tolerate share loss")
	}

	return result
}

// SecurityAssessment summarizes the fault and attack tolerance of a
// configuration.
type SecurityAssessment struct {
	OverallRating           SecurityLevel `json:"overall_rating"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance"`
	FaultTolerance          uint32        `json:"fault_tolerance"`
	AttackResistance        uint32        `json:"attack_resistance"`
	AvailabilityRisk        string        `json:"availability_risk"`
	Recommendations         []string      `json:"recommendations"`
}

// AssessSecurity rates a (threshold, totalShares) configuration.
func AssessSecurity(threshold, totalShares uint32) *SecurityAssessment {
	if threshold == 0 || totalShares == 0 || threshold > totalShares {
		return &SecurityAssessment{
			OverallRating:    SecurityLevelLow,
			AvailabilityRisk: "critical - invalid parameters",
			Recommendations:  []string{"threshold must be positive and at most the share count"},
		}
	}

	assessment := &SecurityAssessment{
		FaultTolerance:   totalShares - threshold,
		AttackResistance: threshold,
	}

	byzantineThreshold := uint32(float64(totalShares) * DefaultByzantineRatio)
	assessment.ByzantineFaultTolerance = threshold >= byzantineThreshold

	ratio := float64(threshold) / float64(totalShares)
	switch {
	case ratio < 0.5:
		assessment.OverallRating = SecurityLevelLow
	case ratio >= 0.67:
		assessment.OverallRating = SecurityLevelHigh
	default:
		assessment.OverallRating = SecurityLevelMedium
	}

	switch {
	case assessment.FaultTolerance == 0:
		assessment.AvailabilityRisk = "critical - no fault tolerance"
	case assessment.FaultTolerance == 1:
		assessment.AvailabilityRisk = "high - single share loss is fatal to redundancy"
	case assessment.FaultTolerance <= 3:
		assessment.AvailabilityRisk = "medium - limited fault tolerance"
	default:
		assessment.AvailabilityRisk = "low - good fault tolerance"
	}

	if !assessment.ByzantineFaultTolerance {
		assessment.Recommendations = append(assessment.Recommendations,
			"consider increasing threshold for Byzantine fault tolerance")
	}
	if assessment.FaultTolerance < 2 {
		assessment.Recommendations = append(assessment.Recommendations,
			"consider adding shares or reducing threshold for better availability")
	}

	return assessment
}
