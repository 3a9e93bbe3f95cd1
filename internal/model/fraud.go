package model

// FraudAssessment is the outcome of a fraud check for one proposed
// transaction. A pure value; the velocity history behind it lives in the
// scorer.
type FraudAssessment struct {
	Reasons    []string
	RiskScore  float64
	Suspicious bool
}
