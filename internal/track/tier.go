package track

// Tier buckets an accuracy radius for display. Presentation only; no
// control decision depends on it.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
	TierVeryPoor  Tier = "very_poor"
)

// Classify maps an accuracy radius in meters to its display tier.
func Classify(accuracyM float64) Tier {
	switch {
	case accuracyM <= 50:
		return TierExcellent
	case accuracyM <= 100:
		return TierGood
	case accuracyM <= 500:
		return TierFair
	case accuracyM <= 1000:
		return TierPoor
	default:
		return TierVeryPoor
	}
}

// Label returns the human-readable tier name.
func (t Tier) Label() string {
	switch t {
	case TierExcellent:
		return "Excellent"
	case TierGood:
		return "Good"
	case TierFair:
		return "Fair"
	case TierPoor:
		return "Poor"
	case TierVeryPoor:
		return "Very Poor"
	}
	return string(t)
}
