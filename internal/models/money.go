package models

// Commission percentages taken by the platform.
const (
	FreelancerCommissionPct int64 = 20
	AffiliateCommissionPct  int64 = 10
)

// PercentOf returns pct% of amount in cents, rounded half up.
func PercentOf(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}
