package connpager

import "github.com/samber/lo"

const (
	MaxLimit = 100
)

// IsNormalizedLimitMax clamps the limit to maxLimit. The flag reports whether
// the limit was left untouched. A non-positive maxLimit disables clamping.
func IsNormalizedLimitMax(limit int, maxLimit int) (int, bool) {
	if maxLimit > 0 && limit > maxLimit {
		return maxLimit, false
	}

	return limit, true
}

// NormalizeLimitMax clamps an optional limit. A nil limit means "no limit"
// and stays nil.
func NormalizeLimitMax(limit *int, maxLimit int) *int {
	if limit == nil {
		return nil
	}

	ret, _ := IsNormalizedLimitMax(*limit, maxLimit)

	return lo.ToPtr(ret)
}

func NormalizeLimit(limit *int) *int {
	return NormalizeLimitMax(limit, MaxLimit)
}
