package connpager

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func Test_IsNormalizedLimitMax(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		max      int
		want     int
		isStrict bool
	}{
		{"zero unchanged", 0, 50, 0, true},
		{"within max unchanged", 7, 50, 7, true},
		{"equal max unchanged", 50, 50, 50, true},
		{"above max clamped", 51, 50, 50, false},
		{"no max", 1000, 0, 1000, true},
		{"negative max disables clamping", 1000, -1, 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strict := IsNormalizedLimitMax(tt.limit, tt.max)
			if got != tt.want || strict != tt.isStrict {
				t.Errorf("%s: got=(%d,%v) want=(%d,%v)", tt.name, got, strict, tt.want, tt.isStrict)
			}
		})
	}
}

func Test_NormalizeLimitMax(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		max   int
		want  *int
	}{
		{"nil stays nil", nil, 77, nil},
		{"zero stays zero", lo.ToPtr(0), 77, lo.ToPtr(0)},
		{"clamp to max", lo.ToPtr(1000), 77, lo.ToPtr(77)},
		{"keep when ok", lo.ToPtr(12), 77, lo.ToPtr(12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLimitMax(tt.limit, tt.max))
		})
	}
}

func Test_NormalizeLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		want  *int
	}{
		{"nil stays nil", nil, nil},
		{"clamp to MaxLimit", lo.ToPtr(MaxLimit + 1), lo.ToPtr(MaxLimit)},
		{"keep when ok", lo.ToPtr(17), lo.ToPtr(17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLimit(tt.limit))
		})
	}
}

func Test_NormalizeLimitMax_doesNotAlias(t *testing.T) {
	limit := lo.ToPtr(1000)
	got := NormalizeLimitMax(limit, 10)

	assert.Equal(t, 1000, *limit)
	assert.Equal(t, 10, *got)
}
