package phase_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscillon/desync/phase"
)

func TestDiffSumLaws(t *testing.T) {
	// diff(a, b) + diff(b, a) ∈ {0, Interval}
	for a := int64(0); a < phase.Interval; a += phase.Interval / 37 {
		for b := int64(0); b < phase.Interval; b += phase.Interval / 29 {
			sum := phase.Diff(a, b) + phase.Diff(b, a)
			require.True(t, sum == 0 || sum == phase.Interval, "a=%d b=%d sum=%d", a, b, sum)

			// sum(a, diff(b, a)) == b
			require.Equal(t, b, phase.Sum(a, phase.Diff(b, a)))
		}
	}
}

func TestSumWraps(t *testing.T) {
	require.Equal(t, int64(5), phase.Sum(phase.Interval-3, 8))
	require.Equal(t, int64(0), phase.Sum(0, 0))
	require.Equal(t, phase.Interval-1, phase.Sum(phase.Interval-1, phase.Interval))
}

func TestDiffWraps(t *testing.T) {
	require.Equal(t, int64(0), phase.Diff(5, 5))
	require.Equal(t, phase.Interval-5, phase.Diff(0, 5))
	require.Equal(t, int64(5), phase.Diff(5, 0))
}
