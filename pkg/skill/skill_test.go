package skill_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chessoracle/chessoracle/pkg/skill"
	"github.com/chessoracle/chessoracle/pkg/types"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestGetProfileBoundaries(t *testing.T) {
	tests := []struct {
		level int
		tier  skill.Tier
	}{
		{1, skill.TierBeginner},
		{8, skill.TierBeginner},
		{9, skill.TierIntermediate},
		{15, skill.TierIntermediate},
		{16, skill.TierAdvanced},
		{22, skill.TierAdvanced},
		{23, skill.TierExpert},
		{28, skill.TierExpert},
		{29, skill.TierMaster},
		{100, skill.TierMaster},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tier, skill.GetProfile(tt.level).Tier, "level %d", tt.level)
	}
}

func TestClampDepth(t *testing.T) {
	p := skill.GetProfile(5)
	assert.Equal(t, p.DepthMin, p.ClampDepth(0))
	assert.Equal(t, p.DepthMax, p.ClampDepth(30))
	assert.Equal(t, p.DepthMin+1, p.ClampDepth(p.DepthMin+1))
}

func TestEstimateComplexityStartPosition(t *testing.T) {
	c := skill.EstimateComplexity(startFEN)

	// 32 of 64 squares occupied, all 12 piece symbols present
	assert.InDelta(t, 0.5*0.7+1.0*0.3, c, 1e-9)
}

func TestEstimateComplexitySparsePosition(t *testing.T) {
	sparse := skill.EstimateComplexity("8/8/8/4k3/8/8/4K3/8 w - - 0 1")
	full := skill.EstimateComplexity(startFEN)
	assert.Less(t, sparse, full)
}

func TestEstimateComplexityMalformed(t *testing.T) {
	assert.Equal(t, 0.5, skill.EstimateComplexity(""))
	assert.Equal(t, 0.5, skill.EstimateComplexity("not a position"))
	assert.Equal(t, 0.5, skill.EstimateComplexity("rnbqkbnr/pppppppp w"))
}

func TestThinkingTimeWithinScaledRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := skill.GetProfile(12)

	for i := 0; i < 100; i++ {
		d := skill.ThinkingTime(rng, p, 0.5)
		// complexity 0.5 scales by exactly 1.0
		assert.GreaterOrEqual(t, d, p.ThinkMin)
		assert.Less(t, d, p.ThinkMax)
	}
}

func TestThinkingTimeComplexityScaling(t *testing.T) {
	p := skill.GetProfile(12)

	// Same draw, different complexity: harder positions take longer
	simple := skill.ThinkingTime(rand.New(rand.NewSource(7)), p, 0)
	hard := skill.ThinkingTime(rand.New(rand.NewSource(7)), p, 1)
	assert.Greater(t, hard, simple)
}

func TestShouldDegradeDeterministic(t *testing.T) {
	master := skill.GetProfile(30)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		assert.False(t, skill.ShouldDegrade(rng, master), "master tier never degrades")
	}

	beginner := skill.GetProfile(3)
	hits := 0
	rng = rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if skill.ShouldDegrade(rng, beginner) {
			hits++
		}
	}
	assert.InDelta(t, 350, hits, 60, "beginner error rate around 0.35")
}

func TestDegradedMovePicksAlternative(t *testing.T) {
	lines := []types.AnalysisLine{
		{MultiPV: 1, PV: []string{"e2e4"}},
		{MultiPV: 2, PV: []string{"d2d4"}},
		{MultiPV: 3, PV: []string{"g1f3"}},
	}

	rng := rand.New(rand.NewSource(42))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		move := skill.DegradedMove(rng, lines, 10, "e2e4")
		assert.NotEqual(t, "e2e4", move)
		seen[move] = true
	}
	// window is max(2, 20/10) = 2: both alternatives reachable
	assert.True(t, seen["d2d4"])
	assert.True(t, seen["g1f3"])
}

func TestDegradedMoveFallsBackToBest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	only := []types.AnalysisLine{{MultiPV: 1, PV: []string{"e2e4"}}}
	assert.Equal(t, "e2e4", skill.DegradedMove(rng, only, 5, "e2e4"))
	assert.Equal(t, "e2e4", skill.DegradedMove(rng, nil, 5, "e2e4"))
}

func TestDegradedMoveLowLevelSafe(t *testing.T) {
	lines := []types.AnalysisLine{
		{MultiPV: 1, PV: []string{"e2e4"}},
		{MultiPV: 2, PV: []string{"d2d4"}},
	}
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, "d2d4", skill.DegradedMove(rng, lines, 0, "e2e4"))
}
