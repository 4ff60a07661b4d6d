// Package skill maps abstract skill levels to engine tuning and
// human-error simulation parameters. Everything here is pure: the
// randomized pieces take an explicit rand source so tests can inject
// determinism.
package skill

import (
	"math/rand"
	"strings"
	"time"

	"github.com/chessoracle/chessoracle/pkg/types"
)

// Tier is one of the five fixed skill buckets
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
	TierExpert       Tier = "expert"
	TierMaster       Tier = "master"
)

// Profile holds the engine-tuning parameters of one tier
type Profile struct {
	Tier        Tier
	DepthMin    int
	DepthMax    int
	EngineSkill int
	ErrorRate   float64
	ThinkMin    time.Duration
	ThinkMax    time.Duration
}

// Tier boundaries: beginner <=8, intermediate <=15, advanced <=22,
// expert <=28, master above.
var profiles = []struct {
	maxLevel int
	profile  Profile
}{
	{8, Profile{
		Tier: TierBeginner, DepthMin: 1, DepthMax: 6, EngineSkill: 3,
		ErrorRate: 0.35, ThinkMin: 300 * time.Millisecond, ThinkMax: 800 * time.Millisecond,
	}},
	{15, Profile{
		Tier: TierIntermediate, DepthMin: 4, DepthMax: 10, EngineSkill: 8,
		ErrorRate: 0.20, ThinkMin: 500 * time.Millisecond, ThinkMax: 1500 * time.Millisecond,
	}},
	{22, Profile{
		Tier: TierAdvanced, DepthMin: 8, DepthMax: 14, EngineSkill: 13,
		ErrorRate: 0.10, ThinkMin: 800 * time.Millisecond, ThinkMax: 2500 * time.Millisecond,
	}},
	{28, Profile{
		Tier: TierExpert, DepthMin: 12, DepthMax: 18, EngineSkill: 17,
		ErrorRate: 0.04, ThinkMin: 1200 * time.Millisecond, ThinkMax: 4 * time.Second,
	}},
}

var masterProfile = Profile{
	Tier: TierMaster, DepthMin: 16, DepthMax: 24, EngineSkill: 20,
	ErrorRate: 0, ThinkMin: 1500 * time.Millisecond, ThinkMax: 6 * time.Second,
}

// GetProfile resolves the tier for a skill level
func GetProfile(level int) Profile {
	for _, entry := range profiles {
		if level <= entry.maxLevel {
			return entry.profile
		}
	}
	return masterProfile
}

// ClampDepth bounds a requested depth into the profile's range
func (p Profile) ClampDepth(depth int) int {
	if depth < p.DepthMin {
		return p.DepthMin
	}
	if depth > p.DepthMax {
		return p.DepthMax
	}
	return depth
}

// EstimateComplexity scores a position between 0 and 1 from the board
// placement field of the FEN: occupied-square density weighted 0.7,
// piece variety (of the 12 possible symbols) weighted 0.3. Malformed
// input scores a neutral 0.5 rather than failing.
func EstimateComplexity(fen string) float64 {
	board := strings.Fields(fen)
	if len(board) == 0 {
		return 0.5
	}

	occupied := 0
	distinct := make(map[rune]bool)
	squares := 0

	for _, r := range board[0] {
		switch {
		case r == '/':
		case r >= '1' && r <= '8':
			squares += int(r - '0')
		case isPieceSymbol(r):
			occupied++
			squares++
			distinct[r] = true
		default:
			return 0.5
		}
	}
	if squares != 64 || occupied == 0 {
		return 0.5
	}

	density := float64(occupied) / 64
	variety := float64(len(distinct)) / 12
	return density*0.7 + variety*0.3
}

func isPieceSymbol(r rune) bool {
	switch r {
	case 'p', 'n', 'b', 'r', 'q', 'k', 'P', 'N', 'B', 'R', 'Q', 'K':
		return true
	}
	return false
}

// ThinkingTime samples a duration uniformly within the tier's range,
// scaled by a complexity factor between 0.7 and 1.3.
func ThinkingTime(rng *rand.Rand, profile Profile, complexity float64) time.Duration {
	span := profile.ThinkMax - profile.ThinkMin
	base := profile.ThinkMin
	if span > 0 {
		base += time.Duration(rng.Int63n(int64(span)))
	}
	factor := 0.7 + 0.6*complexity
	return time.Duration(float64(base) * factor)
}

// ShouldDegrade draws whether this request simulates a human mistake
func ShouldDegrade(rng *rand.Rand, profile Profile) bool {
	if profile.ErrorRate <= 0 {
		return false
	}
	return rng.Float64() < profile.ErrorRate
}

// DegradedMove picks a plausible inferior move: uniform among the top
// max(2, 20/level) non-best lines. Falls back to the original best
// move when no alternative line exists.
func DegradedMove(rng *rand.Rand, lines []types.AnalysisLine, level int, bestMove string) string {
	if level < 1 {
		level = 1
	}

	var alternatives []string
	for _, line := range lines {
		if line.MultiPV == 1 || len(line.PV) == 0 {
			continue
		}
		if line.PV[0] == bestMove {
			continue
		}
		alternatives = append(alternatives, line.PV[0])
	}
	if len(alternatives) == 0 {
		return bestMove
	}

	window := 20 / level
	if window < 2 {
		window = 2
	}
	if window > len(alternatives) {
		window = len(alternatives)
	}
	return alternatives[rng.Intn(window)]
}
