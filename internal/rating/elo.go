// internal/rating/elo.go
//
// ELO arithmetic for ranked games.
// Responsibilities:
//   - Expected score and post-game rating updates (K=32, floored at 0).
//   - Rating -> named tier mapping for profiles and the leaderboard.

package rating

import "math"

// KFactor is the classic ELO sensitivity constant.
const KFactor = 32

// DefaultRating is the rating assigned to new accounts.
const DefaultRating = 1200

// ExpectedScore is the probability that a beats b under the ELO model.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// Update computes both sides' new ratings after a decisive game.
// Winner gains K*(1-expected), loser loses symmetrically; results are
// rounded and never drop below zero.
func Update(winner, loser int) (newWinner, newLoser int) {
	newWinner = winner + int(math.Round(KFactor*(1.0-ExpectedScore(winner, loser))))
	newLoser = loser + int(math.Round(KFactor*(0.0-ExpectedScore(loser, winner))))
	if newWinner < 0 {
		newWinner = 0
	}
	if newLoser < 0 {
		newLoser = 0
	}
	return newWinner, newLoser
}

// TierFor maps a numeric rating onto its named bracket.
func TierFor(rating int) string {
	switch {
	case rating < 1100:
		return "bronze"
	case rating < 1300:
		return "silver"
	case rating < 1500:
		return "gold"
	case rating < 1700:
		return "platinum"
	case rating < 1900:
		return "diamond"
	case rating < 2100:
		return "master"
	default:
		return "grandmaster"
	}
}
