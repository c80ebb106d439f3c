package rating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quorbit/quoridor-server/internal/rating"
)

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, rating.ExpectedScore(1200, 1200), 1e-9)

	// 400-point gap is the canonical ~0.909 favorite.
	assert.InDelta(t, 0.909, rating.ExpectedScore(1600, 1200), 0.001)
	assert.InDelta(t, 0.091, rating.ExpectedScore(1200, 1600), 0.001)

	// Complementary by construction.
	a, b := 1423, 1287
	assert.InDelta(t, 1.0, rating.ExpectedScore(a, b)+rating.ExpectedScore(b, a), 1e-9)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name       string
		winner     int
		loser      int
		wantWinner int
		wantLoser  int
	}{
		{name: "equal ratings move half of K", winner: 1200, loser: 1200, wantWinner: 1216, wantLoser: 1184},
		{name: "favorite gains little", winner: 1600, loser: 1200, wantWinner: 1603, wantLoser: 1197},
		{name: "upset swings big", winner: 1200, loser: 1600, wantWinner: 1229, wantLoser: 1571},
		{name: "loser never drops below zero", winner: 1200, loser: 10, wantWinner: 1200, wantLoser: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, l := rating.Update(tt.winner, tt.loser)
			assert.Equal(t, tt.wantWinner, w)
			assert.Equal(t, tt.wantLoser, l)
			assert.GreaterOrEqual(t, l, 0)
		})
	}
}

func TestUpdateConservesPointsAtEqualRatings(t *testing.T) {
	w, l := rating.Update(1500, 1500)
	assert.Equal(t, 3000, w+l)
	assert.Greater(t, w, 1500)
	assert.Less(t, l, 1500)
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		rating int
		want   string
	}{
		{0, "bronze"},
		{1099, "bronze"},
		{1100, "silver"},
		{1200, "silver"},
		{1300, "gold"},
		{1500, "platinum"},
		{1700, "diamond"},
		{1900, "master"},
		{2100, "grandmaster"},
		{2800, "grandmaster"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rating.TierFor(tt.rating), "rating %d", tt.rating)
	}
}
