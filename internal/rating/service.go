// internal/rating/service.go
//
// Thin persistence layer over the pure ELO math: reads both accounts,
// computes the update, and writes ratings plus games-played / games-won
// counters back through the user store.

package rating

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/store"
)

// Service applies rating results to the external user store.
type Service struct {
	store store.Store
}

// NewService wires the service to a user store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// RecordResult persists the outcome of a ranked game with a clear winner.
// Best effort: failures are logged, never propagated into the room path.
// Callers invoke it off the room's action path (see arena.Manager).
func (s *Service) RecordResult(winnerID, loserID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	winnerRating, _, err := s.store.RatingAndName(ctx, winnerID)
	if err != nil {
		log.Warn().Err(err).Str("user", winnerID).Msg("load winner rating")
		return
	}
	loserRating, _, err := s.store.RatingAndName(ctx, loserID)
	if err != nil {
		log.Warn().Err(err).Str("user", loserID).Msg("load loser rating")
		return
	}

	newWinner, newLoser := Update(winnerRating, loserRating)
	if err := s.store.ApplyRatingUpdate(ctx, winnerID, newWinner, true); err != nil {
		log.Warn().Err(err).Str("user", winnerID).Msg("apply winner rating")
	}
	if err := s.store.ApplyRatingUpdate(ctx, loserID, newLoser, false); err != nil {
		log.Warn().Err(err).Str("user", loserID).Msg("apply loser rating")
	}
	log.Info().
		Str("winner", winnerID).Int("winnerRating", newWinner).
		Str("loser", loserID).Int("loserRating", newLoser).
		Msg("ratings updated")
}
