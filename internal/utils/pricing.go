package utils

import (
	"fmt"

	"rentalshop-trusted/internal/domain"
)

// RentalCostBreakdown provides detailed cost breakdown
type RentalCostBreakdown struct {
	DurationMinutes    int32
	BlockMinutes       int32
	Blocks             int64
	PricePerBlockCents int64
	TotalCents         int64
}

// BlocksFor returns how many billing blocks a duration occupies. Every started
// block is charged in full.
func BlocksFor(durationMinutes, blockMinutes int32) int64 {
	if blockMinutes <= 0 {
		blockMinutes = domain.DefaultBlockMinutes
	}
	if durationMinutes <= 0 {
		return 0
	}
	blocks := int64(durationMinutes / blockMinutes)
	if durationMinutes%blockMinutes > 0 {
		blocks++
	}
	return blocks
}

// CalculateRentalCost returns the total price of renting game for the given
// number of minutes.
func CalculateRentalCost(durationMinutes int32, game *domain.Game) (int64, error) {
	b, err := CalculateRentalCostWithBreakdown(durationMinutes, game)
	if err != nil {
		return 0, err
	}
	return b.TotalCents, nil
}

// CalculateRentalCostWithBreakdown provides detailed breakdown of rental cost
func CalculateRentalCostWithBreakdown(durationMinutes int32, game *domain.Game) (RentalCostBreakdown, error) {
	if game == nil {
		return RentalCostBreakdown{}, fmt.Errorf("game is required")
	}
	if durationMinutes < domain.MinDurationMinutes {
		return RentalCostBreakdown{}, fmt.Errorf("duration must be at least %d minutes, got %d", domain.MinDurationMinutes, durationMinutes)
	}
	if game.PricePerBlockCents < 0 {
		return RentalCostBreakdown{}, fmt.Errorf("game %d has a negative price", game.ID)
	}

	blockMinutes := game.BlockMinutes
	if blockMinutes <= 0 {
		blockMinutes = domain.DefaultBlockMinutes
	}
	blocks := BlocksFor(durationMinutes, blockMinutes)
	return RentalCostBreakdown{
		DurationMinutes:    durationMinutes,
		BlockMinutes:       blockMinutes,
		Blocks:             blocks,
		PricePerBlockCents: game.PricePerBlockCents,
		TotalCents:         blocks * game.PricePerBlockCents,
	}, nil
}
