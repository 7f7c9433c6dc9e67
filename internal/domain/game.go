package domain

type GameKind string

const (
	GameKindVehicle GameKind = "vehicle"
	GameKindGame    GameKind = "game"
)

// DefaultBlockMinutes is the billing block used when a game has none configured.
const DefaultBlockMinutes = 15

type Game struct {
	ID                 int64    `json:"id"`
	BranchID           int64    `json:"branch_id"`
	Name               string   `json:"name"`
	Kind               GameKind `json:"kind"`
	PricePerBlockCents int64    `json:"price_per_block_cents"`
	BlockMinutes       int32    `json:"block_minutes"`
	Active             bool     `json:"active"`
}

type Branch struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ManagerEmail string `json:"manager_email"`
}

// RevenueLine is one game's takings over a report period.
type RevenueLine struct {
	BranchID       int64  `json:"branch_id"`
	GameID         int64  `json:"game_id"`
	GameName       string `json:"game_name"`
	Rentals        int64  `json:"rentals"`
	Minutes        int64  `json:"minutes"`
	BilledCents    int64  `json:"billed_cents"`
	CollectedCents int64  `json:"collected_cents"`
}
