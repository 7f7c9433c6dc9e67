package aggregator

import (
	"sync"

	"rentalshop-trusted/internal/domain"
)

// Board is the in-memory read replica of open rentals for one branch view.
// It keeps a stable display order across refreshes.
type Board struct {
	mu      sync.RWMutex
	order   []int64
	rentals map[int64]domain.Rental
}

func NewBoard() *Board {
	return &Board{rentals: make(map[int64]domain.Rental)}
}

// Replace installs a fresh poll result. Ids already on the board keep their
// position, new ids are appended, ids absent from rentals are dropped. Closed
// rentals in the input are ignored.
func (b *Board) Replace(rentals []domain.Rental) {
	incoming := make(map[int64]domain.Rental, len(rentals))
	var fresh []int64
	for _, r := range rentals {
		if r.Status.IsTerminal() {
			continue
		}
		if _, dup := incoming[r.ID]; !dup {
			fresh = append(fresh, r.ID)
		}
		incoming[r.ID] = r
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := make([]int64, 0, len(incoming))
	for _, id := range b.order {
		if _, ok := incoming[id]; ok {
			order = append(order, id)
		}
	}
	for _, id := range fresh {
		if _, had := b.rentals[id]; !had {
			order = append(order, id)
		}
	}
	b.order = order
	b.rentals = incoming
}

// Upsert stores a confirmed rental. A terminal status removes it.
func (b *Board) Upsert(r domain.Rental) {
	if r.Status.IsTerminal() {
		b.Remove(r.ID)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rentals[r.ID]; !ok {
		b.order = append(b.order, r.ID)
	}
	b.rentals[r.ID] = r
}

func (b *Board) Remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rentals[id]; !ok {
		return
	}
	delete(b.rentals, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Board) Get(id int64) (domain.Rental, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rentals[id]
	return r, ok
}

// List returns a copy of the board in display order.
func (b *Board) List() []domain.Rental {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Rental, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.rentals[id])
	}
	return out
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}
