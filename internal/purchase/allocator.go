package purchase

import (
	"database/sql"
	"fmt"
	"math/rand"

	"rifa/api/internal/models"
	"rifa/api/internal/repository"
)

// randomAttemptsPerNumber caps how many random probes are spent per
// requested number before falling back to scanning the free set. Keeps
// allocation fast near sell-out instead of looping unbounded.
const randomAttemptsPerNumber = 20

// AllocateNumbers picks quantity distinct unused numbers in [1, maxTickets]
// for a raffle. It reads the used set inside the caller's transaction, so
// combined with the (raffle_id, number) unique constraint two concurrent
// purchases can never end up with the same number.
func AllocateNumbers(tx *sql.Tx, raffleID string, maxTickets, quantity int) ([]int, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrInvalidOperation)
	}

	used, err := repository.UsedNumbersTx(tx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load used numbers: %w", err)
	}

	available := maxTickets - len(used)
	if quantity > available {
		return nil, fmt.Errorf("%w: not enough tickets available (requested %d, available %d)",
			models.ErrInvalidOperation, quantity, available)
	}

	picked := make([]int, 0, quantity)
	for attempts := quantity * randomAttemptsPerNumber; attempts > 0 && len(picked) < quantity; attempts-- {
		n := rand.Intn(maxTickets) + 1
		if used[n] {
			continue
		}
		used[n] = true
		picked = append(picked, n)
	}

	// near sell-out the random probes collide too often; take the rest
	// from a shuffled scan of the free numbers
	if len(picked) < quantity {
		var free []int
		for n := 1; n <= maxTickets; n++ {
			if !used[n] {
				free = append(free, n)
			}
		}
		rand.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		picked = append(picked, free[:quantity-len(picked)]...)
	}

	return picked, nil
}
