package purchase

import (
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"rifa/api/internal/models"
	"rifa/api/internal/repository"
)

func seedCustomer(t *testing.T, database *sql.DB) string {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	id, err := repository.CreateCustomerTx(tx, "Maria", "maria@example.com", "11987654321", "12345678900")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return id
}

func seedTickets(t *testing.T, database *sql.DB, raffleID, customerID string, numbers []int) {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, n := range numbers {
		if _, err := repository.CreateTicketTx(tx, raffleID, customerID, "", n); err != nil {
			t.Fatalf("create ticket %d: %v", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func allocate(t *testing.T, database *sql.DB, raffleID string, maxTickets, quantity int) ([]int, error) {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	return AllocateNumbers(tx, raffleID, maxTickets, quantity)
}

func TestAllocateNumbers(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 100, time.Now().Add(48*time.Hour))

	numbers, err := allocate(t, database, raffleID, 100, 10)
	if err != nil {
		t.Fatalf("AllocateNumbers() error = %v", err)
	}
	if len(numbers) != 10 {
		t.Fatalf("len(numbers) = %d, want 10", len(numbers))
	}
	seen := make(map[int]bool)
	for _, n := range numbers {
		if n < 1 || n > 100 {
			t.Errorf("number %d out of range [1, 100]", n)
		}
		if seen[n] {
			t.Errorf("duplicated number %d", n)
		}
		seen[n] = true
	}
}

func TestAllocateNumbersSkipsUsed(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 100, time.Now().Add(48*time.Hour))
	customerID := seedCustomer(t, database)

	// occupy 1..95 so only 96..100 remain
	var used []int
	for n := 1; n <= 95; n++ {
		used = append(used, n)
	}
	seedTickets(t, database, raffleID, customerID, used)

	numbers, err := allocate(t, database, raffleID, 100, 5)
	if err != nil {
		t.Fatalf("AllocateNumbers() error = %v", err)
	}
	sort.Ints(numbers)
	want := []int{96, 97, 98, 99, 100}
	if len(numbers) != len(want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("numbers = %v, want %v", numbers, want)
		}
	}
}

func TestAllocateNumbersNotEnoughAvailable(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 10, time.Now().Add(48*time.Hour))
	customerID := seedCustomer(t, database)
	seedTickets(t, database, raffleID, customerID, []int{1, 2, 3, 4, 5, 6, 7, 8})

	_, err := allocate(t, database, raffleID, 10, 3)
	if !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("error = %v, want ErrInvalidOperation", err)
	}
}

func TestAllocateNumbersInvalidQuantity(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 10, time.Now().Add(48*time.Hour))

	_, err := allocate(t, database, raffleID, 10, 0)
	if !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("error = %v, want ErrInvalidOperation", err)
	}
}
