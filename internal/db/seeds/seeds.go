package seeds

import (
	"database/sql"
	"fmt"
	"time"

	"rifa/api/internal/auth"
	"rifa/api/internal/models"
	"rifa/api/internal/repository"
)

// Run clears raffle data and inserts fresh seed data. Safe to run multiple
// times (resets to seed state). The admin account always reflects the
// configured credentials.
func Run(db *sql.DB, adminEmail, adminPassword string) error {
	if err := clear(db); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := insert(db, adminEmail, adminPassword); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func clear(db *sql.DB) error {
	tables := []string{
		"email_logs", "webhook_events", "draws",
		"tickets", "payments", "customers", "raffles",
	}
	for _, t := range tables {
		if _, err := db.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("delete %s: %w", t, err)
		}
	}
	return nil
}

func insert(db *sql.DB, adminEmail, adminPassword string) error {
	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := repository.UpsertAdmin(db, adminEmail, passwordHash); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}

	now := time.Now()
	raffles := []models.Raffle{
		{
			ID:           "seed-raffle-1",
			Name:         "Rifa do iPhone",
			TicketPrice:  1000,   // R$ 10,00
			PrizeValue:   500000, // R$ 5.000,00
			MinTickets:   1,
			MaxTickets:   100,
			StartDate:    now,
			EndDate:      now.Add(30 * 24 * time.Hour),
			DrawDateTime: now.Add(31 * 24 * time.Hour),
		},
		{
			ID:           "seed-raffle-2",
			Name:         "Rifa da Churrasqueira",
			TicketPrice:  500,   // R$ 5,00
			PrizeValue:   80000, // R$ 800,00
			MinTickets:   1,
			MaxTickets:   50,
			StartDate:    now,
			EndDate:      now.Add(15 * 24 * time.Hour),
			DrawDateTime: now.Add(16 * 24 * time.Hour),
		},
	}
	for i := range raffles {
		if _, err := repository.CreateRaffle(db, &raffles[i]); err != nil {
			return fmt.Errorf("insert raffle %s: %w", raffles[i].ID, err)
		}
	}
	return nil
}
