package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type AdminRow struct {
	ID           string
	Email        string
	PasswordHash string
}

func AdminByEmail(db *sql.DB, email string) (*AdminRow, error) {
	var a AdminRow
	err := db.QueryRow(`SELECT id, email, password_hash FROM admins WHERE email = ?`, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func UpsertAdmin(db *sql.DB, email, passwordHash string) error {
	_, err := db.Exec(`INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET password_hash = excluded.password_hash`,
		uuid.New().String(), email, passwordHash, formatTime(time.Now()))
	return err
}
