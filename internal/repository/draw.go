package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rifa/api/internal/models"
)

func CreateDrawTx(tx *sql.Tx, raffleID, winningNumber string, at time.Time) (string, error) {
	id := uuid.New().String()
	_, err := tx.Exec(`INSERT INTO draws (id, raffle_id, draw_date, winning_number) VALUES (?, ?, ?, ?)`,
		id, raffleID, formatTime(at), winningNumber)
	return id, err
}

func DrawsByRaffle(db *sql.DB, raffleID string) ([]models.Draw, error) {
	rows, err := db.Query(`SELECT id, raffle_id, draw_date, winning_number FROM draws WHERE raffle_id = ? ORDER BY draw_date`, raffleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Draw
	for rows.Next() {
		var d models.Draw
		var date string
		if err := rows.Scan(&d.ID, &d.RaffleID, &date, &d.WinningNumber); err != nil {
			return nil, err
		}
		d.DrawDate = parseTime(date)
		list = append(list, d)
	}
	return list, rows.Err()
}

// DeletePendingDraws removes draw rows that never got a winning number.
// Executed draws are never deleted.
func DeletePendingDraws(db *sql.DB, raffleID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM draws WHERE raffle_id = ? AND winning_number = ''`, raffleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
