package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rifa/api/internal/models"
)

const raffleColumns = `id, name, ticket_price, prize_value, min_tickets, max_tickets,
	start_date, end_date, draw_date_time, winning_number, reminder_sent, deleted, created_at`

func scanRaffle(row *sql.Row) (*models.Raffle, error) {
	var r models.Raffle
	var start, end, draw, created string
	err := row.Scan(&r.ID, &r.Name, &r.TicketPrice, &r.PrizeValue, &r.MinTickets, &r.MaxTickets,
		&start, &end, &draw, &r.WinningNumber, &r.ReminderSent, &r.Deleted, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.StartDate = parseTime(start)
	r.EndDate = parseTime(end)
	r.DrawDateTime = parseTime(draw)
	r.CreatedAt = parseTime(created)
	return &r, nil
}

func CreateRaffle(db *sql.DB, r *models.Raffle) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := db.Exec(`INSERT INTO raffles (id, name, ticket_price, prize_value, min_tickets, max_tickets,
		start_date, end_date, draw_date_time, winning_number, reminder_sent, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, 0, ?)`,
		r.ID, r.Name, r.TicketPrice, r.PrizeValue, r.MinTickets, r.MaxTickets,
		formatTime(r.StartDate), formatTime(r.EndDate), formatTime(r.DrawDateTime), formatTime(time.Now()),
	)
	return r.ID, err
}

func RaffleByID(db *sql.DB, id string) (*models.Raffle, error) {
	return scanRaffle(db.QueryRow(`SELECT `+raffleColumns+` FROM raffles WHERE id = ?`, id))
}

func ListRaffles(db *sql.DB, includeDeleted bool) ([]models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Raffle
	for rows.Next() {
		var r models.Raffle
		var start, end, draw, created string
		if err := rows.Scan(&r.ID, &r.Name, &r.TicketPrice, &r.PrizeValue, &r.MinTickets, &r.MaxTickets,
			&start, &end, &draw, &r.WinningNumber, &r.ReminderSent, &r.Deleted, &created); err != nil {
			return nil, err
		}
		r.StartDate = parseTime(start)
		r.EndDate = parseTime(end)
		r.DrawDateTime = parseTime(draw)
		r.CreatedAt = parseTime(created)
		list = append(list, r)
	}
	return list, rows.Err()
}

// SetRaffleWinningNumberTx records the draw result on the raffle. Only an
// undrawn raffle can be updated (rows affected guards a double draw).
func SetRaffleWinningNumberTx(tx *sql.Tx, raffleID, number string) (bool, error) {
	res, err := tx.Exec(`UPDATE raffles SET winning_number = ? WHERE id = ? AND winning_number = ''`, number, raffleID)
	if err != nil {
		return false, err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return ra == 1, nil
}

func SetRaffleDrawDateTime(db *sql.DB, raffleID string, at time.Time) error {
	_, err := db.Exec(`UPDATE raffles SET draw_date_time = ? WHERE id = ?`, formatTime(at), raffleID)
	return err
}

func SoftDeleteRaffle(db *sql.DB, raffleID string) error {
	_, err := db.Exec(`UPDATE raffles SET deleted = 1 WHERE id = ?`, raffleID)
	return err
}

// RafflesNeedingReminder returns undrawn, undeleted raffles whose draw falls
// within the given horizon and that were not reminded yet.
func RafflesNeedingReminder(db *sql.DB, now time.Time, horizon time.Duration) ([]models.Raffle, error) {
	rows, err := db.Query(`SELECT `+raffleColumns+` FROM raffles
		WHERE deleted = 0 AND reminder_sent = 0 AND winning_number = ''
		AND draw_date_time > ? AND draw_date_time <= ?`,
		formatTime(now), formatTime(now.Add(horizon)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Raffle
	for rows.Next() {
		var r models.Raffle
		var start, end, draw, created string
		if err := rows.Scan(&r.ID, &r.Name, &r.TicketPrice, &r.PrizeValue, &r.MinTickets, &r.MaxTickets,
			&start, &end, &draw, &r.WinningNumber, &r.ReminderSent, &r.Deleted, &created); err != nil {
			return nil, err
		}
		r.StartDate = parseTime(start)
		r.EndDate = parseTime(end)
		r.DrawDateTime = parseTime(draw)
		r.CreatedAt = parseTime(created)
		list = append(list, r)
	}
	return list, rows.Err()
}

func MarkReminderSent(db *sql.DB, raffleID string) error {
	_, err := db.Exec(`UPDATE raffles SET reminder_sent = 1 WHERE id = ?`, raffleID)
	return err
}
