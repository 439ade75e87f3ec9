package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"rifa/api/internal/models"
)

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	var created, updated string
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CPF, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func CustomerByID(db *sql.DB, id string) (*models.Customer, error) {
	return scanCustomer(db.QueryRow(`SELECT id, name, email, phone, cpf, created_at, updated_at FROM customers WHERE id = ?`, id))
}

// CustomerByMatchTx looks a customer up by the configured match fields
// (OR semantics, first row wins). Empty values never match.
func CustomerByMatchTx(tx *sql.Tx, matchFields []string, email, phone, cpf string) (*models.Customer, error) {
	values := map[string]string{"email": email, "phone": phone, "cpf": cpf}

	var conds []string
	var args []interface{}
	for _, f := range matchFields {
		f = strings.TrimSpace(strings.ToLower(f))
		v, ok := values[f]
		if !ok || v == "" {
			continue
		}
		conds = append(conds, f+" = ?")
		args = append(args, v)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, email, phone, cpf, created_at, updated_at FROM customers WHERE ` +
		strings.Join(conds, " OR ") + ` LIMIT 1`
	return scanCustomer(tx.QueryRow(query, args...))
}

func CreateCustomerTx(tx *sql.Tx, name, email, phone, cpf string) (string, error) {
	id := uuid.New().String()
	now := formatTime(time.Now())
	_, err := tx.Exec(`INSERT INTO customers (id, name, email, phone, cpf, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, email, phone, cpf, now, now)
	return id, err
}

// UpdateCustomerTx refreshes the mutable buyer fields on a repeat purchase.
func UpdateCustomerTx(tx *sql.Tx, id, name, cpf string) error {
	_, err := tx.Exec(`UPDATE customers SET name = ?, cpf = ?, updated_at = ? WHERE id = ?`,
		name, cpf, formatTime(time.Now()), id)
	return err
}
