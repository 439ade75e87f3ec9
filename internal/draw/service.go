package draw

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"rifa/api/internal/models"
	"rifa/api/internal/notify"
	"rifa/api/internal/repository"
)

// Service runs raffle draws: execution, cancellation, scheduling and the
// win-probability preview.
type Service struct {
	db       *sql.DB
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(db *sql.DB, notifier notify.Notifier) *Service {
	return &Service{db: db, notifier: notifier, now: time.Now}
}

// Result is the outcome of an executed draw.
type Result struct {
	DrawID        string           `json:"draw_id"`
	WinningNumber string           `json:"winning_number"`
	Winner        *models.Customer `json:"winner"`
	PrizeValue    int64            `json:"prize_value"` // centavos
}

// ParticipantOdds is one row of the draw preview.
type ParticipantOdds struct {
	Customer    *models.Customer `json:"customer"`
	Numbers     []int            `json:"numbers"`
	TicketCount int              `json:"ticket_count"`
	WinChance   float64          `json:"win_chance"` // percent
}

// Preview is the read-only projection of the current odds.
type Preview struct {
	RaffleID     string            `json:"raffle_id"`
	TotalTickets int               `json:"total_tickets"`
	Participants []ParticipantOdds `json:"participants"`
}

// Execute picks one valid ticket uniformly at random. Every valid ticket
// has equal weight, so a customer holding more tickets wins proportionally
// more often. The winning number is recorded on both the draw row and the
// raffle; the rows-affected guard on the raffle update makes a concurrent
// double execution lose.
func (s *Service) Execute(ctx context.Context, raffleID string) (*Result, error) {
	raffle, err := repository.RaffleByID(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return nil, fmt.Errorf("%w: raffle %s", models.ErrNotFound, raffleID)
	}
	if raffle.WinningNumber != "" {
		return nil, fmt.Errorf("%w: draw already executed", models.ErrInvalidOperation)
	}

	tickets, err := repository.ValidTicketsByRaffle(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load valid tickets: %w", err)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("%w: no valid tickets to draw", models.ErrInvalidOperation)
	}

	winning := tickets[rand.Intn(len(tickets))]
	winningNumber := strconv.Itoa(winning.Number)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin draw: %w", err)
	}
	defer tx.Rollback()

	claimed, err := repository.SetRaffleWinningNumberTx(tx, raffleID, winningNumber)
	if err != nil {
		return nil, fmt.Errorf("set winning number: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: draw already executed", models.ErrInvalidOperation)
	}

	drawID, err := repository.CreateDrawTx(tx, raffleID, winningNumber, s.now())
	if err != nil {
		return nil, fmt.Errorf("create draw record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit draw: %w", err)
	}

	winner, err := repository.CustomerByID(s.db, winning.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load winner: %w", err)
	}

	log.WithFields(log.Fields{
		"raffle_id":      raffleID,
		"draw_id":        drawID,
		"winning_number": winningNumber,
		"winner":         winning.CustomerID,
	}).Info("draw executed")

	// the draw result is already durable; notification failures never
	// propagate
	s.notifyResult(ctx, raffle, tickets, winningNumber, winner)

	return &Result{
		DrawID:        drawID,
		WinningNumber: winningNumber,
		Winner:        winner,
		PrizeValue:    raffle.PrizeValue,
	}, nil
}

func (s *Service) notifyResult(ctx context.Context, raffle *models.Raffle, tickets []models.Ticket, winningNumber string, winner *models.Customer) {
	recipients, err := participants(s.db, tickets)
	if err != nil {
		log.WithError(err).WithField("raffle_id", raffle.ID).Error("load participants for notification failed")
	}

	data := notify.DrawData{
		RaffleName:    raffle.Name,
		WinningNumber: winningNumber,
		PrizeValue:    raffle.PrizeValue,
		Recipients:    recipients,
	}
	if winner != nil {
		data.WinnerName = winner.Name
		data.WinnerEmail = winner.Email
	}

	if err := s.notifier.DrawResult(ctx, data); err != nil {
		log.WithError(err).WithField("raffle_id", raffle.ID).Error("draw result notification failed")
	}
	if err := s.notifier.WinnerNotification(ctx, data); err != nil {
		log.WithError(err).WithField("raffle_id", raffle.ID).Error("winner notification failed")
	}
}

// participants returns the distinct customers holding the given tickets.
func participants(db *sql.DB, tickets []models.Ticket) ([]notify.Recipient, error) {
	seen := make(map[string]bool)
	var recipients []notify.Recipient
	for _, t := range tickets {
		if seen[t.CustomerID] {
			continue
		}
		seen[t.CustomerID] = true
		c, err := repository.CustomerByID(db, t.CustomerID)
		if err != nil {
			return recipients, err
		}
		if c != nil {
			recipients = append(recipients, notify.Recipient{Name: c.Name, Email: c.Email})
		}
	}
	return recipients, nil
}

// Cancel unschedules a raffle's draw by removing draw rows that never got a
// winning number. An executed draw cannot be cancelled. Cancelling a draw
// does not retire the raffle; soft-deleting a raffle is a separate admin
// operation.
func (s *Service) Cancel(ctx context.Context, raffleID string) error {
	raffle, err := repository.RaffleByID(s.db, raffleID)
	if err != nil {
		return fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return fmt.Errorf("%w: raffle %s", models.ErrNotFound, raffleID)
	}
	if raffle.WinningNumber != "" {
		return fmt.Errorf("%w: draw already executed", models.ErrInvalidOperation)
	}

	removed, err := repository.DeletePendingDraws(s.db, raffleID)
	if err != nil {
		return fmt.Errorf("delete pending draws: %w", err)
	}
	log.WithFields(log.Fields{"raffle_id": raffleID, "removed": removed}).Info("draw cancelled")
	return nil
}

// Schedule updates the raffle's draw time. The new time must be in the
// future; no scheduler is triggered here, the reminder sweep picks it up.
func (s *Service) Schedule(ctx context.Context, raffleID string, at time.Time) error {
	if !at.After(s.now()) {
		return fmt.Errorf("%w: draw time must be in the future", models.ErrInvalidOperation)
	}
	raffle, err := repository.RaffleByID(s.db, raffleID)
	if err != nil {
		return fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return fmt.Errorf("%w: raffle %s", models.ErrNotFound, raffleID)
	}
	if at.Before(raffle.EndDate) {
		return fmt.Errorf("%w: draw time must not precede the end of sales", models.ErrInvalidOperation)
	}
	if err := repository.SetRaffleDrawDateTime(s.db, raffleID, at); err != nil {
		return fmt.Errorf("set draw time: %w", err)
	}
	log.WithFields(log.Fields{"raffle_id": raffleID, "draw_at": at}).Info("draw scheduled")
	return nil
}

// GetPreview groups valid tickets by customer and computes each customer's
// win probability. Read-only, no side effects.
func (s *Service) GetPreview(ctx context.Context, raffleID string) (*Preview, error) {
	raffle, err := repository.RaffleByID(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil {
		return nil, fmt.Errorf("%w: raffle %s", models.ErrNotFound, raffleID)
	}

	tickets, err := repository.ValidTicketsByRaffle(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load valid tickets: %w", err)
	}

	byCustomer := make(map[string][]int)
	for _, t := range tickets {
		byCustomer[t.CustomerID] = append(byCustomer[t.CustomerID], t.Number)
	}

	preview := &Preview{RaffleID: raffleID, TotalTickets: len(tickets)}
	for customerID, numbers := range byCustomer {
		c, err := repository.CustomerByID(s.db, customerID)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		sort.Ints(numbers)
		preview.Participants = append(preview.Participants, ParticipantOdds{
			Customer:    c,
			Numbers:     numbers,
			TicketCount: len(numbers),
			WinChance:   float64(len(numbers)) / float64(len(tickets)) * 100,
		})
	}
	sort.Slice(preview.Participants, func(i, j int) bool {
		return preview.Participants[i].TicketCount > preview.Participants[j].TicketCount
	})
	return preview, nil
}

// RemindUpcoming sends one reminder per raffle drawing within the horizon.
// Called from the hourly background sweep.
func (s *Service) RemindUpcoming(ctx context.Context, horizon time.Duration) error {
	raffles, err := repository.RafflesNeedingReminder(s.db, s.now(), horizon)
	if err != nil {
		return fmt.Errorf("select raffles for reminder: %w", err)
	}

	for i := range raffles {
		raffle := &raffles[i]
		tickets, err := repository.ValidTicketsByRaffle(s.db, raffle.ID)
		if err != nil {
			log.WithError(err).WithField("raffle_id", raffle.ID).Error("load tickets for reminder failed")
			continue
		}
		if len(tickets) == 0 {
			continue
		}
		recipients, err := participants(s.db, tickets)
		if err != nil {
			log.WithError(err).WithField("raffle_id", raffle.ID).Error("load participants for reminder failed")
			continue
		}

		if err := s.notifier.DrawReminder(ctx, notify.DrawData{
			RaffleName: raffle.Name,
			PrizeValue: raffle.PrizeValue,
			Recipients: recipients,
		}); err != nil {
			log.WithError(err).WithField("raffle_id", raffle.ID).Error("draw reminder failed")
			continue
		}
		if err := repository.MarkReminderSent(s.db, raffle.ID); err != nil {
			log.WithError(err).WithField("raffle_id", raffle.ID).Error("mark reminder sent failed")
		}
	}
	return nil
}
