package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/ticket/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tickets (id, event_id, name, description, price, quantity, sold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID,
		ticket.EventID,
		ticket.Name,
		ticket.Description,
		ticket.Price,
		ticket.Quantity,
		ticket.Sold,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Ticket, error) {
	var item domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, name, description, price, quantity, sold, created_at, updated_at
		 FROM tickets
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindForEventForUpdate(ctx context.Context, db *gorm.DB, eventID, ticketID snowflake.ID) (*domain.Ticket, error) {
	var item domain.Ticket
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ? AND event_id = ?", ticketID, eventID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]domain.Ticket, error) {
	var items []domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, name, description, price, quantity, sold, created_at, updated_at
		 FROM tickets
		 WHERE event_id = ?
		 ORDER BY price ASC, id ASC`,
		eventID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) ListByEvents(ctx context.Context, db *gorm.DB, eventIDs []snowflake.ID) ([]domain.Ticket, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var items []domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_id, name, description, price, quantity, sold, created_at, updated_at
		 FROM tickets
		 WHERE event_id IN ?
		 ORDER BY event_id ASC, price ASC, id ASC`,
		eventIDs,
	).Scan(&items).Error
	return items, err
}

func (r *repo) IncrementSold(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int, guarded bool) (bool, error) {
	query := `UPDATE tickets
		 SET sold = sold + ?, updated_at = ?
		 WHERE id = ?`
	args := []interface{}{qty, time.Now().UTC(), id}
	if guarded {
		query += ` AND (quantity IS NULL OR sold + ? <= quantity)`
		args = append(args, qty)
	}
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeleteByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM tickets WHERE event_id = ?`, eventID).Error
}
