package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/registration/domain"
	"gorm.io/gorm"
)

const registrationColumns = `r.id, r.event_id, r.user_id, r.ticket_id, r.quantity, r.status, r.checked_in,
	r.checked_in_at, r.qr_code, r.stripe_payment_id, r.created_at, r.updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, registration *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (
			id, event_id, user_id, ticket_id, quantity, status, checked_in,
			checked_in_at, qr_code, stripe_payment_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		registration.ID,
		registration.EventID,
		registration.UserID,
		registration.TicketID,
		registration.Quantity,
		registration.Status,
		registration.CheckedIn,
		registration.CheckedInAt,
		registration.QRCode,
		registration.StripePaymentID,
		registration.CreatedAt,
		registration.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Registration, error) {
	return r.findOne(ctx, db, `r.id = ?`, id)
}

func (r *repo) FindByQRCode(ctx context.Context, db *gorm.DB, eventID snowflake.ID, code string) (*domain.Registration, error) {
	return r.findOne(ctx, db, `r.qr_code = ? AND r.event_id = ?`, code, eventID)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, eventID snowflake.ID, email string) (*domain.Registration, error) {
	var item domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.event_id = ? AND LOWER(u.email) = ?
		 ORDER BY CASE WHEN r.status = 'CANCELLED' THEN 1 ELSE 0 END, r.created_at DESC
		 LIMIT 1`,
		eventID,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...interface{}) (*domain.Registration, error) {
	var item domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`
		 FROM registrations r
		 WHERE `+where+`
		 LIMIT 1`,
		args...,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status IN (?, ?)`,
		eventID,
		domain.StatusConfirmed,
		domain.StatusPending,
	).Scan(&count).Error
	return count, err
}

func (r *repo) HasActive(ctx context.Context, db *gorm.DB, eventID, userID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND user_id = ? AND status <> ?`,
		eventID,
		userID,
		domain.StatusCancelled,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) ExistsForEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM registrations WHERE event_id = ?`, eventID).Scan(&count).Error
	return count > 0, err
}

func (r *repo) TransitionBySession(ctx context.Context, db *gorm.DB, sessionID string, from, to domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = ?, updated_at = ?
		 WHERE stripe_payment_id = ? AND status = ?`,
		to,
		now,
		sessionID,
		from,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ApplyChange(ctx context.Context, db *gorm.DB, id snowflake.ID, change domain.Change, now time.Time) (int64, error) {
	var res *gorm.DB
	if change.CheckIn {
		res = db.WithContext(ctx).Exec(
			`UPDATE registrations
			 SET checked_in = ?, checked_in_at = ?, updated_at = ?
			 WHERE id = ? AND status = ? AND checked_in = ?`,
			true,
			now,
			now,
			id,
			domain.StatusConfirmed,
			false,
		)
	} else {
		query := `UPDATE registrations
			 SET status = ?, updated_at = ?
			 WHERE id = ? AND status = ?`
		if change.From == domain.StatusConfirmed && change.To == domain.StatusCancelled {
			query += ` AND checked_in = FALSE`
		}
		res = db.WithContext(ctx).Exec(query, change.To, now, id, change.From)
	}
	if res.Error != nil {
		return 0, fmt.Errorf("apply %s: %w", change.Action, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Owned, error) {
	var items []domain.Owned
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`,
			e.title AS event_title, e.slug AS event_slug, e.start_date AS event_start_date,
			e.location AS event_location, e.is_virtual AS event_is_virtual,
			t.name AS ticket_name, t.price AS ticket_price
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 LEFT JOIN tickets t ON t.id = r.ticket_id
		 WHERE r.user_id = ?
		 ORDER BY r.created_at DESC, r.id DESC`,
		userID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) FindAttendee(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Attendee, error) {
	var item domain.Attendee
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`,
			u.name AS user_name, u.email AS user_email,
			t.name AS ticket_name, t.price AS ticket_price
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 LEFT JOIN tickets t ON t.id = r.ticket_id
		 WHERE r.id = ?
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

func (r *repo) FindOwned(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Owned, error) {
	var item domain.Owned
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`,
			e.title AS event_title, e.slug AS event_slug, e.start_date AS event_start_date,
			e.location AS event_location, e.is_virtual AS event_is_virtual,
			t.name AS ticket_name, t.price AS ticket_price
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 LEFT JOIN tickets t ON t.id = r.ticket_id
		 WHERE r.id = ?
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

func (r *repo) ListAttendees(ctx context.Context, db *gorm.DB, eventID snowflake.ID, filter domain.AttendeeFilter) ([]domain.Attendee, error) {
	where := []string{"r.event_id = ?"}
	args := []interface{}{eventID}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}
	if filter.CheckedIn != nil {
		where = append(where, "r.checked_in = ?")
		args = append(args, *filter.CheckedIn)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		where = append(where, "(LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	var items []domain.Attendee
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`,
			u.name AS user_name, u.email AS user_email,
			t.name AS ticket_name, t.price AS ticket_price
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 LEFT JOIN tickets t ON t.id = r.ticket_id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY r.created_at DESC, r.id DESC`,
		args...,
	).Scan(&items).Error
	return items, err
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (domain.Stats, error) {
	var row struct {
		Confirmed int64
		Pending   int64
		Cancelled int64
		CheckedIn int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN 1 ELSE 0 END), 0) AS confirmed,
			COALESCE(SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = 'CANCELLED' THEN 1 ELSE 0 END), 0) AS cancelled,
			COALESCE(SUM(CASE WHEN checked_in THEN 1 ELSE 0 END), 0) AS checked_in
		 FROM registrations
		 WHERE event_id = ?`,
		eventID,
	).Scan(&row).Error
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Total:     row.Confirmed + row.Pending + row.Cancelled,
		Confirmed: row.Confirmed,
		Pending:   row.Pending,
		Cancelled: row.Cancelled,
		CheckedIn: row.CheckedIn,
	}, nil
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]domain.Registration, error) {
	var items []domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`
		 FROM registrations r
		 WHERE r.event_id = ?
		 ORDER BY r.created_at ASC, r.id ASC`,
		eventID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) ListBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Registration, error) {
	var items []domain.Registration
	err := db.WithContext(ctx).Raw(
		`SELECT `+registrationColumns+`
		 FROM registrations r
		 WHERE r.stripe_payment_id = ?
		 ORDER BY r.created_at ASC, r.id ASC`,
		sessionID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) CountByEvents(ctx context.Context, db *gorm.DB, eventIDs []snowflake.ID) (map[snowflake.ID]int64, error) {
	counts := make(map[snowflake.ID]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		EventID snowflake.ID
		Total   int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT event_id, COUNT(*) AS total
		 FROM registrations
		 WHERE event_id IN ?
		 GROUP BY event_id`,
		eventIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.EventID] = row.Total
	}
	return counts, nil
}

func (r *repo) CountConfirmedByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE e.organizer_id = ? AND r.status = ?`,
		organizerID,
		domain.StatusConfirmed,
	).Scan(&count).Error
	return count, err
}
