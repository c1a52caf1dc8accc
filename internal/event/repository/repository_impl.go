package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/event/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const eventColumns = `id, organizer_id, slug, title, description, start_date, end_date, timezone,
	location, is_virtual, meeting_url, capacity, status, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.OrganizerID,
		event.Slug,
		event.Title,
		event.Description,
		event.StartDate,
		event.EndDate,
		event.Timezone,
		event.Location,
		event.IsVirtual,
		event.MeetingURL,
		event.Capacity,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`UPDATE events
		 SET title = ?, description = ?, start_date = ?, end_date = ?, timezone = ?,
			location = ?, is_virtual = ?, meeting_url = ?, capacity = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		event.Title,
		event.Description,
		event.StartDate,
		event.EndDate,
		event.Timezone,
		event.Location,
		event.IsVirtual,
		event.MeetingURL,
		event.Capacity,
		event.Status,
		event.UpdatedAt,
		event.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM events WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM events
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

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE slug = ?
		 LIMIT 1`,
		slug,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM events WHERE slug = ?`, slug).Scan(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Event, int64, error) {
	where := []string{"organizer_id = ?"}
	args := []interface{}{filter.OrganizerID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	whereSQL := strings.Join(where, " AND ")

	var total int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM events WHERE `+whereSQL, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Event
	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE `+whereSQL+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		pageArgs...,
	).Scan(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListUpcoming(ctx context.Context, db *gorm.DB, organizerID snowflake.ID, from time.Time, limit int) ([]domain.Event, error) {
	var items []domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE organizer_id = ? AND status = ? AND start_date >= ?
		 ORDER BY start_date ASC
		 LIMIT ?`,
		organizerID,
		domain.StatusPublished,
		from,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) FindOrganizer(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Organizer, error) {
	var item domain.Organizer
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email FROM users WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM events WHERE organizer_id = ?`, organizerID).Scan(&count).Error
	return count, err
}

func (r *repo) InsertAnalytics(ctx context.Context, db *gorm.DB, analytics *domain.Analytics) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO event_analytics (event_id, page_views, total_revenue, updated_at)
		 VALUES (?, ?, ?, ?)`,
		analytics.EventID,
		analytics.PageViews,
		analytics.TotalRevenue,
		analytics.UpdatedAt,
	).Error
}

func (r *repo) FindAnalytics(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*domain.Analytics, error) {
	var item domain.Analytics
	err := db.WithContext(ctx).Raw(
		`SELECT event_id, page_views, total_revenue, updated_at
		 FROM event_analytics
		 WHERE event_id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.EventID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) IncrementPageViews(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE event_analytics
		 SET page_views = page_views + 1, updated_at = ?
		 WHERE event_id = ?`,
		time.Now().UTC(),
		eventID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) AddRevenue(ctx context.Context, db *gorm.DB, eventID snowflake.ID, amount float64) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Exec(
		`UPDATE event_analytics
		 SET total_revenue = total_revenue + ?, updated_at = ?
		 WHERE event_id = ?`,
		amount,
		now,
		eventID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// events created before analytics rows existed
	return r.InsertAnalytics(ctx, db, &domain.Analytics{EventID: eventID, TotalRevenue: amount, UpdatedAt: now})
}

func (r *repo) SumRevenueByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(a.total_revenue), 0)
		 FROM event_analytics a
		 JOIN events e ON e.id = a.event_id
		 WHERE e.organizer_id = ?`,
		organizerID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) DeleteAnalytics(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM event_analytics WHERE event_id = ?`, eventID).Error
}
