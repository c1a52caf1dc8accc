package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/notification/domain"
	"github.com/smallbiznis/eventflow/internal/observability/logger"
	"github.com/smallbiznis/eventflow/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Email email.Provider
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	email  email.Provider
	clock  clock.Clock
	appURL string
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("notification.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		email:  p.Email,
		clock:  p.Clock,
		appURL: p.Cfg.AppURL,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (*domain.Notification, error) {
	if req.UserID == 0 || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrInvalidInput
	}
	if tx == nil {
		tx = s.db
	}

	item := domain.Notification{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		CreatedAt: s.clock.Now(),
	}
	if link := strings.TrimSpace(req.Link); link != "" {
		item.Link = &link
	}
	if err := s.repo.Insert(ctx, tx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID) (*domain.ListResponse, error) {
	items, err := s.repo.ListByUser(ctx, s.db, userID, domain.ListLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	unread, err := s.repo.CountUnread(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{Notifications: items, UnreadCount: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id snowflake.ID) error {
	affected, err := s.repo.MarkRead(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error) {
	return s.repo.MarkAllRead(ctx, s.db, userID)
}

func (s *Service) SendEmail(ctx context.Context, req domain.EmailRequest) {
	log := logger.FromContext(ctx).With(
		zap.String("component", "notification.email"),
		zap.String("template", req.Template),
	)

	recipient, err := s.repo.FindRecipient(ctx, s.db, req.UserID)
	if err != nil {
		log.Warn("failed to load email recipient", zap.Error(err))
		return
	}
	if recipient == nil || recipient.Email == "" {
		log.Debug("email recipient not found", zap.String("user_id", req.UserID.String()))
		return
	}

	data := map[string]interface{}{
		"name":        recipient.Name,
		"event_title": req.EventTitle,
		"qr_code":     req.QRCode,
		"link":        s.appURL + EventLink(req.EventSlug),
	}
	if err := s.email.SendTemplate(ctx, []string{recipient.Email}, req.Template, data); err != nil {
		log.Warn("failed to send email", zap.Error(err))
	}
}

// EventLink is the in-app path of an event page.
func EventLink(slug string) string {
	return "/events/" + slug
}
