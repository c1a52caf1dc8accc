package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/eventflow/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectEvent     = "event"
	ObjectAttendee  = "attendee"
	ObjectCheckin   = "checkin"
	ObjectAnalytics = "analytics"
)

const (
	ActionEventView      = "event.view"
	ActionEventUpdate    = "event.update"
	ActionEventDelete    = "event.delete"
	ActionAttendeeView   = "attendee.view"
	ActionAttendeeManage = "attendee.manage"
	ActionCheckinScan    = "checkin.scan"
	ActionAnalyticsView  = "analytics.view"
)

const RoleOrganizer = "role:organizer"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies from the casbin_rule table and seeds the role
// permissions.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

// NewMemoryEnforcer builds a seeded enforcer without a policy store.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, principal identity.Principal, eventID snowflake.ID, object string, action string) error {
	if err := principal.Require(); err != nil {
		return err
	}
	if eventID == 0 {
		return ErrInvalidObject
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := subjectFor(principal.UserID)
	domain := domainFor(eventID)

	roleName, err := s.roleForUser(ctx, eventID, principal.UserID)
	if err != nil {
		return err
	}
	if roleName == "" {
		s.denied(subject, domain, object, action)
		return ErrForbidden
	}
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(subject, domain, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) RevokeEvent(ctx context.Context, eventID snowflake.ID) error {
	_, err := s.enforcer.RemoveFilteredGroupingPolicy(2, domainFor(eventID))
	return err
}

// roleForUser returns "" when the user holds no role on the event.
func (s *ServiceImpl) roleForUser(ctx context.Context, eventID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		OrganizerID snowflake.ID `gorm:"column:organizer_id"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT organizer_id
		 FROM events
		 WHERE id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	if row.OrganizerID != 0 && row.OrganizerID == userID {
		return RoleOrganizer, nil
	}
	return "", nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) denied(subject, domain, object, action string) {
	s.log.Info("authorization denied",
		zap.String("subject", subject),
		zap.String("domain", domain),
		zap.String("object", object),
		zap.String("action", action),
	)
}

func subjectFor(userID snowflake.ID) string {
	return fmt.Sprintf("user:%s", userID)
}

func domainFor(eventID snowflake.ID) string {
	return fmt.Sprintf("event:%s", eventID)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{RoleOrganizer, ObjectEvent, ActionEventView},
		{RoleOrganizer, ObjectEvent, ActionEventUpdate},
		{RoleOrganizer, ObjectEvent, ActionEventDelete},
		{RoleOrganizer, ObjectAttendee, ActionAttendeeView},
		{RoleOrganizer, ObjectAttendee, ActionAttendeeManage},
		{RoleOrganizer, ObjectCheckin, ActionCheckinScan},
		{RoleOrganizer, ObjectAnalytics, ActionAnalyticsView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
