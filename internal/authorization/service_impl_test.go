package authorization_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/identity"
	"github.com/smallbiznis/eventflow/internal/testutil"
	"go.uber.org/zap"
)

func TestAuthorizeEventOwner(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := testutil.NewAuthz(t, db)

	owner := fx.User("Org", "org@example.com")
	other := fx.User("Eve", "eve@example.com")
	eventID := fx.Event(owner, testutil.EventOpts{})

	ownerPrincipal := identity.Principal{UserID: owner, Authenticated: true}
	actions := []struct{ object, action string }{
		{authorization.ObjectEvent, authorization.ActionEventUpdate},
		{authorization.ObjectEvent, authorization.ActionEventDelete},
		{authorization.ObjectAttendee, authorization.ActionAttendeeView},
		{authorization.ObjectAttendee, authorization.ActionAttendeeManage},
		{authorization.ObjectCheckin, authorization.ActionCheckinScan},
		{authorization.ObjectAnalytics, authorization.ActionAnalyticsView},
	}
	for _, a := range actions {
		if err := svc.Authorize(context.Background(), ownerPrincipal, eventID, a.object, a.action); err != nil {
			t.Fatalf("expected owner to be allowed %s on %s, got %v", a.action, a.object, err)
		}
	}

	otherPrincipal := identity.Principal{UserID: other, Authenticated: true}
	err := svc.Authorize(context.Background(), otherPrincipal, eventID, authorization.ObjectCheckin, authorization.ActionCheckinScan)
	if !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
}

func TestAuthorizeRejectsMismatchedObject(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := testutil.NewAuthz(t, db)

	owner := fx.User("Org", "org@example.com")
	eventID := fx.Event(owner, testutil.EventOpts{})
	principal := identity.Principal{UserID: owner, Authenticated: true}

	err := svc.Authorize(context.Background(), principal, eventID, authorization.ObjectCheckin, authorization.ActionEventDelete)
	if !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := testutil.NewAuthz(t, db)

	eventID := fx.Event(fx.User("Org", "org@example.com"), testutil.EventOpts{})
	err := svc.Authorize(context.Background(), identity.Anonymous, eventID, authorization.ObjectEvent, authorization.ActionEventUpdate)
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeUnknownEventIsForbidden(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	svc := testutil.NewAuthz(t, db)

	principal := identity.Principal{UserID: fx.User("Org", "org@example.com"), Authenticated: true}
	err := svc.Authorize(context.Background(), principal, fx.ID(), authorization.ObjectEvent, authorization.ActionEventUpdate)
	if !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRevokeEventDropsBindings(t *testing.T) {
	enforcer, err := authorization.NewMemoryEnforcer()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	owner := fx.User("Org", "org@example.com")
	eventID := fx.Event(owner, testutil.EventOpts{})

	svc := authorization.NewService(authorization.Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	principal := identity.Principal{UserID: owner, Authenticated: true}
	if err := svc.Authorize(context.Background(), principal, eventID, authorization.ObjectEvent, authorization.ActionEventUpdate); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	domain := "event:" + eventID.String()
	if rules, _ := enforcer.GetFilteredGroupingPolicy(2, domain); len(rules) != 1 {
		t.Fatalf("expected one binding, got %v", rules)
	}
	if err := svc.RevokeEvent(context.Background(), eventID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rules, _ := enforcer.GetFilteredGroupingPolicy(2, domain); len(rules) != 0 {
		t.Fatalf("expected bindings removed, got %v", rules)
	}
}
