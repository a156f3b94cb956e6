package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/service/servicetest"
	"go.uber.org/zap"
)

const testBaseURL = "https://sub.example.com/"

func newIssuanceFixture(t *testing.T) (*IssuanceService, *TokenManager, *servicetest.SubscriptionStore, *servicetest.UUIDRegistrar) {
	t.Helper()
	tm, _, _, clock := newTestManager(t)
	subs := &servicetest.SubscriptionStore{Subscriptions: []models.Subscription{
		{ID: 10, UserID: 1, PlanID: 3, PlanName: "Pro", Status: models.SubscriptionStatusActive, EndDate: clock.t.Add(90 * 24 * time.Hour)},
		{ID: 11, UserID: 2, PlanID: 3, PlanName: "Pro", Status: models.SubscriptionStatusActive, EndDate: clock.t.Add(-time.Hour)},
	}}
	edge, reg := edgeFixture()
	assigner := NewAssignmentService(edge, reg, zap.NewNop())
	svc := NewIssuanceService(tm, subs, assigner, 30, zap.NewNop())
	svc.now = clock.Now
	return svc, tm, subs, reg
}

func TestBuildLinks(t *testing.T) {
	links := BuildLinks(testBaseURL, "tok")
	assert.Equal(t, "https://sub.example.com/api/subscription/universal/tok", links.Universal)
	assert.Equal(t, "https://sub.example.com/api/subscription/v2ray/tok", links.V2Ray)
	assert.Equal(t, "https://sub.example.com/api/subscription/surge/tok", links.Surge)

	require.True(t, strings.HasPrefix(links.Clash, "clash://install-config?url="))
	u, err := url.Parse(links.Clash)
	require.NoError(t, err)
	assert.Equal(t, "https://sub.example.com/api/subscription/clash/tok", u.Query().Get("url"))
}

func TestIssueForSubscription(t *testing.T) {
	svc, tm, _, reg := newIssuanceFixture(t)
	ctx := context.Background()

	resp, err := svc.IssueForSubscription(ctx, testBaseURL, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.AssignmentError)
	assert.Equal(t, []int64{2}, resp.AssignedGroups)
	assert.Len(t, reg.Calls, 1)
	assert.True(t, strings.HasSuffix(resp.Links.V2Ray, "/"+resp.Token))

	_, err = tm.Verify(ctx, resp.Token)
	require.NoError(t, err)

	again, err := svc.IssueForSubscription(ctx, testBaseURL, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, resp.Token, again.Token)
}

func TestIssueForSubscription_AssignmentFailureIsNotFatal(t *testing.T) {
	svc, _, _, reg := newIssuanceFixture(t)
	reg.FailGroups = map[int64]bool{2: true}

	resp, err := svc.IssueForSubscription(context.Background(), testBaseURL, 1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.AssignmentError)
}

func TestIssueForSubscription_Errors(t *testing.T) {
	svc, _, _, _ := newIssuanceFixture(t)

	_, err := svc.IssueForSubscription(context.Background(), testBaseURL, 1, 999)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	_, err = svc.IssueForSubscription(context.Background(), testBaseURL, 2, 11)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
}

func TestUserLinksAndRefresh(t *testing.T) {
	svc, tm, _, _ := newIssuanceFixture(t)
	ctx := context.Background()

	links, err := svc.UserLinks(ctx, testBaseURL, 1)
	require.NoError(t, err)
	assert.Equal(t, "Pro", links.Subscription.PlanName)
	assert.Empty(t, links.Token)

	stable, err := svc.UserLinks(ctx, testBaseURL, 1)
	require.NoError(t, err)
	assert.Equal(t, links.Links, stable.Links)

	// let the clock move so the reissued token differs
	tm.now = func() time.Time { return svc.now().Add(5 * time.Second) }

	refreshed, err := svc.RefreshUserToken(ctx, testBaseURL, 1)
	require.NoError(t, err)
	assert.NotEqual(t, links.Links.V2Ray, refreshed.Links.V2Ray)
	assert.NotEmpty(t, refreshed.ExpiresAt)

	oldToken := links.Links.V2Ray[strings.LastIndex(links.Links.V2Ray, "/")+1:]
	_, err = tm.Verify(ctx, oldToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = tm.Verify(ctx, refreshed.Token)
	assert.NoError(t, err)

	_, err = svc.UserLinks(ctx, testBaseURL, 2)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
	_, err = svc.UserLinks(ctx, testBaseURL, 3)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestInspectService_TruncatesHashes(t *testing.T) {
	tm, store, audit, clock := newTestManager(t)
	_, err := tm.GetOrCreate(context.Background(), 1, 10, clock.t.Add(24*time.Hour), 30)
	require.NoError(t, err)

	svc := NewInspectService(store, audit)
	records, err := svc.TokenRecords(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, store.Records[0].TokenHash[:12]+"…", records[0].HashPrefix)
	assert.True(t, records[0].IsActive)
	assert.Nil(t, records[0].RevokedAt)

	logs, err := svc.AuditTrail(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.TokenActionIssued, logs[0].Action)
}
